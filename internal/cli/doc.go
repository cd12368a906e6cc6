// Package cli is responsible for parsing command-line arguments, validating
// the model identifier against the registry, and handling process-level
// concerns like exit codes.
package cli
