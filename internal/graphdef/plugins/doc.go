// Package plugins catalogs the custom operators implemented natively by the
// inference runtime.
//
// A plugin node is an ordinary NodeDef whose op names one of these
// operators. The engine builder looks the op up in its plugin registry and
// configures the native implementation from the node's attributes, so a
// plugin node missing a required attribute only fails deep inside the
// builder. Validate catches that before the graph leaves this process.
//
// Built-in operators:
//   - GridAnchor_TRT: SSD anchor (prior box) generator
//   - NMS_TRT: SSD detection output with non-max suppression
//   - FlattenConcat_TRT: flatten each input and concatenate along axis 1
package plugins
