// Package ssd rewrites a frozen SSD MobileNet detector so the inference
// runtime can build it.
//
// The TensorFlow object-detection export wraps the network in
// preprocessing, anchor generation and post-processing subgraphs the
// runtime cannot parse. AddPlugins removes validation and pass-through
// nodes, then collapses those subgraphs into the runtime's native plugin
// operators:
//
//	Preprocessor, ToFloat, image_tensor  -> Input       (Placeholder, 1x3x300x300)
//	MultipleGridAnchorGenerator          -> GridAnchor  (GridAnchor_TRT)
//	MultipleGridAnchorGenerator/Concatenate, Concatenate
//	                                     -> concat_priorbox (ConcatV2, axis 2)
//	concat                               -> concat_box_loc  (FlattenConcat_TRT)
//	concat_1                             -> concat_box_conf (FlattenConcat_TRT)
//	Postprocessor                        -> NMS         (NMS_TRT)
//
// The anchor and NMS parameters are fixed for the 300x300 MobileNet SSD
// family; only the class count, anchor scales and the NMS input order vary
// per exported graph.
package ssd
