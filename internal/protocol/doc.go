// Package protocol implements the JSON wire format spoken over the catalog
// WebSocket: inbound frames decode into a closed set of Request variants and
// outbound events encode to single JSON objects with a "type" or "error" field.
//
// Frames that are not strict JSON are passed through a small, ordered chain of
// repair heuristics (see repair.go) before being rejected.
package protocol
