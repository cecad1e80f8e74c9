// Package squid derives the content-addressed identifiers ("squid IDs") that
// key every cache entry. An identifier is <tool>/<revision>/<md5(inputs)>,
// where the inputs are serialized to a canonical JSON text (sorted keys,
// Python-compatible separators and escaping) so that semantically equal inputs
// always land on the same entry, no matter how the caller ordered the keys.
// The package is pure: no I/O, no clocks, no global state.
package squid
