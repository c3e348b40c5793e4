// Package identifier implements canonical channel identifier encoding.
//
// A channel identifier is the string that multiplexes frames on a shared
// connection: a JSON object holding the channel name under the "channel"
// key together with the subscription parameters, serialized compactly
// with lexicographically sorted keys. Because routing compares
// identifiers by string equality, the same (name, params) pair must
// always produce byte-identical output.
//
// # Normalization
//
// The peer echoes identifiers back on confirmation, rejection, and data
// frames, but is not required to preserve key order. Normalize re-sorts
// a received identifier into the same canonical form Encode produces, so
// both sides of a lookup agree on the key.
package identifier
