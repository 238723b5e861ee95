// Package wire defines the encodings that cross the process boundary
// between an extension and the host.
//
// There are two layers:
//
//   - The envelope: a Bundle, a string-keyed container whose "value" entry
//     holds a JSON document. Events, params and effects travel as bundles.
//     Members of a closed sum type (ride state, stream state, effect kind)
//     carry a "type" discriminator so a generic decoder can rebuild the
//     right variant. The target type at the call site selects the decoder;
//     the tag only selects a variant within that family.
//   - The frame: CBOR (RFC 8949) messages with integer keys carried over
//     the transport. Calls, replies, handler callbacks and control messages
//     each have their own struct; the first key of every message is its
//     kind.
//
// # Forward compatibility
//
// Unknown JSON fields are ignored and missing optional fields take their
// documented defaults. Unknown CBOR keys are ignored as well.
package wire
