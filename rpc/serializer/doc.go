// Package serializer encodes the messages exchanged between cache clients and
// cache servers.
//
// Key Components:
//
//   - IRPCSerializer: interface every serializer satisfies.
//
//   - cborSerializerImpl: CBOR with integer keys (fxamacker/cbor). Compact and fast,
//     the default for production.
//
//   - jsonSerializerImpl: JSON (goccy/go-json). Human readable, useful for debugging
//     with curl against the HTTP transport.
//
//   - gobSerializerImpl: Go's gob format. Kept for Go-only deployments, it produces
//     the largest payloads.
//
// Thread Safety:
//
//	All serializers are stateless after construction and safe for concurrent use.
//
// Usage:
//
//	s, err := serializer.ByName("cbor")
//	data, err := s.Serialize(msg)
//	var received common.Message
//	err = s.Deserialize(data, &received)
package serializer
