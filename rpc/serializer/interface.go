package serializer

import (
	"fmt"

	"github.com/ValentinKolb/uorm/rpc/common"
)

// IRPCSerializer is the interface for all Message serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into the given Message
	Deserialize(b []byte, msg *common.Message) error
}

// ByName returns the serializer registered under name (json, gob or cbor).
func ByName(name string) (IRPCSerializer, error) {
	switch name {
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	case "cbor":
		return NewCBORSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q, must be one of json, gob, cbor", name)
	}
}
