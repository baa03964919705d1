package serializer

import (
	"bytes"
	"encoding/gob"

	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/pkg/errors"
)

// NewGOBSerializer creates a serializer using encoding/gob. Every frame carries its own
// type description, so frames can be decoded independently and out of order.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, errors.Wrapf(err, "gob encode %s", msg.MsgType)
	}
	return buf.Bytes(), nil
}

func (gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob keeps the old value of fields that are zero in the frame
	*msg = common.Message{}
	return errors.Wrap(gob.NewDecoder(bytes.NewReader(b)).Decode(msg), "gob decode")
}
