package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/uorm/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
	"CBOR": NewCBORSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		{MsgType: common.MsgTSuccess},
		{MsgType: common.MsgTSet, Key: "users.alice", Value: []byte("test-value")},
		{MsgType: common.MsgTSetE, Key: "users.alice", Value: []byte{0, 1, 2, 255}, TTLMs: 300000},
		{MsgType: common.MsgTGet, Key: "users.alice", Value: []byte("test-value"), Ok: true},
		{MsgType: common.MsgTDelete, Ok: true},
		{MsgType: common.MsgTError, Err: "test error message", Code: 2},
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, msg, result)
				}
			}
		})
	}
}

func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTInfo; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob", "cbor"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q) failed: %v", name, err)
		}
	}
	if _, err := ByName("binary"); err == nil {
		t.Errorf("ByName should reject unknown serializers")
	}
}

func TestCBORIsCompact(t *testing.T) {
	msg := common.Message{MsgType: common.MsgTGet, Key: "users.alice", Value: []byte("v"), Ok: true}

	cborData, err := NewCBORSerializer().Serialize(msg)
	if err != nil {
		t.Fatal(err)
	}
	jsonData, err := NewJSONSerializer().Serialize(msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(cborData) >= len(jsonData) {
		t.Errorf("expected cbor (%d bytes) to be smaller than json (%d bytes)", len(cborData), len(jsonData))
	}
}

func TestGOBDecodeIntoUsedMessage(t *testing.T) {
	s := NewGOBSerializer()

	data, err := s.Serialize(common.Message{MsgType: common.MsgTDelete, Key: "users.bob"})
	if err != nil {
		t.Fatal(err)
	}

	msg := common.Message{MsgType: common.MsgTGet, Key: "users.alice", Value: []byte("stale"), Ok: true}
	if err := s.Deserialize(data, &msg); err != nil {
		t.Fatal(err)
	}
	want := common.Message{MsgType: common.MsgTDelete, Key: "users.bob"}
	if !reflect.DeepEqual(msg, want) {
		t.Errorf("fields of the previous message leaked: got %+v, want %+v", msg, want)
	}

	if err := s.Deserialize([]byte("garbage"), &msg); err == nil {
		t.Errorf("Deserialize of garbage should fail")
	}
}
