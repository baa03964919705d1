package common

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/goccy/go-json"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is used for both requests and responses between a cache client and a
// cache server. Which fields are used depends on the type of message.
type Message struct {
	MsgType MessageType `json:"msg_type" cbor:"1,keyasint"`

	// request fields
	Key   string `json:"key,omitempty" cbor:"2,keyasint,omitempty"`    // Used for: Set, SetE, Get, Has, Delete
	TTLMs uint64 `json:"ttl_ms,omitempty" cbor:"3,keyasint,omitempty"` // Used for: SetE
	Value []byte `json:"value,omitempty" cbor:"4,keyasint,omitempty"`  // Used for: Set, SetE (request), Get, Info (response)

	// response fields
	Ok   bool   `json:"ok,omitempty" cbor:"5,keyasint,omitempty"`   // Used for: Get, Has, Delete responses
	Err  string `json:"err,omitempty" cbor:"6,keyasint,omitempty"`  // Empty if no error
	Code uint64 `json:"code,omitempty" cbor:"7,keyasint,omitempty"` // store.RetCode of a failed operation
}

// TTL returns the ttl of a SetE request
func (m *Message) TTL() time.Duration {
	return time.Duration(m.TTLMs) * time.Millisecond
}

// setErr fills the error fields of a response. Codes of *store.Error survive
// the round trip, other errors become RetCInternalError.
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	m.Err = err.Error()
	m.Code = uint64(store.RetCInternalError)
	if storeErr, ok := err.(*store.Error); ok {
		m.Err = storeErr.Msg
		m.Code = uint64(storeErr.Code)
	}
	return m
}

// AsError converts the error fields back into a *store.Error (nil if none).
func (m *Message) AsError() error {
	if m.MsgType != MsgTError && m.Err == "" {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{MsgType: MsgTSet, Key: key, Value: value}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	return (&Message{MsgType: MsgTSet}).setErr(err)
}

// NewSetERequest creates a new SetE request
func NewSetERequest(key string, value []byte, ttl time.Duration) *Message {
	return &Message{MsgType: MsgTSetE, Key: key, Value: value, TTLMs: uint64(ttl.Milliseconds())}
}

// NewSetEResponse creates a new SetE response
func NewSetEResponse(err error) *Message {
	return (&Message{MsgType: MsgTSetE}).setErr(err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{MsgType: MsgTDelete, Key: key}
}

// NewDeleteResponse creates a new Delete response, Ok reports whether an entry was removed
func NewDeleteResponse(deleted bool, err error) *Message {
	return (&Message{MsgType: MsgTDelete, Ok: deleted}).setErr(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{MsgType: MsgTGet, Key: key}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	return (&Message{MsgType: MsgTGet, Ok: ok, Value: value}).setErr(err)
}

// NewHasRequest creates a new Has request
func NewHasRequest(key string) *Message {
	return &Message{MsgType: MsgTHas, Key: key}
}

// NewHasResponse creates a new Has response
func NewHasResponse(ok bool, err error) *Message {
	return (&Message{MsgType: MsgTHas, Ok: ok}).setErr(err)
}

// NewInfoRequest creates a new request for the engine info of a shard
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTInfo}
}

// NewInfoResponse creates a new Info response, Value holds the JSON encoded info
func NewInfoResponse(info []byte, err error) *Message {
	return (&Message{MsgType: MsgTInfo, Value: info}).setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{MsgType: MsgTError, Err: err, Code: uint64(store.RetCInvalidOperation)}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

const (
	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTSet    // Set a key-value pair
	MsgTSetE   // Set a key-value pair with ttl
	MsgTDelete // Delete a key-value pair
	MsgTGet    // Get a value by key
	MsgTHas    // Check if a key exists
	MsgTInfo   // Engine info of a shard
)

var msgTypeNames = map[MessageType]string{
	MsgTSuccess: "success",
	MsgTError:   "error",
	MsgTSet:     "set",
	MsgTSetE:    "setE",
	MsgTDelete:  "delete",
	MsgTGet:     "get",
	MsgTHas:     "has",
	MsgTInfo:    "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes a MessageType as its name.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a MessageType from its name.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for typ, name := range msgTypeNames {
		if name == s {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}
