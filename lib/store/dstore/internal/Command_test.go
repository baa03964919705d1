package internal

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/ValentinKolb/uorm/lib/db"
)

func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Command with key and value",
			command:  Command{Type: CommandTSetE, Key: "testkey", DeleteAt: 100, Value: []byte("testvalue")},
			expected: 1 + 8 + 4 + 7 + 9,
		},
		{
			name:     "Command with empty key",
			command:  Command{Type: CommandTSet, Key: "", Value: []byte("testvalue")},
			expected: 1 + 8 + 4 + 0 + 9,
		},
		{
			name:     "Delete command",
			command:  Command{Type: CommandTDelete, Key: "users.alice"},
			expected: 1 + 8 + 4 + 11,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size := tt.command.SizeBytes(); size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{"Standard command with value", Command{Type: CommandTSetE, Key: "users.alice", DeleteAt: 1_700_000_000_000_000_000, Value: []byte("testvalue")}},
		{"Delete without value", Command{Type: CommandTDelete, Key: "users.alice"}},
		{"Empty key", Command{Type: CommandTSet, Key: "", Value: []byte("testvalue")}},
		{"Max deadline", Command{Type: CommandTSetE, Key: "k", DeleteAt: math.MaxInt64, Value: []byte("v")}},
		{"Binary value", Command{Type: CommandTSet, Key: "binary", Value: []byte{0, 1, 2, 3, 254, 255}}},
		{"Unicode key", Command{Type: CommandTSet, Key: "你好世界", Value: []byte("unicode test")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var got Command
			if err := got.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if got.Type != tt.command.Type {
				t.Errorf("Type mismatch: got %v, want %v", got.Type, tt.command.Type)
			}
			if got.Key != tt.command.Key {
				t.Errorf("Key mismatch: got %q, want %q", got.Key, tt.command.Key)
			}
			if got.DeleteAt != tt.command.DeleteAt {
				t.Errorf("DeleteAt mismatch: got %v, want %v", got.DeleteAt, tt.command.DeleteAt)
			}
			if !bytes.Equal(got.Value, tt.command.Value) {
				t.Errorf("Value mismatch: got %v, want %v", got.Value, tt.command.Value)
			}
			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d", tt.command.SizeBytes(), len(data))
			}
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{"Empty data", []byte{}, "data too short for command"},
		{"Shorter than header", []byte{1, 2, 3, 4, 5}, "data too short for command"},
		{
			name: "Invalid key length",
			data: func() []byte {
				data := make([]byte, headerSize)
				data[0] = byte(CommandTSet)
				binary.BigEndian.PutUint32(data[9:13], 1000)
				return data
			}(),
			expectedErr: "data too short for key of length 1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

func TestBinaryFormat(t *testing.T) {
	cmd := Command{Type: CommandTSetE, Key: "testkey", DeleteAt: 67890, Value: []byte("testvalue")}

	expected := make([]byte, cmd.SizeBytes())
	expected[0] = byte(CommandTSetE)
	binary.BigEndian.PutUint64(expected[1:9], 67890)
	binary.BigEndian.PutUint32(expected[9:13], 7)
	copy(expected[13:20], "testkey")
	copy(expected[20:], "testvalue")

	if serialized := cmd.Serialize(); !bytes.Equal(serialized, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", serialized, expected)
	}
}

func TestToDBFeature(t *testing.T) {
	tests := []struct {
		typ     CommandType
		feature db.Feature
		wantErr bool
	}{
		{CommandTSet, db.FeatureSet, false},
		{CommandTSetE, db.FeatureSetE, false},
		{CommandTDelete, db.FeatureDelete, false},
		{CommandType(42), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			feature, err := tt.typ.ToDBFeature()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToDBFeature() error = %v, wantErr %v", err, tt.wantErr)
			}
			if feature != tt.feature {
				t.Errorf("ToDBFeature() = %v, want %v", feature, tt.feature)
			}
		})
	}
}
