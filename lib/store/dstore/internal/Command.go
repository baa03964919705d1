package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/uorm/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTSet    CommandType = iota // Insert or update an entry.
	CommandTSetE                      // Insert or update an entry with an absolute deadline.
	CommandTDelete                    // Delete an entry.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTSetE:
		return "SetE"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the db.Feature the engine must support.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTSet:
		return db.FeatureSet, nil
	case CommandTSetE:
		return db.FeatureSetE, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// headerSize is Type + DeleteAt + KeyLen
const headerSize = 1 + 8 + 4

// Command is a single entry in the raft log.
// DeleteAt is computed by the proposing node so all replicas store the same deadline.
type Command struct {
	Type     CommandType
	Key      string
	DeleteAt int64
	Value    []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Key) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for deleteAt (unix nanoseconds, big endian),
// 4 bytes for key length (big endian),
// N bytes for key data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], uint64(command.DeleteAt))
	binary.BigEndian.PutUint32(result[9:13], uint32(len(command.Key)))

	n := copy(result[headerSize:], command.Key)
	copy(result[headerSize+n:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.DeleteAt = int64(binary.BigEndian.Uint64(data[1:9]))
	keyLen := int(binary.BigEndian.Uint32(data[9:13]))

	if len(data) < headerSize+keyLen {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	command.Key = string(data[headerSize : headerSize+keyLen])

	rest := data[headerSize+keyLen:]
	if len(rest) == 0 {
		command.Value = nil
		return nil
	}
	// reuse the existing buffer if possible
	if cap(command.Value) < len(rest) {
		command.Value = make([]byte, len(rest))
	} else {
		command.Value = command.Value[:len(rest)]
	}
	copy(command.Value, rest)
	return nil
}
