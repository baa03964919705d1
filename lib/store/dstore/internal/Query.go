package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // Retrieve an entry by key.
	QueryTHas                        // Check if a live entry exists.
	QueryTGetDBInfo                  // Retrieve metadata about the engine underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTHas:
		return "Has"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query is a read-only lookup sent via SyncRead or StaleRead. Queries never enter
// the raft log, so they are not serialized.
type Query struct {
	Type QueryType
	Key  string
}

// QueryResult is the result of a QueryTGet operation.
type QueryResult struct {
	Ok    bool
	Value []byte
}
