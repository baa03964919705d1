package uorm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ResolveID converts a string holding a canonical ObjectID (24 lowercase hex chars)
// into a bson.ObjectID. Every other value, nil included, is returned unchanged.
func ResolveID(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	id, err := bson.ObjectIDFromHex(s)
	if err != nil || id.Hex() != s {
		return value
	}
	return id
}

// KeyString renders a value as part of a cache key. Strings are kept as they are, with
// a leading '#' doubled. Numbers become "#<n>", integral floats included, because the
// database matches 5 and 5.0 alike. Any other value is tagged with its type.
// An ObjectID and its hex string share a key, both resolve to the same _id.
func KeyString(v any) string {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case string:
		if strings.HasPrefix(val, "#") {
			return "#" + val
		}
		return val
	case int:
		return "#" + strconv.FormatInt(int64(val), 10)
	case int8:
		return "#" + strconv.FormatInt(int64(val), 10)
	case int16:
		return "#" + strconv.FormatInt(int64(val), 10)
	case int32:
		return "#" + strconv.FormatInt(int64(val), 10)
	case int64:
		return "#" + strconv.FormatInt(val, 10)
	case uint:
		return "#" + strconv.FormatUint(uint64(val), 10)
	case uint8:
		return "#" + strconv.FormatUint(uint64(val), 10)
	case uint16:
		return "#" + strconv.FormatUint(uint64(val), 10)
	case uint32:
		return "#" + strconv.FormatUint(uint64(val), 10)
	case uint64:
		return "#" + strconv.FormatUint(val, 10)
	case float32:
		return floatKey(float64(val))
	case float64:
		return floatKey(val)
	default:
		return fmt.Sprintf("#%T:%v", val, val)
	}
}

func floatKey(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return "#" + strconv.FormatInt(int64(f), 10)
	}
	return "#" + strconv.FormatFloat(f, 'g', -1, 64)
}

// saveRequired fails for records that have not been saved yet
func saveRequired(r *Record, op string) error {
	if r.IsNew() {
		return &ObjectSaveRequired{Collection: r.model.schema.Collection, Op: op}
	}
	return nil
}
