package memdriver

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ValentinKolb/uorm/lib/driver"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// --------------------------------------------------------------------------
// Query matching
// --------------------------------------------------------------------------

// matches reports whether doc satisfies query
func matches(doc bson.M, query bson.M) (bool, error) {
	for key, cond := range query {
		switch key {
		case "$and", "$or":
			subs, err := toQueryList(cond)
			if err != nil {
				return false, err
			}
			ok, err := matchList(doc, subs, key == "$and")
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return false, fmt.Errorf("%w: %s", driver.ErrUnsupported, key)
		}

		val, present := doc[key]
		if ops, ok := operatorMap(cond); ok {
			for op, arg := range ops {
				ok, err := matchOperator(op, val, present, arg)
				if err != nil || !ok {
					return false, err
				}
			}
			continue
		}
		if !equals(val, present, cond) {
			return false, nil
		}
	}
	return true, nil
}

func matchList(doc bson.M, subs []bson.M, all bool) (bool, error) {
	if len(subs) == 0 {
		return false, fmt.Errorf("$and/$or needs a non-empty list")
	}
	for _, sub := range subs {
		ok, err := matches(doc, sub)
		if err != nil {
			return false, err
		}
		if all && !ok {
			return false, nil
		}
		if !all && ok {
			return true, nil
		}
	}
	return all, nil
}

func matchOperator(op string, val any, present bool, arg any) (bool, error) {
	switch op {
	case "$eq":
		return equals(val, present, arg), nil
	case "$ne":
		return !equals(val, present, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		c, ok := compare(val, arg)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case "$in", "$nin":
		list, err := toList(arg)
		if err != nil {
			return false, err
		}
		found := false
		for _, item := range list {
			if equals(val, present, item) {
				found = true
				break
			}
		}
		return found == (op == "$in"), nil
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			if f, isNum := toFloat(arg); isNum {
				want, ok = f != 0, true
			}
		}
		if !ok {
			return false, fmt.Errorf("$exists needs a boolean")
		}
		return present == want, nil
	default:
		return false, fmt.Errorf("%w: %s", driver.ErrUnsupported, op)
	}
}

// operatorMap returns cond as operator map if all its keys start with "$"
func operatorMap(cond any) (bson.M, bool) {
	var m bson.M
	switch c := cond.(type) {
	case bson.M:
		m = c
	case map[string]any:
		m = c
	case bson.D:
		m = make(bson.M, len(c))
		for _, e := range c {
			m[e.Key] = e.Value
		}
	default:
		return nil, false
	}
	if len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func toList(v any) ([]any, error) {
	switch l := v.(type) {
	case bson.A:
		return l, nil
	case []any:
		return l, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func toQueryList(v any) ([]bson.M, error) {
	if qs, ok := v.([]bson.M); ok {
		return qs, nil
	}
	list, err := toList(v)
	if err != nil {
		return nil, err
	}
	out := make([]bson.M, 0, len(list))
	for _, item := range list {
		switch q := item.(type) {
		case bson.M:
			out = append(out, q)
		case map[string]any:
			out = append(out, q)
		case bson.D:
			m := make(bson.M, len(q))
			for _, e := range q {
				m[e.Key] = e.Value
			}
			out = append(out, m)
		default:
			return nil, fmt.Errorf("expected a query document, got %T", item)
		}
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Value comparison
// --------------------------------------------------------------------------

// equals compares a document value with a query value. A nil query value
// matches missing fields and null values.
func equals(val any, present bool, want any) bool {
	if want == nil {
		return !present || val == nil
	}
	if !present {
		return false
	}
	if c, ok := compare(val, want); ok {
		return c == 0
	}
	return reflect.DeepEqual(val, want)
}

// compare orders two scalar values of compatible types
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(va, vb), true
	case bool:
		vb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case va == vb:
			return 0, true
		case !va:
			return -1, true
		default:
			return 1, true
		}
	case bson.ObjectID:
		vb, ok := b.(bson.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(va[:], vb[:]), true
	case bson.DateTime, time.Time:
		ta, okA := toTime(a)
		tb, okB := toTime(b)
		if !okA || !okB {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case bson.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
