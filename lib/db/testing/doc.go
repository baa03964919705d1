// Package testing provides a conformance suite for implementations of db.KVDB.
//
// Example usage:
//
//	func Test(t *testing.T) {
//		dbtesting.RunKVDBTests(t, "MyEngine", func() db.KVDB {
//			return NewMyEngine()
//		})
//	}
package testing
