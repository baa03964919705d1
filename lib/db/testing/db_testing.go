package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs the conformance suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Deadline", func(t *testing.T) {
			testDeadline(t, factory())
		})

		t.Run("StaleWrites", func(t *testing.T) {
			testStaleWrites(t, factory())
		})

		t.Run("WriteIndex", func(t *testing.T) {
			testWriteIndex(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// requireFeature skips the test if the database lacks the feature
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func inFuture(d time.Duration) int64 {
	return time.Now().Add(d).UnixNano()
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "users.alice"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, 1)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 2)

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrieved, _ := database.Get(testKey)
	retrieved[0] = 'X'
	original, _ := database.Get(testKey)
	if bytes.Equal(retrieved, original) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("input")
	database.Set("owned", input, 3)
	input[0] = 'X'
	stored, _ := database.Get("owned")
	if !bytes.Equal(stored, []byte("input")) {
		t.Errorf("Set should copy the value, got %s", stored)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	testKey := "delete-test-key"
	database.Set(testKey, []byte("delete-test-value"), 1)

	if deleted := database.Delete(testKey, 2); !deleted {
		t.Errorf("Expected Delete to report the removal of %s", testKey)
	}
	if _, exists := database.Get(testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	// deleting a missing key is a no-op
	if deleted := database.Delete(testKey, 3); deleted {
		t.Errorf("Expected second Delete of %s to report false", testKey)
	}
	if deleted := database.Delete("nonexistent-key", 4); deleted {
		t.Errorf("Expected Delete of nonexistent key to report false")
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureHas)

	testKey := "has-test-key"
	if database.Has(testKey) {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	database.Set(testKey, []byte("v"), 1)
	if !database.Has(testKey) {
		t.Errorf("Expected Has to return true after Set")
	}

	database.Delete(testKey, 2)
	if database.Has(testKey) {
		t.Errorf("Expected Has to return false after Delete")
	}
}

func testDeadline(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetE|db.FeatureGet|db.FeatureHas)

	database.SetE("past", []byte("v"), 1, time.Now().Add(-time.Second).UnixNano())
	if _, exists := database.Get("past"); exists {
		t.Errorf("Entry with a deadline in the past must not be returned by Get")
	}
	if database.Has("past") {
		t.Errorf("Entry with a deadline in the past must not be reported by Has")
	}

	database.SetE("future", []byte("v"), 2, inFuture(time.Hour))
	if _, exists := database.Get("future"); !exists {
		t.Errorf("Entry with a deadline in the future must be returned by Get")
	}

	database.SetE("never", []byte("v"), 3, 0)
	if !database.Has("never") {
		t.Errorf("Entry without deadline must exist")
	}

	database.SetE("short", []byte("v"), 4, inFuture(50*time.Millisecond))
	if !database.Has("short") {
		t.Errorf("Entry should exist before its deadline")
	}
	time.Sleep(100 * time.Millisecond)
	if _, exists := database.Get("short"); exists {
		t.Errorf("Entry should be gone after its deadline")
	}

	// overwriting with Set clears the deadline
	database.SetE("refreshed", []byte("v1"), 5, inFuture(50*time.Millisecond))
	database.Set("refreshed", []byte("v2"), 6)
	time.Sleep(100 * time.Millisecond)
	if v, exists := database.Get("refreshed"); !exists || !bytes.Equal(v, []byte("v2")) {
		t.Errorf("Set should replace the deadline of an existing entry, got %s (exists=%v)", v, exists)
	}

	if database.Delete("past", 7) {
		t.Errorf("Deleting an expired entry should report false")
	}
}

func testStaleWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("k", []byte("new"), 10)
	database.Set("k", []byte("old"), 5)

	if v, _ := database.Get("k"); !bytes.Equal(v, []byte("new")) {
		t.Errorf("Stale write should be ignored, got %s", v)
	}

	if database.Delete("k", 9) {
		t.Errorf("Stale delete should be ignored")
	}
	if !database.Has("k") {
		t.Errorf("Key should survive a stale delete")
	}
}

func testWriteIndex(t *testing.T, database db.KVDB) {
	defer database.Close()

	database.SetWriteIdx(10)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Expected write index 10, got %d", idx)
	}

	database.SetWriteIdx(5)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Write index must be monotonic, got %d", idx)
	}

	database.Set("k", []byte("v"), 20)
	if idx := database.WriteIdx(); idx != 20 {
		t.Errorf("Writes should advance the write index, got %d", idx)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	source := factory()
	defer source.Close()

	requireFeature(t, source, db.FeatureSave|db.FeatureLoad)

	for i := 0; i < 100; i++ {
		source.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)), uint64(i+1))
	}
	source.SetE("with-deadline", []byte("v"), 200, inFuture(time.Hour))
	source.SetE("expired", []byte("v"), 201, time.Now().Add(-time.Second).UnixNano())

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	target := factory()
	defer target.Close()

	target.Set("overwritten", []byte("v"), 1)

	if err := target.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		v, ok := target.Get(fmt.Sprintf("key-%d", i))
		if !ok || !bytes.Equal(v, []byte(fmt.Sprintf("value-%d", i))) {
			t.Errorf("key-%d not restored correctly, got %s (exists=%v)", i, v, ok)
		}
	}
	if !target.Has("with-deadline") {
		t.Errorf("Entry with future deadline should be restored")
	}
	if target.Has("expired") {
		t.Errorf("Expired entry should not be restored")
	}
	if target.Has("overwritten") {
		t.Errorf("Load should replace the existing content")
	}
	if idx := target.WriteIdx(); idx != source.WriteIdx() {
		t.Errorf("Expected write index %d after Load, got %d", source.WriteIdx(), idx)
	}

	if err := target.Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Load of invalid data should fail")
	}
	if !target.Has("key-1") {
		t.Errorf("Failed Load should leave the content untouched")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	database.Set("", []byte("empty key"), 1)
	if v, ok := database.Get(""); !ok || !bytes.Equal(v, []byte("empty key")) {
		t.Errorf("Empty key should be supported")
	}

	database.Set("empty-value", []byte{}, 2)
	if v, ok := database.Get("empty-value"); !ok || len(v) != 0 {
		t.Errorf("Empty value should be supported, got %v (exists=%v)", v, ok)
	}

	database.Set("nil-value", nil, 3)
	if _, ok := database.Get("nil-value"); !ok {
		t.Errorf("Nil value should be stored")
	}

	large := bytes.Repeat([]byte("x"), 1<<20)
	database.Set("large", large, 4)
	if v, ok := database.Get("large"); !ok || len(v) != len(large) {
		t.Errorf("Large value not stored correctly")
	}

	info := database.GetInfo()
	if info.Entries != 4 {
		t.Errorf("Expected 4 entries in info, got %d", info.Entries)
	}
}

func testConcurrent(t *testing.T, database db.KVDB) {
	defer database.Close()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				database.Set(key, []byte(key), uint64(w*perWorker+i+1))
				if v, ok := database.Get(key); !ok || !bytes.Equal(v, []byte(key)) {
					t.Errorf("Concurrent read of %s failed", key)
				}
				if i%2 == 0 {
					database.Delete(key, uint64(workers*perWorker+w*perWorker+i+1))
				}
			}
		}(w)
	}
	wg.Wait()

	if n := database.GetInfo().Entries; n != workers*perWorker/2 {
		t.Errorf("Expected %d entries, got %d", workers*perWorker/2, n)
	}
}
