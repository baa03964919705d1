package maple

import (
	"testing"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
	dbtesting "github.com/ValentinKolb/uorm/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func TestSingleShard(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB(1 shard)", func() db.KVDB {
		return NewMapleDB(&DBOptions{NumShards: 1, GCInterval: -1})
	})
}

func TestGarbageCollector(t *testing.T) {
	engine := NewMapleDB(&DBOptions{NumShards: 4, GCInterval: -1}).(*mapleImpl)
	defer engine.Close()

	clock := time.Now().UnixNano()
	engine.now = func() int64 { return clock }

	engine.SetE("a", []byte("1"), 1, clock+10)
	engine.SetE("b", []byte("2"), 2, clock+20)
	engine.Set("c", []byte("3"), 3)

	if removed := engine.collect(); removed != 0 {
		t.Errorf("Expected nothing to be collected, got %d", removed)
	}

	clock += 15
	if removed := engine.collect(); removed != 1 {
		t.Errorf("Expected 1 collected entry, got %d", removed)
	}
	if n := engine.GetInfo().Entries; n != 2 {
		t.Errorf("Expected 2 remaining entries, got %d", n)
	}

	clock += 100
	engine.collect()
	if !engine.Has("c") {
		t.Errorf("Entry without deadline must survive collection")
	}
	if n := engine.GetInfo().Entries; n != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	engine := NewMapleDB(nil)
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}
