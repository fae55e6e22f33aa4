package disk_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/downfa11-org/go-eventlog/pkg/config"
	"github.com/downfa11-org/go-eventlog/pkg/disk"
	"github.com/downfa11-org/go-eventlog/pkg/types"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:           dir,
		BackupDir:         dir,
		ChunkSize:         1000,
		ChannelBufferSize: 8,
	}
}

func event(kv ...string) types.Event {
	e := types.Event{}
	for i := 0; i+1 < len(kv); i += 2 {
		e[kv[i]] = kv[i+1]
	}
	return e
}

func decodeEvents(t *testing.T, data []byte) []types.Event {
	t.Helper()
	var events []types.Event
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("result %q is not a JSON array: %v", data, err)
	}
	return events
}

// TestWriteAndReadBack verifies that an appended batch comes back whole with
// the next marker at the exact end of the written bytes.
func TestWriteAndReadBack(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	batch := []types.Event{event("id", "1"), event("id", "2")}
	if err := h.WriteEvents(batch); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	encoded, err := types.EncodeBatch(batch)
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if got := h.Tail(); got != int64(len(encoded)) {
		t.Errorf("tail = %d, want byte length of all records %d", got, len(encoded))
	}

	next, data, err := h.ReadSince(0)
	if err != nil {
		t.Fatalf("ReadSince(0): %v", err)
	}
	if next != h.Tail() {
		t.Errorf("nextMarker = %d, want tail %d", next, h.Tail())
	}
	events := decodeEvents(t, data)
	if len(events) != 2 || events[0]["id"] != "1" || events[1]["id"] != "2" {
		t.Errorf("unexpected events: %v", events)
	}
}

// TestTailMonotonic verifies the tail grows by exactly the encoded size of
// each successful batch.
func TestTailMonotonic(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	var total int64
	for i := 0; i < 10; i++ {
		batch := []types.Event{event("seq", fmt.Sprint(i))}
		encoded, _ := types.EncodeBatch(batch)
		if err := h.WriteEvents(batch); err != nil {
			t.Fatalf("WriteEvents %d: %v", i, err)
		}
		total += int64(len(encoded))
		if got := h.Tail(); got != total {
			t.Fatalf("after batch %d tail = %d, want %d", i, got, total)
		}
	}
}

// TestEmptyBatchIsNoop verifies a zero-event batch succeeds without moving
// the tail or touching the files.
func TestEmptyBatchIsNoop(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	if err := h.WriteEvents(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if err := h.WriteEvents([]types.Event{}); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if got := h.Tail(); got != 0 {
		t.Errorf("tail moved to %d on empty batches", got)
	}
}

// TestReadAtTail verifies the fast path: reading at the tail returns the
// same marker and an empty array, regardless of history.
func TestReadAtTail(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	for i := 0; i < 3; i++ {
		tail := h.Tail()
		next, data, err := h.ReadSince(tail)
		if err != nil {
			t.Fatalf("ReadSince(tail=%d): %v", tail, err)
		}
		if next != tail || string(data) != "[]" {
			t.Errorf("ReadSince(tail) = (%d, %q), want (%d, \"[]\")", next, data, tail)
		}
		if err := h.WriteEvents([]types.Event{event("i", fmt.Sprint(i))}); err != nil {
			t.Fatalf("WriteEvents: %v", err)
		}
	}
}

// TestReadIdempotent verifies repeated reads from the same marker with no
// intervening writes return identical results.
func TestReadIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	if err := h.WriteEvents([]types.Event{event("a", "1"), event("b", "2")}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	next1, data1, err := h.ReadSince(0)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	next2, data2, err := h.ReadSince(0)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if next1 != next2 || !bytes.Equal(data1, data2) {
		t.Errorf("reads differ: (%d, %q) vs (%d, %q)", next1, data1, next2, data2)
	}
}

// TestChainedReadsPartitionHistory verifies markers chain without gap or
// overlap: following nextMarker from 0 reproduces the full history in order,
// and the final read returns nothing.
func TestChainedReadsPartitionHistory(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChunkSize = 40 // force several reads over the history
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	var written []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("ev-%02d", i)
		written = append(written, id)
		if err := h.WriteEvents([]types.Event{event("id", id)}); err != nil {
			t.Fatalf("WriteEvents %d: %v", i, err)
		}
	}

	var got []string
	marker := int64(0)
	for marker < h.Tail() {
		next, data, err := h.ReadSince(marker)
		if err != nil {
			t.Fatalf("ReadSince(%d): %v", marker, err)
		}
		if next <= marker {
			t.Fatalf("no forward progress: marker %d -> %d", marker, next)
		}
		for _, e := range decodeEvents(t, data) {
			got = append(got, e["id"].(string))
		}
		marker = next
	}

	if len(got) != len(written) {
		t.Fatalf("chained reads returned %d events, want %d", len(got), len(written))
	}
	for i := range written {
		if got[i] != written[i] {
			t.Fatalf("event %d = %q, want %q", i, got[i], written[i])
		}
	}

	next, data, err := h.ReadSince(marker)
	if err != nil || next != marker || string(data) != "[]" {
		t.Errorf("read past history = (%d, %q, %v), want (%d, \"[]\", nil)", next, data, err, marker)
	}
}

// TestMarkerOutOfRange verifies negative and past-tail markers are rejected
// without touching log state.
func TestMarkerOutOfRange(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	if err := h.WriteEvents([]types.Event{event("x", "y")}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	tail := h.Tail()

	for _, marker := range []int64{-1, tail + 1, tail + 1000} {
		if _, _, err := h.ReadSince(marker); !errors.Is(err, disk.ErrMarkerOutOfRange) {
			t.Errorf("ReadSince(%d) error = %v, want ErrMarkerOutOfRange", marker, err)
		}
	}

	if got := h.Tail(); got != tail {
		t.Errorf("failed reads moved the tail: %d -> %d", tail, got)
	}
	if _, data, err := h.ReadSince(0); err != nil || len(decodeEvents(t, data)) != 1 {
		t.Errorf("log state changed by failed reads: %q, %v", data, err)
	}
}

// TestConcurrentWritersNoInterleave verifies batches from concurrent
// submitters are each applied whole, and the final log is a permutation of
// whole batches with every event intact.
func TestConcurrentWritersNoInterleave(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChunkSize = 1 << 20
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	const writers = 8
	const perBatch = 5

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			batch := make([]types.Event, perBatch)
			for i := range batch {
				batch[i] = event("writer", fmt.Sprint(w), "seq", fmt.Sprint(i))
			}
			if err := h.WriteEvents(batch); err != nil {
				t.Errorf("writer %d: %v", w, err)
			}
		}(w)
	}
	wg.Wait()

	_, data, err := h.ReadSince(0)
	if err != nil {
		t.Fatalf("ReadSince(0): %v", err)
	}
	events := decodeEvents(t, data)
	if len(events) != writers*perBatch {
		t.Fatalf("got %d events, want %d", len(events), writers*perBatch)
	}

	// Within one writer's batch the sequence must be contiguous and in
	// order, since a batch is applied as a unit.
	lastSeq := map[string]int{}
	for _, e := range events {
		w := e["writer"].(string)
		seq := e["seq"].(string)
		want := fmt.Sprint(lastSeq[w])
		if seq != want {
			t.Fatalf("writer %s: seq %s out of order, want %s", w, seq, want)
		}
		lastSeq[w]++
	}
}

// TestReadObservesCommittedTailOnly verifies a reader holding a pre-write
// marker sees exactly the new batch once the write completes.
func TestReadObservesCommittedTailOnly(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer h.Close()

	if err := h.WriteEvents([]types.Event{event("phase", "before")}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	preTail := h.Tail()

	if err := h.WriteEvents([]types.Event{event("phase", "after")}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	next, data, err := h.ReadSince(preTail)
	if err != nil {
		t.Fatalf("ReadSince(%d): %v", preTail, err)
	}
	events := decodeEvents(t, data)
	if len(events) != 1 || events[0]["phase"] != "after" {
		t.Errorf("read from pre-write tail returned %v", events)
	}
	if next != h.Tail() {
		t.Errorf("nextMarker = %d, want %d", next, h.Tail())
	}
}

// TestOnDiskLayout verifies interoperability: the event file is records
// joined by the two-byte delimiter and the offset file is the decimal tail.
func TestOnDiskLayout(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	if err := h.WriteEvents([]types.Event{event("k", "v")}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	tail := h.Tail()
	h.Close()

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, "log.events"))
	if err != nil {
		t.Fatalf("read event file: %v", err)
	}
	if want := `{"k":"v"}` + ",\n"; string(data) != want {
		t.Errorf("event file = %q, want %q", data, want)
	}

	stored, err := os.ReadFile(filepath.Join(cfg.DataDir, "log.tail"))
	if err != nil {
		t.Fatalf("read offset file: %v", err)
	}
	if want := fmt.Sprint(tail); string(stored) != want {
		t.Errorf("offset file = %q, want %q", stored, want)
	}
}

// TestWriteAfterClose verifies submissions after shutdown fail cleanly.
func TestWriteAfterClose(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := disk.NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	h.Close()

	if err := h.WriteEvents([]types.Event{event("too", "late")}); err == nil {
		t.Error("expected error writing after Close")
	}
}
