package disk

import (
	"bytes"
	"fmt"

	"github.com/downfa11-org/go-eventlog/pkg/metrics"
	"github.com/downfa11-org/go-eventlog/pkg/types"
	"golang.org/x/exp/mmap"
)

var delimiter = []byte(types.Delimiter)

var emptyResult = []byte("[]")

// ReadSince returns every complete record in [marker, nextMarker) as a JSON
// array, reading windows of at most chunkSize bytes. The window only ever
// grows when the record starting at marker is itself larger than one chunk;
// that call returns exactly the one oversized record.
//
// Only bytes below the tail observed at entry are read, so a call running
// concurrently with a write sees either the pre-write or post-write log,
// never a mixture.
func (h *Handler) ReadSince(marker int64) (int64, []byte, error) {
	tail := h.tail.Load()
	if marker < 0 || marker > tail {
		metrics.MarkerRejections.Inc()
		return 0, nil, fmt.Errorf("%w: marker %d, tail %d", ErrMarkerOutOfRange, marker, tail)
	}

	metrics.ReadsServed.Inc()
	if marker == tail {
		return marker, emptyResult, nil
	}

	r, err := mmap.Open(h.eventsPath)
	if err != nil {
		return 0, nil, fmt.Errorf("open event file for read: %w", err)
	}
	defer r.Close()

	end := marker + int64(h.chunkSize)
	if end > tail {
		end = tail
	}
	buf := make([]byte, end-marker)
	if _, err := r.ReadAt(buf, marker); err != nil {
		return 0, nil, fmt.Errorf("read window at %d: %w", marker, err)
	}
	metrics.ReadChunks.Inc()

	// The delimiter is two bytes and may straddle the window edge: when the
	// window ends on its first byte, one byte of lookahead decides whether a
	// boundary ends exactly here.
	if end < tail && buf[len(buf)-1] == delimiter[0] {
		one := make([]byte, 1)
		if _, err := r.ReadAt(one, end); err != nil {
			return 0, nil, fmt.Errorf("read lookahead at %d: %w", end, err)
		}
		if one[0] == delimiter[1] {
			buf = append(buf, one[0])
			end++
		}
	}

	cut := bytes.LastIndex(buf, delimiter)
	for cut < 0 {
		// No boundary in the window: the first record is oversized. Grow
		// chunk by chunk and switch to the first boundary, which is exactly
		// where that record ends.
		if end >= tail {
			return 0, nil, fmt.Errorf("no record boundary between marker %d and tail %d", marker, tail)
		}
		prev := len(buf)
		next := end + int64(h.chunkSize)
		if next > tail {
			next = tail
		}
		more := make([]byte, next-end)
		if _, err := r.ReadAt(more, end); err != nil {
			return 0, nil, fmt.Errorf("read window at %d: %w", end, err)
		}
		metrics.ReadChunks.Inc()
		buf = append(buf, more...)
		end = next

		// Rescan from one byte before the previous edge so a straddling
		// delimiter is found as a unit.
		if i := bytes.Index(buf[prev-1:], delimiter); i >= 0 {
			cut = prev - 1 + i
		}
	}

	// Records separated by the delimiter are already valid JSON array
	// elements; strip the final delimiter and wrap.
	body := buf[:cut]
	out := make([]byte, 0, len(body)+2)
	out = append(out, '[')
	out = append(out, body...)
	out = append(out, ']')

	return marker + int64(cut+len(delimiter)), out, nil
}
