package disk

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/downfa11-org/go-eventlog/pkg/config"
	"github.com/downfa11-org/go-eventlog/pkg/metrics"
	"github.com/downfa11-org/go-eventlog/pkg/offset"
	"github.com/downfa11-org/go-eventlog/pkg/types"
)

const (
	eventsFileName = "log.events"
	offsetFileName = "log.tail"
)

var (
	// ErrInconsistentState is fatal: the offset file and the event file
	// disagree in a way no recovery strategy can resolve.
	ErrInconsistentState = errors.New("event log state is inconsistent")

	// ErrMarkerOutOfRange rejects a read whose marker is negative or past
	// the current tail.
	ErrMarkerOutOfRange = errors.New("marker out of range")

	// ErrClosed rejects writes submitted after Close.
	ErrClosed = errors.New("event log is closed")
)

// Handler owns the append-only event file and its offset file. After startup
// the single writer goroutine is the only mutator of either file; readers
// observe the published tail and never look past it.
type Handler struct {
	eventsPath string
	chunkSize  int

	file    *os.File
	writer  *bufio.Writer
	offsets *offset.Store

	tail atomic.Int64

	writeCh    chan batchRequest
	done       chan struct{}
	terminated chan struct{}

	closeOnce sync.Once
	shutdown  sync.WaitGroup
}

type batchRequest struct {
	data   []byte
	count  int
	result chan error
}

// NewHandler runs startup recovery on the files under cfg.DataDir and, on
// success, starts the writer goroutine positioned at the recovered tail.
func NewHandler(cfg *config.Config) (*Handler, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	eventsPath := filepath.Join(cfg.DataDir, eventsFileName)
	offsetPath := filepath.Join(cfg.DataDir, offsetFileName)

	file, err := openLog(eventsPath)
	if err != nil {
		return nil, err
	}

	offsets, err := offset.Open(offsetPath)
	if err != nil {
		file.Close()
		return nil, err
	}

	tail, err := recoverState(file, offsets, cfg.BackupDir)
	if err != nil {
		file.Close()
		offsets.Close()
		return nil, err
	}

	h := &Handler{
		eventsPath: eventsPath,
		chunkSize:  cfg.ChunkSize,
		file:       file,
		writer:     bufio.NewWriter(file),
		offsets:    offsets,
		writeCh:    make(chan batchRequest, cfg.ChannelBufferSize),
		done:       make(chan struct{}),
		terminated: make(chan struct{}),
	}
	h.tail.Store(tail)
	metrics.LogTail.Set(float64(tail))

	h.shutdown.Add(1)
	go func() {
		defer h.shutdown.Done()
		h.writeLoop()
	}()

	return h, nil
}

// WriteEvents appends the batch atomically: the full batch and the advanced
// offset become durable together, or neither does. An empty batch is a
// successful no-op. Callers block until their own batch is applied; batches
// from concurrent callers are applied strictly in submission order.
func (h *Handler) WriteEvents(events []types.Event) error {
	data, err := types.EncodeBatch(events)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	req := batchRequest{data: data, count: len(events), result: make(chan error, 1)}

	select {
	case <-h.done:
		return ErrClosed
	case h.writeCh <- req:
	}
	metrics.QueueDepth.Set(float64(len(h.writeCh)))

	select {
	case err := <-req.result:
		return err
	case <-h.terminated:
		return fmt.Errorf("%w before batch was applied", ErrClosed)
	}
}

// Tail reports the current end of durable, complete data.
func (h *Handler) Tail() int64 {
	return h.tail.Load()
}

// Close stops accepting writes, drains queued batches, finishes the in-flight
// one, and releases both file handles. It blocks until the writer goroutine
// has fully stopped.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.shutdown.Wait()
	})
}
