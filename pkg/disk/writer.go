package disk

import (
	"fmt"
	"time"

	"github.com/downfa11-org/go-eventlog/pkg/metrics"
	"github.com/downfa11-org/go-eventlog/util"
)

func (h *Handler) writeLoop() {
	defer close(h.terminated)

	for {
		select {
		case req := <-h.writeCh:
			req.result <- h.applyBatch(req)
			metrics.QueueDepth.Set(float64(len(h.writeCh)))
		case <-h.done:
			for {
				select {
				case req := <-h.writeCh:
					req.result <- h.applyBatch(req)
				default:
					h.closeFiles()
					return
				}
			}
		}
	}
}

// applyBatch writes one batch's bytes, persists the new offset, then
// publishes the new tail. A failure at any step rolls both files back to the
// last known-good tail and is reported to this batch's submitter only.
func (h *Handler) applyBatch(req batchRequest) error {
	last := h.tail.Load()
	start := time.Now()

	if _, err := h.writer.Write(req.data); err != nil {
		h.rollback(last)
		return fmt.Errorf("append batch: %w", err)
	}
	if err := h.writer.Flush(); err != nil {
		h.rollback(last)
		return fmt.Errorf("flush batch: %w", err)
	}
	if err := h.file.Sync(); err != nil {
		h.rollback(last)
		return fmt.Errorf("sync event file: %w", err)
	}

	next := last + int64(len(req.data))
	if err := h.offsets.WriteTail(next); err != nil {
		h.rollback(last)
		return fmt.Errorf("persist offset: %w", err)
	}

	h.tail.Store(next)

	metrics.BatchesCommitted.Inc()
	metrics.EventsAppended.Add(float64(req.count))
	metrics.BytesWritten.Add(float64(len(req.data)))
	metrics.LogTail.Set(float64(next))
	metrics.AppendLatencyHist.Observe(time.Since(start).Seconds())
	return nil
}

// rollback discards any partially applied bytes so the files again end
// exactly at the last known-good tail. The published tail never moved, so
// readers were never able to observe the aborted batch.
func (h *Handler) rollback(last int64) {
	metrics.BatchFailures.Inc()
	h.writer.Reset(h.file)
	if err := h.file.Truncate(last); err != nil {
		util.Error("rollback: truncate event file to %d failed: %v", last, err)
	}
	if err := h.offsets.WriteTail(last); err != nil {
		util.Error("rollback: restore offset %d failed: %v", last, err)
	}
}

func (h *Handler) closeFiles() {
	if err := h.writer.Flush(); err != nil {
		util.Error("flush failed during shutdown: %v", err)
	}
	if err := h.file.Sync(); err != nil {
		util.Error("sync failed during shutdown: %v", err)
	}
	if err := h.file.Close(); err != nil {
		util.Error("close event file failed during shutdown: %v", err)
	}
	if err := h.offsets.Close(); err != nil {
		util.Error("close offset file failed during shutdown: %v", err)
	}
}
