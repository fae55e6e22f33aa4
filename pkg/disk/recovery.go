package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/downfa11-org/go-eventlog/pkg/metrics"
	"github.com/downfa11-org/go-eventlog/pkg/offset"
	"github.com/downfa11-org/go-eventlog/util"
)

// recoverState reconciles the stored offset against the event file's actual
// length and returns the tail the writer resumes from.
//
//   - both files empty: fresh log, offset initialized to 0
//   - offset absent but event data present: fatal, cannot safely resume
//   - offset past the file length: fatal, the offset cannot be satisfied
//   - offset short of the file length: a write was interrupted mid-batch;
//     snapshot both files for forensics, then truncate the orphaned bytes
func recoverState(file *os.File, offsets *offset.Store, backupDir string) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat event file: %w", err)
	}
	fileLen := info.Size()

	stored, err := offsets.ReadTail()
	if errors.Is(err, offset.ErrEmpty) {
		if fileLen != 0 {
			return 0, fmt.Errorf("%w: %d bytes of event data but no recorded offset", ErrInconsistentState, fileLen)
		}
		if err := offsets.WriteTail(0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if stored > fileLen {
		return 0, fmt.Errorf("%w: stored offset %d exceeds event file length %d", ErrInconsistentState, stored, fileLen)
	}

	if stored < fileLen {
		util.Warn("event file is %d bytes past the stored offset %d, taking backup and truncating", fileLen-stored, stored)
		if err := backupSnapshot(backupDir, file.Name(), offsets.Path()); err != nil {
			return 0, fmt.Errorf("backup before recovery: %w", err)
		}
		if err := file.Truncate(stored); err != nil {
			return 0, fmt.Errorf("truncate to stored offset %d: %w", stored, err)
		}
		metrics.RecoveryBackups.Inc()
	}

	return stored, nil
}

// backupSnapshot copies the event and offset files into dir under a shared
// timestamped name, preserving the pre-recovery state for an operator.
func backupSnapshot(dir, eventsPath, offsetPath string) error {
	stamp := time.Now().UTC().Format("20060102T150405.000000000")
	if err := copyFile(eventsPath, filepath.Join(dir, "backup_"+stamp+".events")); err != nil {
		return err
	}
	return copyFile(offsetPath, filepath.Join(dir, "backup_"+stamp+".tail"))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
