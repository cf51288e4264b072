package watermark

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stravasync/stravasync/internal/errors"
)

// timeLayout matches the timestamps the remote API hands out, so log
// entries and activity start dates compare textually too.
const timeLayout = "2006-01-02T15:04:05Z"

// Entry is one line of the sync log: when a run finished and how many
// activities it processed.
type Entry struct {
	Timestamp time.Time
	Count     int
}

// Log is the append-only record of completed sync runs. Only the most
// recent entry matters for computing the next fetch window; the rest is
// run history. The log is written only after a run completes without
// fatal error, so a crashed or failed run leaves it untouched.
type Log struct {
	path string
}

// NewLog creates a watermark log over the given file path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Last returns the most recent entry. ok is false when no run has ever
// completed, in which case the caller should sync the full history.
func (l *Log) Last() (Entry, bool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, &errors.ErrFileRead{Path: l.path, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2
	records, err := reader.ReadAll()
	if err != nil {
		return Entry{}, false, &errors.ErrFileRead{Path: l.path, Err: err}
	}
	if len(records) == 0 {
		return Entry{}, false, nil
	}

	last := records[len(records)-1]
	ts, err := time.Parse(timeLayout, last[0])
	if err != nil {
		return Entry{}, false, &errors.ErrFileRead{Path: l.path, Err: fmt.Errorf("bad timestamp %q: %w", last[0], err)}
	}

	var count int
	if _, err := fmt.Sscanf(last[1], "%d", &count); err != nil {
		return Entry{}, false, &errors.ErrFileRead{Path: l.path, Err: fmt.Errorf("bad count %q: %w", last[1], err)}
	}

	return Entry{Timestamp: ts, Count: count}, true, nil
}

// Append records a completed run. Appends only; earlier entries are
// never rewritten.
func (l *Log) Append(e Entry) error {
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &errors.ErrFileWrite{Path: l.path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{e.Timestamp.UTC().Format(timeLayout), fmt.Sprintf("%d", e.Count)}); err != nil {
		return &errors.ErrFileWrite{Path: l.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &errors.ErrFileWrite{Path: l.path, Err: err}
	}
	return nil
}
