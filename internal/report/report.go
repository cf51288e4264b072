package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/logging"
	"github.com/stravasync/stravasync/internal/store"
)

var csvHeader = []string{"FIRST_NAME", "LAST_NAME", "TYPE", "ACTIVITY_ID", "START_DATE"}

// Writer exports the kudos report to a CSV file.
type Writer struct {
	store  *store.SQLiteStore
	logger *logging.Logger
}

// NewWriter creates a report writer over the given store.
func NewWriter(st *store.SQLiteStore, logger *logging.Logger) *Writer {
	return &Writer{store: st, logger: logger}
}

// WriteCSV queries the kudos report and writes it to path, overwriting
// any previous export. The file always carries the header row, even
// when the report is empty.
func (w *Writer) WriteCSV(ctx context.Context, path string) (int, error) {
	rows, err := w.store.KudosReport(ctx)
	if err != nil {
		return 0, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, &errors.ErrFileWrite{Path: path, Err: err}
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return 0, &errors.ErrFileWrite{Path: path, Err: err}
	}
	for _, r := range rows {
		record := []string{
			r.FirstName,
			r.LastName,
			r.Type,
			strconv.FormatInt(r.ActivityID, 10),
			r.StartDate,
		}
		if err := cw.Write(record); err != nil {
			return 0, &errors.ErrFileWrite{Path: path, Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, &errors.ErrFileWrite{Path: path, Err: err}
	}

	w.logger.Info("kudos report written", "path", path, "rows", len(rows))
	return len(rows), nil
}
