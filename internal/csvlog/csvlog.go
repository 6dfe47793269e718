// Package csvlog appends weekly records to the CSV time-tracking log.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"timesheet/internal/aggregate"
	appLog "timesheet/internal/log"
)

// ErrHeaderMismatch means the existing file has different columns than the
// record being appended.
var ErrHeaderMismatch = errors.New("csv header does not match record columns")

// Append writes rec to path. A new or empty file gets the header first; an
// existing file only gets the row, after its header has been checked.
func Append(path string, rec aggregate.WeeklyRecord) error {
	header := aggregate.Header()

	writeHeader := false
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeHeader = true
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case info.Size() == 0:
		writeHeader = true
	default:
		existing, err := readHeader(path)
		if err != nil {
			return err
		}
		if !sameHeader(existing, header) {
			return fmt.Errorf("%w: %s has %d columns starting %q", ErrHeaderMismatch, path, len(existing), existing[0])
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create csv directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(rec.Row()); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	appLog.Info("csv row appended", "path", path, "week", rec.Key(), "header", writeHeader)
	return f.Close()
}

// ReadAll returns the header and data rows of the log at path.
func ReadAll(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	h, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s has no header", ErrHeaderMismatch, path)
		}
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	return h, nil
}

// sameHeader compares column lists. Older logs left the first column
// unnamed, which is accepted as week_start.
func sameHeader(existing, want []string) bool {
	if len(existing) != len(want) {
		return false
	}
	if existing[0] == "" {
		existing = append([]string{want[0]}, existing[1:]...)
	}
	return slices.Equal(existing, want)
}
