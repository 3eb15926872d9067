package report

import (
	"fmt"

	"github.com/harrison/fragility/internal/models"
)

// ReadError means the snapshot could not be read. Nothing was computed.
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("could not read data from %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// PersistError means a report was computed but could not be appended to the
// history. Record holds the unsaved report so callers can still show it.
type PersistError struct {
	Record *models.ReportRecord
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("could not persist result (run %s): %v", e.Record.RunID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
