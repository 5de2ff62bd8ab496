package geosheet

import (
	"errors"
	"fmt"
)

var (
	// ErrGeometry is returned when a shift would move a range outside the sheet.
	// It signals that the pivot, delta and layout passed by the caller disagree
	// with the template; it is never retried.
	ErrGeometry = errors.New("geometry error")

	// ErrSheetNotFound is returned when the workbook lacks the requested sheet.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrLastRow is returned when removing a row would empty a section that
	// must keep at least one row.
	ErrLastRow = errors.New("cannot remove the last row of a section")

	// ErrUnknownAction is returned for actions the template does not define.
	ErrUnknownAction = errors.New("unknown action")

	// ErrLocked is returned when the document lock could not be taken in time.
	ErrLocked = errors.New("document is locked")
)

// GeometryError describes a range that could not be shifted.
type GeometryError struct {
	Axis  string // "row" or "col"
	Range CellRange
	Pivot int
	Delta int
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry error: shifting %s on %s axis by %d at pivot %d leaves index below 1",
		e.Range, e.Axis, e.Delta, e.Pivot)
}

// Is reports ErrGeometry so callers can use errors.Is.
func (e *GeometryError) Is(target error) bool {
	return target == ErrGeometry
}
