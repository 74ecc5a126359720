package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSort is returned when a sort field is not in the allow-list
	ErrInvalidSort = errors.New("invalid sort field")

	// ErrPageOutOfRange is returned when the requested page has no data
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrCategoryCycle is returned when the category tree loops back on itself
	ErrCategoryCycle = errors.New("category hierarchy is cyclic")
)

// InvalidSortError names the rejected sort field or direction
type InvalidSortError struct {
	Field     string
	Direction string
}

func (e *InvalidSortError) Error() string {
	if e.Direction != "" {
		return fmt.Sprintf("invalid sort direction %q for field %q", e.Direction, e.Field)
	}
	return fmt.Sprintf("invalid sort field %q, expected one of: %s", e.Field, strings.Join(SortFields(), ", "))
}

func (e *InvalidSortError) Unwrap() error {
	return ErrInvalidSort
}

// PageOutOfRangeError reports the requested page against the available pages
type PageOutOfRangeError struct {
	Page       int
	TotalPages int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("page %d out of range (total pages %d)", e.Page, e.TotalPages)
}

func (e *PageOutOfRangeError) Unwrap() error {
	return ErrPageOutOfRange
}

// CycleError names the category at which traversal detected a loop or ran too deep
type CycleError struct {
	Root     string
	Category string
	Depth    int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("category %q revisits %q at depth %d", e.Root, e.Category, e.Depth)
}

func (e *CycleError) Unwrap() error {
	return ErrCategoryCycle
}
