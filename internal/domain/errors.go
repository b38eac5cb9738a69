package domain

import (
	"fmt"
	"strings"
	"time"
)

// SchemaError reports ledger columns that are required but absent. The caller may re-upload.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("ledger is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParseError reports a ledger cell that could not be parsed.
// Row is 1-based and counts data rows only (the header is not a row).
type ParseError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s column at row %d (%q): %v", e.Column, e.Row, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UpstreamError reports a price API failure for one pair.
type UpstreamError struct {
	Pair string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("price source failed for %s: %v", e.Pair, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PriceMissingError reports a (pair, day) the valuation needs but the price store lacks.
// It means the price database is out of date and a refresh is required.
type PriceMissingError struct {
	Pair string
	Day  time.Time
}

func (e *PriceMissingError) Error() string {
	return fmt.Sprintf("price database out of date: no %s bar for %s", e.Pair, e.Day.Format(DateFormat))
}

// WindowError reports a requested start older than the price venue's history limit.
type WindowError struct {
	Requested time.Time
	Earliest  time.Time
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("requested start %s predates the price history limit %s, choose a later start",
		e.Requested.Format(DateFormat), e.Earliest.Format(DateFormat))
}
