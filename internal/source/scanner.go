package source

import (
	"context"
	"fmt"
	"iter"
)

// SourceReadError reports a failed page read. The scan stops at Offset.
type SourceReadError struct {
	Offset int
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("reading source page at offset %d: %v", e.Offset, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// Scanner walks a Pager forward one page at a time. It holds at most one
// page and is single-pass; Seek restarts it from an arbitrary offset.
type Scanner struct {
	pager    Pager
	pageSize int

	offset int
	page   []Record
	pos    int
	cur    Record
	last   bool
	pages  int
	err    error
}

// NewScanner returns a Scanner reading pageSize records per page.
// A non-positive pageSize is treated as 1.
func NewScanner(p Pager, pageSize int) *Scanner {
	if pageSize <= 0 {
		pageSize = 1
	}
	return &Scanner{pager: p, pageSize: pageSize}
}

// Seek discards any buffered page and resumes reading at offset.
func (s *Scanner) Seek(offset int) {
	s.offset = offset
	s.page = nil
	s.pos = 0
	s.last = false
	s.err = nil
}

// Next advances to the next record, reading a new page when the buffered
// one is exhausted. It returns false at the end of the archive or on error.
func (s *Scanner) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if s.pos >= len(s.page) {
		if s.last {
			return false
		}
		if err := ctx.Err(); err != nil {
			s.err = &SourceReadError{Offset: s.offset, Err: err}
			return false
		}
		page, err := s.pager.Page(ctx, s.offset, s.pageSize)
		if err != nil {
			s.err = &SourceReadError{Offset: s.offset, Err: err}
			return false
		}
		s.page = page
		s.pos = 0
		s.offset += len(page)
		s.pages++
		s.last = len(page) < s.pageSize
		if len(page) == 0 {
			return false
		}
	}
	s.cur = s.page[s.pos]
	s.pos++
	return true
}

// Record returns the record Next advanced to.
func (s *Scanner) Record() Record { return s.cur }

// Err returns the first read error, if any.
func (s *Scanner) Err() error { return s.err }

// Offset is the offset of the next page to read.
func (s *Scanner) Offset() int { return s.offset }

// Pages is the number of page reads issued so far.
func (s *Scanner) Pages() int { return s.pages }

// All yields every remaining record. A read error is yielded once with a
// zero Record and ends the sequence.
func (s *Scanner) All(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for s.Next(ctx) {
			if !yield(s.Record(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(Record{}, err)
		}
	}
}
