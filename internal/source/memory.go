package source

import "context"

// Memory is an in-memory Pager over a fixed slice of records.
type Memory struct {
	Records []Record
	// Fail, when set, is returned for any page starting at or after FailAt.
	Fail   error
	FailAt int
	// Calls counts Page invocations.
	Calls int
}

// Page implements Pager.
func (m *Memory) Page(_ context.Context, offset, limit int) ([]Record, error) {
	m.Calls++
	if m.Fail != nil && offset >= m.FailAt {
		return nil, m.Fail
	}
	if offset >= len(m.Records) {
		return nil, nil
	}
	end := min(offset+limit, len(m.Records))
	page := make([]Record, end-offset)
	copy(page, m.Records[offset:end])
	return page, nil
}
