package domain

// DefaultPageLimit is the number of items returned when no limit is given.
const DefaultPageLimit = 50

// Page is an offset+limit window over an insertion-ordered sequence.
// Nil fields take their defaults (from 0, limit DefaultPageLimit).
type Page struct {
	FromIndex *uint64
	Limit     *uint64
}

func NewPage(from, limit uint64) Page {
	return Page{FromIndex: &from, Limit: &limit}
}

func (p Page) Offset() uint64 {
	if p.FromIndex == nil {
		return 0
	}
	return *p.FromIndex
}

func (p Page) Size() uint64 {
	if p.Limit == nil {
		return DefaultPageLimit
	}
	return *p.Limit
}

// Window returns the [start, end) bounds of the page over n items. An
// out-of-range offset yields an empty window rather than an error.
func (p Page) Window(n int) (int, int) {
	total := uint64(n)
	start := p.Offset()
	if start >= total {
		return n, n
	}
	end := total
	if size := p.Size(); size < total-start {
		end = start + size
	}
	return int(start), int(end)
}

// Paginate applies p to items and returns a fresh slice.
func Paginate[T any](items []T, p Page) []T {
	start, end := p.Window(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
