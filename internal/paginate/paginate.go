// Package paginate implements digg-style windowed pagination: the first
// and last few pages are always visible, a contiguous body of pages
// surrounds the current one, and larger gaps collapse to a marker.
package paginate

import "errors"

var (
	// ErrPageOutOfRange reports a requested page beyond the last one. It
	// is recoverable: interactive callers drop to an empty result instead
	// of failing the request.
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrInvalidPageLength reports a non-positive page length.
	ErrInvalidPageLength = errors.New("page length must be positive")
)

// Gap is the window entry marking a collapsed run of pages. Real page
// numbers start at 1.
const Gap = 0

// Page is one page of a result set together with the window of page
// numbers to display for it.
type Page[T any] struct {
	Number     int
	Items      []T
	TotalItems int
	TotalPages int

	// Window holds the page numbers to show, in order, with Gap entries
	// where a run of pages was collapsed.
	Window []int
}

// Paginate slices items for the current page and computes its window.
// body is the size of the block around the current page, padding the
// number of pages always shown at each edge. Zero items yield a single
// empty page with no gap markers.
func Paginate[T any](items []T, pageLength, body, padding, current int) (Page[T], error) {
	if pageLength < 1 {
		return Page[T]{}, ErrInvalidPageLength
	}
	total := len(items)
	pages := (total + pageLength - 1) / pageLength
	if pages == 0 {
		pages = 1
	}
	if current < 1 || current > pages {
		return Page[T]{}, ErrPageOutOfRange
	}

	lo := (current - 1) * pageLength
	hi := lo + pageLength
	if hi > total {
		hi = total
	}

	return Page[T]{
		Number:     current,
		Items:      items[lo:hi],
		TotalItems: total,
		TotalPages: pages,
		Window:     window(pages, body, padding, current),
	}, nil
}

// window computes the digg page-number window. Gaps of a single page are
// absorbed into the neighbouring block; gaps of two or more collapse to
// one Gap marker.
func window(pages, body, padding, current int) []int {
	start := current - body/2
	if start < 1 {
		start = 1
	}
	if start > pages-body+1 {
		start = pages - body + 1
		if start < 1 {
			start = 1
		}
	}
	end := start + body - 1
	if end > pages {
		end = pages
	}

	// Absorb the edge blocks when the body reaches or nearly reaches
	// them; a 1-page hole is filled rather than marked.
	if start <= padding+2 {
		start = 1
	}
	if end >= pages-padding-1 {
		end = pages
	}

	var w []int
	if start > 1 {
		for p := 1; p <= padding; p++ {
			w = append(w, p)
		}
		w = append(w, Gap)
	}
	for p := start; p <= end; p++ {
		w = append(w, p)
	}
	if end < pages {
		w = append(w, Gap)
		for p := pages - padding + 1; p <= pages; p++ {
			w = append(w, p)
		}
	}
	return w
}
