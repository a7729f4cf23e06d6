package query

// Mode is the retrieval strategy for a payment search.
type Mode int

const (
	// ModeSummary answers from pre-aggregated grouped totals, skipping
	// per-record retrieval entirely.
	ModeSummary Mode = iota
	// ModeDetail fetches the denormalized record set and aggregates it
	// in process.
	ModeDetail
)

func (m Mode) String() string {
	if m == ModeSummary {
		return "summary"
	}
	return "detail"
}

// SelectMode is a pure function of the active-filter count and the caller
// intent. An unfiltered interactive search is unmanageable as a listing,
// so it gets the precomputed summary; full-listing callers (exports) need
// every record regardless.
func SelectMode(activeFilters int, needsFullListing bool) Mode {
	if activeFilters == 0 && !needsFullListing {
		return ModeSummary
	}
	return ModeDetail
}
