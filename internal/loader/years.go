package loader

import (
	"fmt"
	"strconv"
	"strings"

	"presupuesto/internal/budget"
)

// ParseYearList parses the year argument of the removal command:
// comma-separated years and inclusive ranges, e.g. "2008-2011,2013".
func ParseYearList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, ok := strings.Cut(part, "-")
		start, err := parseYear(lo)
		if err != nil {
			return nil, err
		}
		end := start
		if ok {
			end, err = parseYear(hi)
			if err != nil {
				return nil, err
			}
		}
		if end < start {
			return nil, fmt.Errorf("%w: inverted range %q", budget.ErrInvalidYear, part)
		}
		for y := start; y <= end; y++ {
			out = append(out, y)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no years in %q", budget.ErrInvalidYear, s)
	}
	return out, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 1 {
		return 0, fmt.Errorf("%w: %q", budget.ErrInvalidYear, s)
	}
	return y, nil
}
