package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePagination reads limit and offset from their raw query values.
// Blank values default to 0; a limit of 0 means every matching row.
func ParsePagination(limit, offset string) (int, int, error) {
	l, err := parseNonNegative("limit", limit)
	if err != nil {
		return 0, 0, err
	}
	o, err := parseNonNegative("offset", offset)
	if err != nil {
		return 0, 0, err
	}
	return l, o, nil
}

func parseNonNegative(name, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrPagination, name, raw)
	}
	return n, nil
}

// Parse builds a Query from the raw list parameters.
func Parse(limit, offset, filter, andFilter, orFilter, sort string) (Query, error) {
	var (
		q   Query
		err error
	)
	if q.Limit, q.Offset, err = ParsePagination(limit, offset); err != nil {
		return Query{}, err
	}
	if q.Filter, err = ParseFilter(filter); err != nil {
		return Query{}, err
	}
	if q.And, err = ParseFilterList(andFilter); err != nil {
		return Query{}, err
	}
	if q.Or, err = ParseFilterList(orFilter); err != nil {
		return Query{}, err
	}
	if q.Sort, err = ParseSort(sort); err != nil {
		return Query{}, err
	}
	return q, nil
}
