package service

import "math"

// ComputeNumPages reports ceil(itemCount/pageSize) only when the items do not
// fit on one page, and 0 otherwise. Listings that fit on a single page report
// zero pages, which is what the storefront UI expects.
func ComputeNumPages(itemCount, pageSize int) int {
	if pageSize <= 0 || itemCount <= pageSize {
		return 0
	}
	return (itemCount + pageSize - 1) / pageSize
}

// pageBounds validates a zero-based page request and returns the offset.
// ok is false when the offset is past anything a store could hold.
func pageBounds(page, pageSize int) (offset int, ok bool, err error) {
	if page < 0 {
		return 0, false, invalid("page", "must not be negative")
	}
	if pageSize <= 0 {
		return 0, false, invalid("pageSize", "must be positive")
	}
	if page > math.MaxInt32/pageSize {
		return 0, false, nil
	}
	return page * pageSize, true, nil
}
