package model

import "time"

// RunFilter restricts a run listing. Zero values mean "no filter".
type RunFilter struct {
	Project string
	Branch  string
	From    time.Time
	To      time.Time
}

// PageRequest selects one page of a listing.
type PageRequest struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the page to >= 1 and the page size to [1, MaxPageSize].
// Defaults for absent values are the caller's concern.
func (p PageRequest) Normalize() PageRequest {
	p.Page = max(p.Page, 1)
	p.PageSize = min(max(p.PageSize, 1), MaxPageSize)
	return p
}

// Offset returns the number of rows preceding the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// RunPage is one page of runs plus the total number of matching runs.
type RunPage struct {
	Runs     []Run
	Page     int
	PageSize int
	Total    int
}

// RunSummary is a stored run together with its derived verdicts.
type RunSummary struct {
	Run     Run
	Verdict RunVerdict
}
