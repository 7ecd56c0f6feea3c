// Package pagination parses page/limit/sort query parameters and builds
// response metadata for list endpoints.
package pagination

import (
	"net/http"
	"strconv"
	"strings"
)

// Default pagination values
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params represents pagination query parameters
type Params struct {
	Page  int    `json:"page"` // 1-based
	Limit int    `json:"limit"`
	Sort  string `json:"sort,omitempty"` // field name, "-" prefix for descending
}

// Meta contains pagination metadata for responses
type Meta struct {
	CurrentPage  int  `json:"current_page"`
	PerPage      int  `json:"per_page"`
	TotalPages   int  `json:"total_pages"`
	TotalRecords int  `json:"total_records"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
}

// Result is a page of items with its metadata.
type Result[T any] struct {
	Items []T
	Meta  Meta
}

// ParseParams extracts and validates pagination parameters from HTTP request
func ParseParams(r *http.Request) Params {
	q := r.URL.Query()
	p := Params{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  strings.TrimSpace(q.Get("sort")),
	}

	if pageStr := q.Get("page"); pageStr != "" {
		if v, err := strconv.Atoi(pageStr); err == nil && v > 0 {
			p.Page = v
		}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			p.Limit = min(v, MaxLimit)
		}
	}

	return p
}

// Validate ensures pagination parameters are valid and sets defaults if needed
func (p *Params) Validate() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

// CalculateOffset returns the SQL OFFSET value based on page and limit
func (p *Params) CalculateOffset() int {
	return (p.Page - 1) * p.Limit
}

// CalculateMeta creates pagination metadata based on total records
func (p *Params) CalculateMeta(totalRecords int) Meta {
	totalPages := (totalRecords + p.Limit - 1) / p.Limit
	if totalPages < 1 {
		totalPages = 1
	}

	return Meta{
		CurrentPage:  p.Page,
		PerPage:      p.Limit,
		TotalPages:   totalPages,
		TotalRecords: totalRecords,
		HasNext:      p.Page < totalPages,
		HasPrevious:  p.Page > 1,
	}
}

// OrderBy maps the requested sort onto a whitelisted SQL column. Unknown
// fields fall back to def, which is used verbatim.
func (p *Params) OrderBy(columns map[string]string, def string) string {
	field := p.Sort
	dir := "ASC"
	if strings.HasPrefix(field, "-") {
		field = field[1:]
		dir = "DESC"
	}
	col, ok := columns[field]
	if !ok {
		return def
	}
	return col + " " + dir
}
