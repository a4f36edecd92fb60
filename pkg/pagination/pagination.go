package pagination

import "math"

// PageParams selects one page of a listing. Page 0 means "everything".
type PageParams struct {
	Page     int
	PageSize int
}

// PageInfo describes the page that was returned.
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Normalize clamps the page size and keeps page 0 as "all rows".
func (p PageParams) Normalize() PageParams {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// All reports whether no paging was requested.
func (p PageParams) All() bool {
	return p.Page == 0
}

func (p PageParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

func (p PageParams) Limit() int {
	return p.PageSize
}

// NewPageInfo computes the page summary for total rows.
func NewPageInfo(page, pageSize int, total int64) *PageInfo {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return &PageInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
