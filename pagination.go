package pubsite

import "strconv"

// PageSize is the number of posts per listing page.
const PageSize = 9

// Pagination describes one page of a listing.
type Pagination struct {
	Number     int
	PageSize   int
	TotalCount int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

// Paginate computes the page for total items. TotalPages is never below 1 and
// requested is clamped into [1, TotalPages].
func Paginate(total, pageSize, requested int) Pagination {
	if pageSize < 1 {
		pageSize = PageSize
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	page := requested
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return Pagination{
		Number:     page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		PrevPage:   page - 1,
		NextPage:   page + 1,
	}
}

// Offset is the number of items before this page.
func (p Pagination) Offset() int {
	return (p.Number - 1) * p.PageSize
}

// ParsePage reads a "page" query value. Missing or non-numeric values mean page 1;
// range clamping happens in Paginate.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return n
}
