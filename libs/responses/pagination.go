package responses

// Pagination - the page metadata returned alongside a paged listing
// { page: 1, limit: 10, total: 42, pages: 5 }
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination - page metadata for total rows split into pages of limit
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 && total > 0 {
		pages = (total + limit - 1) / limit
	}

	return Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: pages,
	}
}
