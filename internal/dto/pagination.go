package dto

// PageMeta describes the position of a page in a list response.
type PageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewPageMeta builds pagination metadata with defaults applied.
func NewPageMeta(page, pageSize int, total int64) PageMeta {
	if page <= 0 {
		page = 1
	}
	return PageMeta{Page: page, PageSize: pageSize, Total: total}
}
