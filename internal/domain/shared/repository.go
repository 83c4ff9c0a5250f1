package shared

// Filter carries pagination, ordering, and per-query filter values
// through repository listings.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Filters  map[string]interface{}
}

// DefaultFilter pages from the start, newest rows first.
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  make(map[string]interface{}),
	}
}

// Paginates reports whether the filter carries usable pagination values.
func (f Filter) Paginates() bool {
	return f.Page > 0 && f.PageSize > 0
}

// Offset returns the row offset for the filter's page. Zero when the
// filter does not paginate.
func (f Filter) Offset() int {
	if !f.Paginates() {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
