// Package pagination converts page/limit requests into offsets and page
// counts shared by every list operation.
package pagination

// Page is the resolved slice window for a list query.
type Page struct {
	Offset      int
	Limit       int
	TotalPages  int
	CurrentPage int
}

// Paginate resolves (page, limit) against a total row count. A page below 1
// is treated as page 1. TotalPages is the ceiling of total/limit; a page
// beyond it simply yields an offset past the data, not an error.
func Paginate(page, limit int, total int64) Page {
	if page < 1 {
		page = 1
	}
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Page{
		Offset:      (page - 1) * limit,
		Limit:       limit,
		TotalPages:  totalPages,
		CurrentPage: page,
	}
}
