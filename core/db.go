package core

const (
	DefaultPageSize = 30
	MaxPageSize     = 100
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Page selects a 1-based page of a listing.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"limit"`
}

// Normalize applies defaults: page 1, DefaultPageSize items, at most MaxPageSize.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// TotalPages is the number of pages needed to list total items.
func (p Page) TotalPages(total int) int {
	if p.Size < 1 || total == 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}
