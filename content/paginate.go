package content

// Page is one window of a paginated list.
type Page[T any] struct {
	Items      []T
	Number     int
	TotalPages int
	Total      int
	Links      []int
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }

// Prev is the previous page number.
func (p Page[T]) Prev() int { return p.Number - 1 }

// Next is the next page number.
func (p Page[T]) Next() int { return p.Number + 1 }

const maxPageLinks = 5

// Paginate returns page number of items split into pages of size. Page
// numbers are clamped into range; an empty list yields a single empty page.
func Paginate[T any](items []T, number, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}
	start := (number - 1) * size
	end := min(start+size, total)
	var window []T
	if start < total {
		window = items[start:end]
	}
	return Page[T]{
		Items:      window,
		Number:     number,
		TotalPages: pages,
		Total:      total,
		Links:      pageLinks(number, pages),
	}
}

// pageLinks returns at most maxPageLinks page numbers centered on current.
func pageLinks(current, pages int) []int {
	first := current - maxPageLinks/2
	last := first + maxPageLinks - 1
	if last > pages {
		last = pages
		first = last - maxPageLinks + 1
	}
	if first < 1 {
		first = 1
	}
	links := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		links = append(links, i)
	}
	return links
}
