package notion

// ResultPage is one page of a paginated listing. An empty NextCursor marks
// the final page.
type ResultPage[T any] struct {
	Results    []T
	NextCursor string
}

// Last reports whether this is the final page of the listing.
func (p ResultPage[T]) Last() bool {
	return p.NextCursor == ""
}
