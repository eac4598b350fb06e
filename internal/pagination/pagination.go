// Package pagination computes page windows over an ordered list.
package pagination

// Window is the half-open index range [Start, End) of one page.
type Window struct {
	Total    int
	Page     int
	PageSize int
	Start    int
	End      int
	HasPrev  bool
	HasNext  bool
}

// Compute returns the window of page (zero-based) over total items. A page
// past the end yields an empty window rather than an error. page is expected
// to be >= 0; callers clamp it.
func Compute(total, page, pageSize int) Window {
	start := page * pageSize
	end := start + pageSize

	return Window{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Start:    min(start, total),
		End:      min(end, total),
		HasPrev:  page > 0,
		HasNext:  end < total,
	}
}

func (w Window) Len() int {
	return w.End - w.Start
}

// PrevPage is the page index to link back to, nil on the first page.
func (w Window) PrevPage() *int {
	if !w.HasPrev {
		return nil
	}
	p := w.Page - 1
	return &p
}

func (w Window) NextPage() *int {
	if !w.HasNext {
		return nil
	}
	p := w.Page + 1
	return &p
}

// TotalPages counts the pages needed to show every item; zero when empty.
func (w Window) TotalPages() int {
	if w.PageSize <= 0 || w.Total <= 0 {
		return 0
	}
	return (w.Total + w.PageSize - 1) / w.PageSize
}
