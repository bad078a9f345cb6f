package layout

import "fmt"

// Placement is one image put in one cell.
type Placement struct {
	Slot
	Cell  Rect
	Image Rect
}

// Page is an ordered run of at most PerPage placements.
type Page struct {
	Number     int
	Placements []Placement
}

// Footer is the label printed at the bottom of the page.
func (p Page) Footer() string { return FooterLabel(p.Number) }

// FooterLabel formats the page-number footer.
func FooterLabel(n int) string { return fmt.Sprintf("Page %d", n) }

// Document is the paginated plan for n images.
type Document struct {
	Geometry Geometry
	Pages    []Page
}

// Paginate assigns indices 0..n-1 to pages and cells in order.
func Paginate(g Geometry, n int) Document {
	doc := Document{Geometry: g}
	if n <= 0 {
		return doc
	}
	doc.Pages = make([]Page, 0, g.PageCount(n))
	for i := 0; i < n; i++ {
		s := g.SlotOf(i)
		if len(doc.Pages) < s.Page {
			doc.Pages = append(doc.Pages, Page{Number: s.Page})
		}
		p := &doc.Pages[len(doc.Pages)-1]
		p.Placements = append(p.Placements, Placement{
			Slot:  s,
			Cell:  g.CellRect(s.Row, s.Col),
			Image: g.ImageRect(s.Row, s.Col),
		})
	}
	return doc
}

// Len is the total number of placements.
func (d Document) Len() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Placements)
	}
	return n
}
