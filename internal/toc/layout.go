package toc

// Layout controls how the index is drawn. Distances are millimetres, font
// sizes points. Rows have a fixed height so pagination depends only on the
// number of rows.
type Layout struct {
	Title         string
	FontFamily    string
	TitleFontSize float64
	FontSize      float64

	PageWidth  float64
	PageHeight float64

	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64

	TitleHeight     float64
	RowHeight       float64
	Indent          float64
	SectionWidth    float64
	PageColumnWidth float64

	// NameBudget is the maximum name length in characters per level; the last
	// value applies to deeper levels.
	NameBudget []int
}

// DefaultLayout is an A4 portrait index.
func DefaultLayout() Layout {
	return Layout{
		Title:           "Index",
		FontFamily:      "Helvetica",
		TitleFontSize:   16,
		FontSize:        10,
		PageWidth:       210,
		PageHeight:      297,
		MarginTop:       20,
		MarginBottom:    20,
		MarginLeft:      20,
		MarginRight:     20,
		TitleHeight:     14,
		RowHeight:       7,
		Indent:          6,
		SectionWidth:    14,
		PageColumnWidth: 25,
		NameBudget:      []int{70, 64, 58, 52},
	}
}

// withDefaults fills zero fields from DefaultLayout.
func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.FontFamily == "" {
		l.FontFamily = d.FontFamily
	}
	setDefault(&l.TitleFontSize, d.TitleFontSize)
	setDefault(&l.FontSize, d.FontSize)
	setDefault(&l.PageWidth, d.PageWidth)
	setDefault(&l.PageHeight, d.PageHeight)
	setDefault(&l.MarginTop, d.MarginTop)
	setDefault(&l.MarginBottom, d.MarginBottom)
	setDefault(&l.MarginLeft, d.MarginLeft)
	setDefault(&l.MarginRight, d.MarginRight)
	setDefault(&l.TitleHeight, d.TitleHeight)
	setDefault(&l.RowHeight, d.RowHeight)
	setDefault(&l.Indent, d.Indent)
	setDefault(&l.SectionWidth, d.SectionWidth)
	setDefault(&l.PageColumnWidth, d.PageColumnWidth)
	if len(l.NameBudget) == 0 {
		l.NameBudget = d.NameBudget
	}
	return l
}

func setDefault(v *float64, d float64) {
	if *v <= 0 {
		*v = d
	}
}

// budget returns the name budget for level.
func (l Layout) budget(level int) int {
	if level < len(l.NameBudget) {
		return l.NameBudget[level]
	}
	return l.NameBudget[len(l.NameBudget)-1]
}

// RowsPerPage returns how many rows fit on the first and on later pages.
func (l Layout) RowsPerPage() (first, rest int) {
	usable := l.PageHeight - l.MarginTop - l.MarginBottom
	rest = int(usable / l.RowHeight)
	titled := usable
	if l.Title != "" {
		titled -= l.TitleHeight
	}
	first = int(titled / l.RowHeight)
	return max(first, 0), max(rest, 1)
}
