package tables

import (
	"math"
	"sort"
	"strings"

	"github.com/tsawler/tabula/model"
)

// DefaultMinConfidence is the detector score a candidate region needs before
// its cells are rebuilt. Aligned text alone scores about 0.3, so the value
// admits borderless tables and leaves rejection to the cell layout, which
// needs at least two rows and two columns.
const DefaultMinConfidence = 0.25

const (
	// regionSlack widens a detected region so fragments on its edge count.
	regionSlack = 2.0
	// rulingSlack is how far a stroke may lean and still count as vertical.
	rulingSlack = 1.0
	// gutterRatio is the horizontal gap, in font sizes, that splits columns
	// where no ruling line does.
	gutterRatio = 0.8
	// spaceRatio is the gap, in font sizes, at which joined fragments of one
	// cell get a space between them.
	spaceRatio = 0.15
)

type placed struct {
	frag model.TextFragment
	band int
}

type textRow struct {
	center float64
	items  []*placed
}

type band struct {
	part        int
	left, right float64
}

// cellGrid rebuilds the logical rows and columns of a table region from the
// page's text fragments. Rows group fragments sharing a vertical center.
// Columns are runs of horizontally overlapping text; vertical ruling lines
// inside the region always separate them. It reports false when fewer than
// two rows or two columns remain.
func cellGrid(frags []model.TextFragment, lines []model.Line, area model.BBox) (Grid, bool) {
	region := area.Expand(regionSlack)

	var items []*placed
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" || !region.Contains(f.BBox.Center()) {
			continue
		}
		items = append(items, &placed{frag: f})
	}
	if len(items) < 4 {
		return nil, false
	}

	size := medianSize(items)
	rows := groupRows(items, size)
	if len(rows) < 2 {
		return nil, false
	}

	cols := assignBands(items, rulings(lines, region), size)
	if cols < 2 {
		return nil, false
	}

	grid := make(Grid, len(rows))
	for i, r := range rows {
		cells := make([]*string, cols)
		byBand := make([][]*placed, cols)
		for _, it := range r.items {
			byBand[it.band] = append(byBand[it.band], it)
		}
		for c, members := range byBand {
			if len(members) == 0 {
				continue
			}
			text := joinCell(members, size)
			cells[c] = &text
		}
		grid[i] = cells
	}
	return grid, true
}

func medianSize(items []*placed) float64 {
	sizes := make([]float64, 0, len(items))
	for _, it := range items {
		s := it.frag.FontSize
		if s <= 0 {
			s = it.frag.BBox.Height
		}
		if s > 0 {
			sizes = append(sizes, s)
		}
	}
	if len(sizes) == 0 {
		return 10
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// groupRows orders rows top to bottom. PDF space grows upward.
func groupRows(items []*placed, size float64) []*textRow {
	sorted := append([]*placed(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].frag.BBox.Center().Y, sorted[j].frag.BBox.Center().Y
		if ci != cj {
			return ci > cj
		}
		return sorted[i].frag.BBox.X < sorted[j].frag.BBox.X
	})

	var rows []*textRow
	for _, it := range sorted {
		cy := it.frag.BBox.Center().Y
		if n := len(rows); n > 0 {
			last := rows[n-1]
			if math.Abs(cy-last.center) <= 0.5*size {
				last.items = append(last.items, it)
				last.center += (cy - last.center) / float64(len(last.items))
				continue
			}
		}
		rows = append(rows, &textRow{center: cy, items: []*placed{it}})
	}
	return rows
}

// rulings returns the x positions of vertical strokes crossing region,
// including the side edges of stroked rectangles.
func rulings(lines []model.Line, region model.BBox) []float64 {
	var xs []float64
	add := func(x, y0, y1 float64) {
		lo, hi := math.Min(y0, y1), math.Max(y0, y1)
		if hi <= region.Bottom() || lo >= region.Top() {
			return
		}
		if x <= region.Left() || x >= region.Right() {
			return
		}
		xs = append(xs, x)
	}
	for _, l := range lines {
		if l.IsRect {
			add(l.Start.X, l.Start.Y, l.End.Y)
			add(l.End.X, l.Start.Y, l.End.Y)
			continue
		}
		if math.Abs(l.Start.X-l.End.X) <= rulingSlack {
			add((l.Start.X+l.End.X)/2, l.Start.Y, l.End.Y)
		}
	}
	sort.Float64s(xs)
	return xs
}

// assignBands sets each item's column and returns the column count. Items are
// first split into the spaces between rulings, then merged into bands of
// overlapping text within each space.
func assignBands(items []*placed, xs []float64, size float64) int {
	sorted := append([]*placed(nil), items...)
	part := func(it *placed) int {
		return sort.SearchFloat64s(xs, it.frag.BBox.Center().X)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := part(sorted[i]), part(sorted[j])
		if pi != pj {
			return pi < pj
		}
		return sorted[i].frag.BBox.Left() < sorted[j].frag.BBox.Left()
	})

	gutter := gutterRatio * size
	var bands []band
	for _, it := range sorted {
		p := part(it)
		l, r := it.frag.BBox.Left(), it.frag.BBox.Right()
		if n := len(bands); n > 0 && bands[n-1].part == p && l <= bands[n-1].right+gutter {
			bands[n-1].right = math.Max(bands[n-1].right, r)
			it.band = n - 1
			continue
		}
		bands = append(bands, band{part: p, left: l, right: r})
		it.band = len(bands) - 1
	}
	return len(bands)
}

func joinCell(members []*placed, size float64) string {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].frag.BBox.X < members[j].frag.BBox.X
	})
	var b strings.Builder
	prevRight := 0.0
	for i, m := range members {
		if i > 0 && m.frag.BBox.Left()-prevRight > spaceRatio*size {
			b.WriteByte(' ')
		}
		b.WriteString(m.frag.Text)
		prevRight = m.frag.BBox.Right()
	}
	return b.String()
}
