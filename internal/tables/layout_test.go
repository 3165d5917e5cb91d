package tables

import (
	"reflect"
	"testing"

	"github.com/tsawler/tabula/model"
)

func frag(text string, x, y, w float64) model.TextFragment {
	return model.TextFragment{Text: text, BBox: model.NewBBox(x, y, w, 10), FontSize: 10}
}

func gridText(g Grid) [][]string {
	out := make([][]string, len(g))
	for i, row := range g {
		out[i] = make([]string, len(row))
		for j, c := range row {
			if c != nil {
				out[i][j] = *c
			}
		}
	}
	return out
}

func extent(frags []model.TextFragment) model.BBox {
	box := frags[0].BBox
	for _, f := range frags[1:] {
		box = box.Union(f.BBox)
	}
	return box
}

func TestCellGridRebuildsColumnsFromAlignedText(t *testing.T) {
	t.Parallel()

	frags := []model.TextFragment{
		frag("Item", 72, 700, 19), frag("Qty", 192, 700, 17), frag("Price", 312, 700, 24),
		frag("Widget", 72, 680, 32), frag("4", 196, 680, 6), frag("$1,200", 312, 680, 31),
		frag("Gadget", 72, 660, 34), frag("12", 194, 660, 11),
	}

	g, ok := cellGrid(frags, nil, extent(frags))
	if !ok {
		t.Fatalf("expected a grid")
	}
	want := [][]string{
		{"Item", "Qty", "Price"},
		{"Widget", "4", "$1,200"},
		{"Gadget", "12", ""},
	}
	if got := gridText(g); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if g[2][2] != nil {
		t.Fatalf("missing cell should be nil")
	}
}

func TestCellGridJoinsWordsOfOneCell(t *testing.T) {
	t.Parallel()

	frags := []model.TextFragment{
		frag("Part", 72, 700, 20), frag("Count", 192, 700, 28),
		frag("Blue", 72, 680, 21), frag("widget", 96, 680, 30), frag("3", 192, 680, 6),
	}

	g, ok := cellGrid(frags, nil, extent(frags))
	if !ok {
		t.Fatalf("expected a grid")
	}
	want := [][]string{{"Part", "Count"}, {"Blue widget", "3"}}
	if got := gridText(g); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCellGridSplitsAtVerticalRulings(t *testing.T) {
	t.Parallel()

	// The columns sit closer than the gutter, so only the ruling at x=100
	// keeps them apart.
	frags := []model.TextFragment{
		frag("Code", 72, 700, 24), frag("Name", 102, 700, 26),
		frag("A1", 72, 680, 12), frag("Anvil", 102, 680, 23),
	}
	lines := []model.Line{
		{Start: model.Point{X: 100, Y: 675}, End: model.Point{X: 100, Y: 714}},
		{Start: model.Point{X: 66, Y: 695}, End: model.Point{X: 140, Y: 695}},
	}

	if g, ok := cellGrid(frags, nil, extent(frags)); ok && len(g[0]) != 1 {
		t.Fatalf("without rulings the text should merge into one column, got %q", gridText(g))
	}

	g, ok := cellGrid(frags, lines, extent(frags))
	if !ok {
		t.Fatalf("expected a grid")
	}
	want := [][]string{{"Code", "Name"}, {"A1", "Anvil"}}
	if got := gridText(g); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCellGridUsesRectangleEdges(t *testing.T) {
	t.Parallel()

	frags := []model.TextFragment{
		frag("Code", 72, 700, 24), frag("Name", 102, 700, 26),
		frag("A1", 72, 680, 12), frag("Anvil", 102, 680, 23),
	}
	rect := model.Line{Start: model.Point{X: 100, Y: 675}, End: model.Point{X: 140, Y: 714}, IsRect: true}

	g, ok := cellGrid(frags, []model.Line{rect}, extent(frags))
	if !ok || len(g[0]) != 2 {
		t.Fatalf("expected two columns, got %q", gridText(g))
	}
}

func TestCellGridRejectsSingleColumnText(t *testing.T) {
	t.Parallel()

	frags := []model.TextFragment{
		frag("The quick brown fox", 72, 700, 90),
		frag("jumps over the lazy", 72, 688, 88),
		frag("dog and keeps going", 72, 676, 92),
		frag("for a few more lines", 72, 664, 91),
	}
	if g, ok := cellGrid(frags, nil, extent(frags)); ok {
		t.Fatalf("prose should not become a table, got %q", gridText(g))
	}
}

func TestCellGridIgnoresTextOutsideRegion(t *testing.T) {
	t.Parallel()

	table := []model.TextFragment{
		frag("K", 72, 700, 6), frag("V", 192, 700, 6),
		frag("a", 72, 680, 6), frag("1", 192, 680, 6),
	}
	all := append([]model.TextFragment{frag("Footer", 72, 100, 30)}, table...)

	g, ok := cellGrid(all, nil, extent(table))
	if !ok {
		t.Fatalf("expected a grid")
	}
	want := [][]string{{"K", "V"}, {"a", "1"}}
	if got := gridText(g); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}
