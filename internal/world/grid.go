package world

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
)

// #region grid
// Grid is a rectangular terrain map. Cells outside the map read as water,
// which keeps the agent inside the island.
type Grid struct {
	bounds terrain.Bounds
	cells  []terrain.Label
}

// NewGrid returns a width x height grid filled with fill.
func NewGrid(width, height int, fill terrain.Label) *Grid {
	cells := make([]terrain.Label, width*height)
	for i := range cells {
		cells[i] = fill
	}
	return &Grid{bounds: terrain.Bounds{Width: width, Height: height}, cells: cells}
}

// Bounds returns the extent of the grid.
func (g *Grid) Bounds() terrain.Bounds { return g.bounds }

// GroundAt implements terrain.Oracle.
func (g *Grid) GroundAt(p terrain.Position) terrain.Label {
	if !g.bounds.Contains(p) {
		return terrain.LabelWater
	}
	return g.cells[p.Y*g.bounds.Width+p.X]
}

// Set changes the terrain of one cell. Cells outside the grid are ignored.
func (g *Grid) Set(p terrain.Position, l terrain.Label) {
	if g.bounds.Contains(p) {
		g.cells[p.Y*g.bounds.Width+p.X] = l
	}
}

// Fill sets every cell of the rectangle [from, to] (inclusive) to l.
func (g *Grid) Fill(from, to terrain.Position, l terrain.Label) {
	for y := min(from.Y, to.Y); y <= max(from.Y, to.Y); y++ {
		for x := min(from.X, to.X); x <= max(from.X, to.X); x++ {
			g.Set(terrain.Pt(x, y), l)
		}
	}
}

// StartCell returns the cell nearest the centre that cls does not mark
// impassable. Ties go to the first cell in row order.
func (g *Grid) StartCell(cls terrain.Classification) (terrain.Position, error) {
	centre := terrain.Pt(g.bounds.Width/2, g.bounds.Height/2)
	best, found := centre, false
	for y := 0; y < g.bounds.Height; y++ {
		for x := 0; x < g.bounds.Width; x++ {
			p := terrain.Pt(x, y)
			if cls.IsImpassable(g.GroundAt(p)) {
				continue
			}
			if !found || p.Distance(centre) < best.Distance(centre) {
				best, found = p, true
			}
		}
	}
	if !found {
		return terrain.Position{}, fmt.Errorf("every cell of the %dx%d map is impassable", g.bounds.Width, g.bounds.Height)
	}
	return best, nil
}

// #endregion grid

// #region parse
// Parse reads a map of ground codes, one digit per cell and one row per line.
// Blank lines and lines starting with '#' are skipped.
func Parse(r io.Reader) (*Grid, error) {
	var rows [][]terrain.Label
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		row := make([]terrain.Label, 0, len(text))
		for i, ch := range text {
			if ch < '0' || ch > '9' {
				return nil, fmt.Errorf("map line %d col %d: invalid ground code %q", line, i+1, ch)
			}
			l := terrain.FromCode(int(ch - '0'))
			if l == terrain.LabelNone {
				return nil, fmt.Errorf("map line %d col %d: unknown ground code %c", line, i+1, ch)
			}
			row = append(row, l)
		}
		if len(rows) > 0 && len(row) != len(rows[0]) {
			return nil, fmt.Errorf("map line %d: width %d, want %d", line, len(row), len(rows[0]))
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("map is empty")
	}

	g := &Grid{bounds: terrain.Bounds{Width: len(rows[0]), Height: len(rows)}}
	for _, row := range rows {
		g.cells = append(g.cells, row...)
	}
	return g, nil
}

// Load parses the map file at path.
func Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Format writes the grid in the format Parse reads.
func (g *Grid) Format(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for y := 0; y < g.bounds.Height; y++ {
		for x := 0; x < g.bounds.Width; x++ {
			bw.WriteByte(byte('0' + terrain.Code(g.GroundAt(terrain.Pt(x, y)))))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// #endregion parse

// #region generate
// Generate builds a sand island ringed by water with a few rectangular
// patches of food, healing and danger terrain.
func Generate(width, height, patches int, rng *rand.Rand) *Grid {
	g := NewGrid(width, height, terrain.LabelBasic)
	if width < 3 || height < 3 {
		return g
	}
	for x := 0; x < width; x++ {
		g.Set(terrain.Pt(x, 0), terrain.LabelWater)
		g.Set(terrain.Pt(x, height-1), terrain.LabelWater)
	}
	for y := 0; y < height; y++ {
		g.Set(terrain.Pt(0, y), terrain.LabelWater)
		g.Set(terrain.Pt(width-1, y), terrain.LabelWater)
	}

	kinds := []terrain.Label{terrain.LabelDanger, terrain.LabelHealing, terrain.LabelFood}
	for i := 0; i < patches; i++ {
		from := terrain.Pt(1+rng.IntN(width-2), 1+rng.IntN(height-2))
		to := terrain.Pt(
			min(width-2, from.X+rng.IntN(max(1, width/10))),
			min(height-2, from.Y+rng.IntN(max(1, height/10))),
		)
		g.Fill(from, to, kinds[i%len(kinds)])
	}
	return g
}

// #endregion generate
