package exam

import "fmt"

// Default seating grid size.
const (
	DefaultGridRows    = 6
	DefaultGridColumns = 6
)

// Grid is the room layout: x is the column, y the row, both zero-based.
type Grid struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

func DefaultGrid() Grid {
	return Grid{Rows: DefaultGridRows, Columns: DefaultGridColumns}
}

func (g Grid) Contains(x, y int) bool {
	return x >= 0 && x < g.Columns && y >= 0 && y < g.Rows
}

type cell struct{ x, y int }

// SeatingChart is an in-memory view of a session's seating with constant time lookups both ways.
// It is not safe for concurrent use.
type SeatingChart struct {
	grid   Grid
	byCell map[cell]string
	byStud map[string]cell
}

func NewSeatingChart(grid Grid) *SeatingChart {
	return &SeatingChart{
		grid:   grid,
		byCell: make(map[cell]string),
		byStud: make(map[string]cell),
	}
}

// ChartFromSeating builds a chart from stored rows.
func ChartFromSeating(grid Grid, seats []Seating) (*SeatingChart, error) {
	chart := NewSeatingChart(grid)
	for _, s := range seats {
		if err := chart.Place(s.StudentID, s.X, s.Y); err != nil {
			return nil, err
		}
	}
	return chart, nil
}

func (c *SeatingChart) Grid() Grid { return c.grid }

func (c *SeatingChart) Len() int { return len(c.byStud) }

// At returns the student seated at (x, y).
func (c *SeatingChart) At(x, y int) (string, bool) {
	id, ok := c.byCell[cell{x, y}]
	return id, ok
}

// SeatOf returns where studentID is seated.
func (c *SeatingChart) SeatOf(studentID string) (x, y int, ok bool) {
	pos, ok := c.byStud[studentID]
	return pos.x, pos.y, ok
}

// Place seats studentID at (x, y), freeing its previous seat. Out of bounds positions and
// cells held by another student are errors; the chart is unchanged on error.
func (c *SeatingChart) Place(studentID string, x, y int) error {
	if !c.grid.Contains(x, y) {
		return ErrOutOfGrid{X: x, Y: y, Grid: c.grid}
	}
	if occupant, ok := c.byCell[cell{x, y}]; ok && occupant != studentID {
		return ErrSeatTaken{X: x, Y: y, StudentID: occupant}
	}
	c.Remove(studentID)
	c.byCell[cell{x, y}] = studentID
	c.byStud[studentID] = cell{x, y}
	return nil
}

func (c *SeatingChart) Remove(studentID string) {
	if pos, ok := c.byStud[studentID]; ok {
		delete(c.byCell, pos)
		delete(c.byStud, studentID)
	}
}

// Placements returns the seats ordered by row then column.
func (c *SeatingChart) Placements() []SeatPlacement {
	ps := make([]SeatPlacement, 0, len(c.byStud))
	for y := 0; y < c.grid.Rows; y++ {
		for x := 0; x < c.grid.Columns; x++ {
			if id, ok := c.byCell[cell{x, y}]; ok {
				ps = append(ps, SeatPlacement{StudentID: id, X: x, Y: y})
			}
		}
	}
	return ps
}

type ErrOutOfGrid struct {
	X, Y int
	Grid Grid
}

func (e ErrOutOfGrid) Error() string {
	return fmt.Sprintf("position (%d, %d) is outside the %dx%d grid", e.X, e.Y, e.Grid.Columns, e.Grid.Rows)
}

type ErrSeatTaken struct {
	X, Y      int
	StudentID string
}

func (e ErrSeatTaken) Error() string {
	return fmt.Sprintf("seat (%d, %d) is already taken by student %s", e.X, e.Y, e.StudentID)
}
