package box

import "strings"

// Rows splits the collection into reading-order rows. Each row starts at the
// smallest remaining Y1, takes every remaining box within tol below it and is
// sorted left to right.
func (c Collection) Rows(tol float64) []Collection {
	var rows []Collection
	remaining := c
	for !remaining.Empty() {
		row := remaining.TopRow(tol)
		rows = append(rows, row.SortByX())
		remaining = remaining.Without(row)
	}
	return rows
}

// ToReadableText joins rows top to bottom, each row left to right, with single spaces.
func (c Collection) ToReadableText(tol float64) string {
	rows := c.Rows(tol)
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.join())
	}
	return strings.Join(lines, " ")
}

// ToSingleLine sorts the whole collection by X1 and joins the texts.
func (c Collection) ToSingleLine() string {
	return c.SortByX().join()
}

func (c Collection) join() string {
	return strings.Join(c.Texts(), " ")
}
