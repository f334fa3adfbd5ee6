package table

// Concat appends the rows of src to dst, matching columns by name. Columns of
// dst that src lacks are filled with nil; columns only src has are dropped.
func Concat(dst, src *Table) {
	pos := make([]int, len(dst.Columns))
	for i, c := range dst.Columns {
		pos[i] = src.Index(c)
	}
	withLines := len(dst.Lines) == len(dst.Rows)
	for i, r := range src.Rows {
		nr := make(Row, len(dst.Columns))
		for j, si := range pos {
			if si >= 0 {
				nr[j] = r[si]
			}
		}
		dst.Rows = append(dst.Rows, nr)
		if withLines {
			dst.Lines = append(dst.Lines, src.Line(i))
		}
	}
}
