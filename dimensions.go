package geosheet

// shiftDimensions remaps row and column overrides through s. Indices before
// the pivot pass through; those inside a deleted span are dropped. Inserted
// rows and columns start without an override.
func shiftDimensions(rows map[int]RowDimension, cols map[int]ColDimension, s Shift) (map[int]RowDimension, map[int]ColDimension) {
	outRows := make(map[int]RowDimension, len(rows))
	for idx, dim := range rows {
		if target, ok := s.row(idx); ok && target >= 1 {
			outRows[target] = dim
		}
	}
	outCols := make(map[int]ColDimension, len(cols))
	for idx, dim := range cols {
		if target, ok := s.col(idx); ok && target >= 1 {
			outCols[target] = dim
		}
	}
	return outRows, outCols
}
