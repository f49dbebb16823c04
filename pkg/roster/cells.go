package roster

// monthOffsets maps a month number to how many calendar cells precede day 1
// of that month in the portal's flat DateCell numbering. The portal renders
// a Sunday-first grid against its 2024 layout, so the offset for each month
// is the number of leading blank cells in that month's grid. This table
// mirrors the live markup and cannot be derived locally; if the portal ever
// changes its grid or reference year it must be updated by hand.
var monthOffsets = map[int]int{
	1:  1,
	2:  4,
	3:  5,
	4:  1,
	5:  3,
	6:  6,
	7:  1,
	8:  4,
	9:  0,
	10: 2,
	11: 5,
	12: 0,
}

// CellIndex returns the DateCell index for a (month, day) pair. A month
// missing from the offset table falls back to the bare day number; that is
// best-effort only, and callers must treat a cell that then fails to resolve
// as an error rather than an empty roster.
func CellIndex(month, day int) int {
	return monthOffsets[month] + day
}
