package format

import "strings"

// ProgressBar draws current out of required as a bar of width cells.
func ProgressBar(current, required int64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := width
	if required > 0 && current < required {
		filled = int(max(current, 0) * int64(width) / required)
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}
