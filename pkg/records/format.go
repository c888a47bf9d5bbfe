package records

import "strings"

// Format renders a full-width row with the given fields set and every other
// field left empty.
func Format(fields map[int]string) string {
	row := make([]string, NumFields)
	for i, v := range fields {
		if i >= 0 && i < NumFields {
			row[i] = v
		}
	}
	return strings.Join(row, Delimiter)
}

// HeaderLine renders the dataset header row.
func HeaderLine() string {
	return strings.Join(Headers[:], Delimiter)
}
