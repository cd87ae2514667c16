package field

// Field is a physical playing surface. Number drives deterministic
// tie-breaking when several fields are free at the same instant.
type Field struct {
	ID          string
	Number      int
	Name        string
	DivisionIDs []string
}

// Supports reports whether the field can host a match for the division.
// A field with no division list hosts anything.
func (f Field) Supports(divisionID string) bool {
	if len(f.DivisionIDs) == 0 || divisionID == "" {
		return true
	}
	for _, id := range f.DivisionIDs {
		if id == divisionID || id == "all" {
			return true
		}
	}
	return false
}

// Supporting filters fields down to those that can host the division.
func Supporting(fields []Field, divisionID string) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Supports(divisionID) {
			out = append(out, f)
		}
	}
	return out
}
