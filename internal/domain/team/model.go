package team

import "fmt"

// Team is a competing roster inside one division. Seed 0 means unseeded.
type Team struct {
	ID         string
	Name       string
	Seed       int
	CaptainID  string
	DivisionID string
	Wins       int
	Losses     int
	MatchIDs   []string
}

func (t Team) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.DivisionID == "" {
		return fmt.Errorf("team division id is required")
	}
	if t.Seed < 0 {
		return fmt.Errorf("team seed cannot be negative")
	}

	return nil
}

// ByDivision partitions teams keyed by their division id, preserving input
// order inside each bucket.
func ByDivision(teams []Team) map[string][]Team {
	out := make(map[string][]Team)
	for _, item := range teams {
		out[item.DivisionID] = append(out[item.DivisionID], item)
	}
	return out
}
