package division

import "fmt"

// Division groups teams that compete against each other within an event.
type Division struct {
	ID         string
	Name       string
	SkillLevel string
	AgeGroup   string
}

func (d Division) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("division id is required")
	}
	if d.Name == "" {
		return fmt.Errorf("division %s has no name", d.ID)
	}
	return nil
}
