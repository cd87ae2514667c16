package match

import "fmt"

// Side tags which slot of a downstream match a feeder fills.
type Side string

const (
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

// RefKind discriminates the TeamRef variants.
type RefKind uint8

const (
	// RefNone marks an empty slot.
	RefNone RefKind = iota
	// RefTeam references a concrete team id.
	RefTeam
	// RefFeeder references a previous match whose outcome fills the slot.
	RefFeeder
	// RefStanding references a regular-season standings rank (1-based),
	// resolved once the regular season is finalized.
	RefStanding
)

// TeamRef is a tagged variant: Concrete(teamId) | Feeder(matchId, side) |
// Standing(rank) | None. References are stored as ids only; hydrated views
// are a serialization concern.
type TeamRef struct {
	Kind       RefKind
	TeamID     string
	FeederID   int
	FeederSide Side
	Rank       int
}

func NoRef() TeamRef { return TeamRef{Kind: RefNone} }

func ConcreteRef(teamID string) TeamRef {
	return TeamRef{Kind: RefTeam, TeamID: teamID}
}

func FeederRef(matchID int, side Side) TeamRef {
	return TeamRef{Kind: RefFeeder, FeederID: matchID, FeederSide: side}
}

func StandingRef(rank int) TeamRef {
	return TeamRef{Kind: RefStanding, Rank: rank}
}

func (r TeamRef) IsConcrete() bool { return r.Kind == RefTeam }

func (r TeamRef) String() string {
	switch r.Kind {
	case RefTeam:
		return r.TeamID
	case RefFeeder:
		return fmt.Sprintf("feeder:%d:%s", r.FeederID, r.FeederSide)
	case RefStanding:
		return fmt.Sprintf("standing:%d", r.Rank)
	default:
		return "none"
	}
}
