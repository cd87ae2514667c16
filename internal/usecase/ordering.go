package usecase

import (
	"sort"

	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
)

// isBracketMatch distinguishes elimination matches from regular-season
// play: bracket matches carry links or non-concrete slot references.
func isBracketMatch(m *match.Match) bool {
	if m.LosersBracket || m.WinnerNextID > 0 || m.LoserNextID > 0 ||
		m.PreviousLeftID > 0 || m.PreviousRightID > 0 {
		return true
	}
	return m.Team1.Kind == match.RefFeeder || m.Team2.Kind == match.RefFeeder ||
		m.Team1.Kind == match.RefStanding || m.Team2.Kind == match.RefStanding
}

// placementClass orders matches that share a round number: winner bracket,
// then loser bracket, then round-robin play.
func placementClass(m *match.Match) int {
	if isBracketMatch(m) {
		if m.LosersBracket {
			return 1
		}
		return 0
	}
	return 2
}

// orderForPlacement returns the deterministic placement order: round
// ascending, class, then match id.
func orderForPlacement(matches []*match.Match) []*match.Match {
	out := append([]*match.Match(nil), matches...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		ci, cj := placementClass(out[i]), placementClass(out[j])
		if ci != cj {
			return ci < cj
		}
		return out[i].MatchID < out[j].MatchID
	})
	return out
}

// rankTeams orders teams for standings resolution: wins descending, losses
// ascending, seed ascending (unseeded last), id ascending.
func rankTeams(teams []team.Team) []team.Team {
	out := append([]team.Team(nil), teams...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Losses != b.Losses {
			return a.Losses < b.Losses
		}
		sa, sb := a.Seed, b.Seed
		if sa == 0 {
			sa = 1 << 30
		}
		if sb == 0 {
			sb = 1 << 30
		}
		if sa != sb {
			return sa < sb
		}
		return a.ID < b.ID
	})
	return out
}
