// Package roundrobin produces regular-season pairings with the circle
// method: fix one position, rotate the rest, one round per rotation.
package roundrobin

// Pairing is one abstract game between two team ids.
type Pairing struct {
	Home string
	Away string
}

// Round is a set of disjoint pairings; no team appears twice in a round.
type Round []Pairing

// Rounds generates the full schedule for the ordered team list and
// gamesPerOpponent repetitions. Odd team counts get a rotating bye via a
// sentinel slot that never emits a pairing. The result always contains
// exactly g * n*(n-1)/2 pairings.
func Rounds(teamIDs []string, gamesPerOpponent int) []Round {
	n := len(teamIDs)
	if n < 2 || gamesPerOpponent < 1 {
		return nil
	}

	// Sentinel "" marks the bye slot when n is odd.
	circle := append([]string(nil), teamIDs...)
	if n%2 == 1 {
		circle = append(circle, "")
	}
	m := len(circle)

	block := make([]Round, 0, m-1)
	for r := 0; r < m-1; r++ {
		round := make(Round, 0, m/2)
		for i := 0; i < m/2; i++ {
			a := circle[i]
			b := circle[m-1-i]
			if a == "" || b == "" {
				continue
			}
			// Alternate sides per round so home/away balance out.
			if r%2 == 1 && i == 0 {
				a, b = b, a
			}
			round = append(round, Pairing{Home: a, Away: b})
		}
		block = append(block, round)

		// Rotate all positions but the first.
		last := circle[m-1]
		copy(circle[2:], circle[1:m-1])
		circle[1] = last
	}

	out := make([]Round, 0, len(block)*gamesPerOpponent)
	for g := 0; g < gamesPerOpponent; g++ {
		for _, round := range block {
			if g%2 == 1 {
				flipped := make(Round, len(round))
				for i, p := range round {
					flipped[i] = Pairing{Home: p.Away, Away: p.Home}
				}
				out = append(out, flipped)
				continue
			}
			out = append(out, append(Round(nil), round...))
		}
	}

	return out
}

// MatchCount is the number of pairings Rounds will produce.
func MatchCount(teamCount, gamesPerOpponent int) int {
	if teamCount < 2 || gamesPerOpponent < 1 {
		return 0
	}
	return gamesPerOpponent * teamCount * (teamCount - 1) / 2
}
