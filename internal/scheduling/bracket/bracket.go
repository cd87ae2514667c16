// Package bracket builds single and double elimination match graphs.
//
// Match ids follow the pre-reset traversal: winner-bracket rounds
// ascending, then loser-bracket rounds ascending, then the grand final and
// the conditional bracket reset.
package bracket

import (
	"math/bits"
	"sort"

	"github.com/camka14/mvp-scheduler/internal/domain/match"
)

// Entry is one seeded bracket slot. Ref is a concrete team for tournaments
// or a standings rank for league playoffs. Seed 0 means unseeded; unseeded
// entries sort after seeded ones in input order.
type Entry struct {
	Ref  match.TeamRef
	Seed int
}

// Options control bracket shape and score-array sizing.
type Options struct {
	DoubleElimination bool
	WinnerSetCount    int
	LoserSetCount     int
}

// node is a future occupant of a bracket slot: either a known entry or the
// outcome of a feeder match.
type node struct {
	ref    match.TeamRef
	feeder *match.Match
	loser  bool
}

type builder struct {
	eventID string
	opts    Options
	matches []*match.Match
}

// Build constructs the bracket for the entries. Fewer than three entries
// produce no matches. Round numbers order placement: winner bracket rounds
// 1..R; loser rounds are numbered so that winner-round-r losers drop in no
// earlier than round 2r-1, keeping every match after its feeders; grand
// final and reset come past both brackets.
func Build(eventID string, entries []Entry, opts Options) []*match.Match {
	n := len(entries)
	if n < 3 {
		return nil
	}

	seeded := append([]Entry(nil), entries...)
	sort.SliceStable(seeded, func(i, j int) bool {
		si, sj := seeded[i].Seed, seeded[j].Seed
		if si == 0 {
			return false
		}
		if sj == 0 {
			return true
		}
		return si < sj
	})

	b := &builder{eventID: eventID, opts: opts}

	rounds := bits.Len(uint(n - 1)) // ceil(log2 n)
	size := 1 << rounds

	// Winner bracket round 1: slot k holds seed k+1 against seed size-k.
	// An opponent index past n is a bye; the seeded entry advances
	// unopposed and no match is created for the slot.
	current := make([]node, 0, size/2)
	losersByRound := make([][]*match.Match, rounds+1)
	for k := 0; k < size/2; k++ {
		high := seeded[k]
		opponent := size - k
		if opponent > n {
			current = append(current, node{ref: high.Ref})
			continue
		}
		m := b.newMatch(1, false, b.winnerSets())
		b.bind(m, node{ref: high.Ref}, match.SideLeft)
		b.bind(m, node{ref: seeded[opponent-1].Ref}, match.SideRight)
		losersByRound[1] = append(losersByRound[1], m)
		current = append(current, node{feeder: m})
	}

	// Later winner rounds pair adjacent survivors.
	for r := 2; r <= rounds; r++ {
		next := make([]node, 0, len(current)/2)
		for i := 0; i+1 < len(current); i += 2 {
			m := b.newMatch(r, false, b.winnerSets())
			b.bind(m, current[i], match.SideLeft)
			b.bind(m, current[i+1], match.SideRight)
			losersByRound[r] = append(losersByRound[r], m)
			next = append(next, node{feeder: m})
		}
		if len(current)%2 == 1 {
			next = append(next, current[len(current)-1])
		}
		current = next
	}
	champion := current[0]

	if !opts.DoubleElimination {
		return b.matches
	}

	lbChampion, lbRounds := b.buildLoserBracket(losersByRound, rounds)

	finalRound := rounds
	if lbRounds > finalRound {
		finalRound = lbRounds
	}

	grandFinal := b.newMatch(finalRound+1, false, b.winnerSets())
	b.bind(grandFinal, champion, match.SideLeft)
	b.bind(grandFinal, lbChampion, match.SideRight)

	// The reset slot exists up front, locked until the loser-bracket
	// finalist actually wins the grand final.
	reset := b.newMatch(finalRound+2, true, b.winnerSets())
	reset.Locked = true
	reset.Team1 = match.FeederRef(grandFinal.MatchID, match.SideLeft)
	reset.Team2 = match.FeederRef(grandFinal.MatchID, match.SideRight)
	reset.PreviousLeftID = grandFinal.MatchID
	reset.PreviousRightID = grandFinal.MatchID
	grandFinal.WinnerNextID = reset.MatchID
	grandFinal.LoserNextID = reset.MatchID

	return b.matches
}

// buildLoserBracket routes winner-bracket losers through drop-in rounds,
// inserting consolidation rounds whenever survivors outnumber the next
// cohort. Byes carry through without a match, so the loser bracket always
// plays exactly len(losers)-1 matches.
func (b *builder) buildLoserBracket(losersByRound [][]*match.Match, rounds int) (node, int) {
	var survivors []node
	lbRound := 0

	for r := 1; r <= rounds; r++ {
		entrants := make([]node, 0, len(losersByRound[r])+len(survivors))
		for _, m := range losersByRound[r] {
			entrants = append(entrants, node{feeder: m, loser: true})
		}
		entrants = append(entrants, survivors...)
		if len(entrants) == 0 {
			survivors = nil
			continue
		}
		if len(entrants) > 1 {
			// Winner-round-r losers drop into loser round 2r-1 at the
			// earliest; a longer consolidation tail pushes past that.
			if dropIn := 2*r - 1; dropIn > lbRound {
				lbRound = dropIn
			} else {
				lbRound++
			}
			entrants = b.playRound(entrants, lbRound)
		}

		target := 1
		if r < rounds {
			target = len(losersByRound[r+1])
			if target < 1 {
				target = 1
			}
		}
		for len(entrants) > target {
			lbRound++
			entrants = b.playRound(entrants, lbRound)
		}
		survivors = entrants
	}

	return survivors[0], lbRound
}

// playRound pairs entrants two by two into loser-bracket matches; an odd
// entrant carries over as a bye.
func (b *builder) playRound(entrants []node, round int) []node {
	out := make([]node, 0, (len(entrants)+1)/2)
	for i := 0; i+1 < len(entrants); i += 2 {
		m := b.newMatch(round, true, b.loserSets())
		b.bind(m, entrants[i], match.SideLeft)
		b.bind(m, entrants[i+1], match.SideRight)
		out = append(out, node{feeder: m})
	}
	if len(entrants)%2 == 1 {
		out = append(out, entrants[len(entrants)-1])
	}
	return out
}

func (b *builder) newMatch(round int, losers bool, sets int) *match.Match {
	m := match.NewWithSets(sets)
	m.EventID = b.eventID
	m.MatchID = len(b.matches) + 1
	m.Round = round
	m.LosersBracket = losers
	b.matches = append(b.matches, m)
	return m
}

// bind fills one side of m from n: a known entry directly, or a feeder
// reference plus the forward link on the feeder.
func (b *builder) bind(m *match.Match, n node, side match.Side) {
	ref := n.ref
	if n.feeder != nil {
		ref = match.FeederRef(n.feeder.MatchID, side)
		if n.loser {
			n.feeder.LoserNextID = m.MatchID
		} else {
			n.feeder.WinnerNextID = m.MatchID
		}
	}
	if side == match.SideLeft {
		m.Team1 = ref
		if n.feeder != nil {
			m.PreviousLeftID = n.feeder.MatchID
		}
		return
	}
	m.Team2 = ref
	if n.feeder != nil {
		m.PreviousRightID = n.feeder.MatchID
	}
}

func (b *builder) winnerSets() int {
	if b.opts.WinnerSetCount > 0 {
		return b.opts.WinnerSetCount
	}
	return 1
}

func (b *builder) loserSets() int {
	if b.opts.LoserSetCount > 0 {
		return b.opts.LoserSetCount
	}
	return b.winnerSets()
}
