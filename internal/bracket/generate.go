package bracket

import (
	"math"
	"sort"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/google/uuid"
)

type GenerateInput struct {
	TournamentID uuid.UUID
	StageID      uuid.UUID
	Type         BracketType
	// Players in seeding order, the first one being the top seed.
	Players []Player
	// AdvanceCount > 0 stops a double elimination bracket once that many
	// players qualify, half through the winners side and half through the
	// losers side.
	AdvanceCount int
	RaceTo       RaceTo
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func CalcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

func log2(n int) int {
	return int(math.Log2(float64(n)))
}

// generateRound1Pairs returns seed indexes for each first round match so that
// the top seeds meet as late as possible: 1v8, 4v5, 2v7, 3v6 for 8 slots.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// OrderPlayers puts players in seeding order. Seeded keeps registration seeds,
// random shuffles them with the given function (rand.Shuffle in production).
func OrderPlayers(players []Player, ordering Ordering, shuffle func(n int, swap func(i, j int))) []Player {
	ordered := make([]Player, len(players))
	copy(ordered, players)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Seed < ordered[j].Seed
	})

	if ordering == OrderingRandom && shuffle != nil {
		shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}
	return ordered
}

// Generate builds the match graph of one stage. Matches come back in
// dependency order: winners side by round, losers side by round, then finals.
func Generate(in GenerateInput) ([]Match, error) {
	if len(in.Players) < 2 {
		return nil, apperr.Validation("At least 2 players are required to start a bracket.")
	}
	if !in.Type.Valid() {
		return nil, apperr.Validationf("Unknown bracket type %q.", in.Type)
	}

	size := CalcBracketSize(len(in.Players))
	wbRounds := log2(size)

	if in.AdvanceCount > 0 {
		if in.Type != DoubleElimination {
			return nil, apperr.Validation(MsgSingleElimMultiStageCreate)
		}
		if !IsPowerOfTwo(in.AdvanceCount) || size < 2*in.AdvanceCount {
			return nil, apperr.Validationf("A bracket of %d players cannot advance %d players to Stage 2.", len(in.Players), in.AdvanceCount)
		}
		wbRounds = log2(2 * size / in.AdvanceCount)
	}

	g := &graph{in: in}

	wb := make([][]*Match, wbRounds+1)
	for r := 1; r <= wbRounds; r++ {
		for i := 0; i < size>>r; i++ {
			wb[r] = append(wb[r], g.add(WinnersSide, r, i+1))
		}
	}

	for i, pair := range generateRound1Pairs(size) {
		g.seed(wb[1][i], 1, pair[0])
		g.seed(wb[1][i], 2, pair[1])
	}

	for r := 2; r <= wbRounds; r++ {
		for i, m := range wb[r] {
			g.feed(wb[r-1][2*i], SourceWinnerOf, m, 1)
			g.feed(wb[r-1][2*i+1], SourceWinnerOf, m, 2)
		}
	}

	if in.Type == SingleElimination {
		wb[wbRounds][0].RaceTo = in.RaceTo.For(FinalsSide)
	}

	if in.Type == DoubleElimination {
		lbRounds := 2 * (wbRounds - 1)
		lb := make([][]*Match, lbRounds+1)

		for r := 1; r <= lbRounds; r++ {
			// Odd rounds halve the field, even rounds take in winners side losers.
			count := size >> (r/2 + 1)
			if r%2 == 1 {
				count = size >> ((r+1)/2 + 1)
			}
			for i := 0; i < count; i++ {
				lb[r] = append(lb[r], g.add(LosersSide, r, i+1))
			}
		}

		for r := 1; r <= lbRounds; r++ {
			for i, m := range lb[r] {
				switch {
				case r == 1:
					g.feed(wb[1][2*i], SourceLoserOf, m, 1)
					g.feed(wb[1][2*i+1], SourceLoserOf, m, 2)
				case r%2 == 0:
					g.feed(lb[r-1][i], SourceWinnerOf, m, 1)
					g.feed(wb[r/2+1][i], SourceLoserOf, m, 2)
				default:
					g.feed(lb[r-1][2*i], SourceWinnerOf, m, 1)
					g.feed(lb[r-1][2*i+1], SourceWinnerOf, m, 2)
				}
			}
		}

		if in.AdvanceCount == 0 {
			final := g.add(FinalsSide, 1, 1)
			g.feed(wb[wbRounds][0], SourceWinnerOf, final, 1)
			if lbRounds > 0 {
				g.feed(lb[lbRounds][0], SourceWinnerOf, final, 2)
			} else {
				// Two players: the winners side loser gets a second life in the final.
				g.feed(wb[wbRounds][0], SourceLoserOf, final, 2)
			}
		}
	}

	g.resolveByes()

	matches := make([]Match, 0, len(g.order))
	for _, m := range g.order {
		matches = append(matches, *m)
	}
	return matches, nil
}

type slotState int

const (
	slotPending slotState = iota
	slotFilled
	slotEmpty
)

type slot struct {
	state  slotState
	player uuid.UUID
}

type outcome struct {
	winner slot
	loser  slot
}

type graph struct {
	in    GenerateInput
	order []*Match
	seeds map[uuid.UUID][2]slot
}

func (g *graph) add(side BracketSide, round, position int) *Match {
	m := &Match{
		ID:              uuid.New(),
		TournamentID:    g.in.TournamentID,
		StageID:         g.in.StageID,
		BracketSide:     side,
		RoundNumber:     round,
		PositionInRound: position,
		RaceTo:          g.in.RaceTo.For(side),
		Status:          MatchScheduled,
	}
	g.order = append(g.order, m)
	return m
}

func (g *graph) seed(m *Match, slotNo int, seedIndex int) {
	if g.seeds == nil {
		g.seeds = make(map[uuid.UUID][2]slot)
	}
	s := g.seeds[m.ID]
	st := slot{state: slotEmpty}
	if seedIndex < len(g.in.Players) {
		st = slot{state: slotFilled, player: g.in.Players[seedIndex].ID}
	}
	s[slotNo-1] = st
	g.seeds[m.ID] = s

	if slotNo == 1 {
		m.Player1SourceType = SourceSeed
	} else {
		m.Player2SourceType = SourceSeed
	}
}

func (g *graph) feed(src *Match, kind SourceType, dst *Match, slotNo int) {
	id, next := src.ID, dst.ID
	if kind == SourceWinnerOf {
		src.NextWinnerMatchID = &next
	} else {
		src.NextLoserMatchID = &next
	}

	if slotNo == 1 {
		dst.Player1SourceType = kind
		dst.Player1SourceMatchID = &id
	} else {
		dst.Player2SourceType = kind
		dst.Player2SourceMatchID = &id
	}
}

// resolveByes walks the graph in dependency order. Empty seeds turn matches
// into byes, and byes can cascade into later rounds on both sides.
func (g *graph) resolveByes() {
	outcomes := make(map[uuid.UUID]outcome, len(g.order))

	slotFrom := func(m *Match, slotNo int) slot {
		kind, source := m.Player1SourceType, m.Player1SourceMatchID
		if slotNo == 2 {
			kind, source = m.Player2SourceType, m.Player2SourceMatchID
		}
		switch kind {
		case SourceSeed:
			return g.seeds[m.ID][slotNo-1]
		case SourceWinnerOf:
			return outcomes[*source].winner
		case SourceLoserOf:
			return outcomes[*source].loser
		}
		return slot{state: slotEmpty}
	}

	for _, m := range g.order {
		s1, s2 := slotFrom(m, 1), slotFrom(m, 2)
		if s1.state == slotFilled {
			m.Player1TpID = &s1.player
		}
		if s2.state == slotFilled {
			m.Player2TpID = &s2.player
		}

		pending := slot{state: slotPending}
		empty := slot{state: slotEmpty}

		switch {
		case s1.state == slotEmpty && s2.state == slotEmpty:
			m.IsBye = true
			m.Status = MatchCompleted
			outcomes[m.ID] = outcome{winner: empty, loser: empty}
		case s1.state == slotEmpty || s2.state == slotEmpty:
			m.IsBye = true
			live := s1
			if s1.state == slotEmpty {
				live = s2
			}
			if live.state == slotFilled {
				m.Status = MatchCompleted
				winner := live.player
				m.WinnerTpID = &winner
			}
			outcomes[m.ID] = outcome{winner: live, loser: empty}
		default:
			outcomes[m.ID] = outcome{winner: pending, loser: pending}
		}
	}
}
