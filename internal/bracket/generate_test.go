package bracket

import (
	"fmt"
	"testing"

	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlayers(n int) []Player {
	players := make([]Player, n)
	for i := range players {
		players[i] = Player{ID: uuid.New(), Name: fmt.Sprintf("Player %d", i+1), Seed: i + 1}
	}
	return players
}

func findMatch(t *testing.T, matches []*Match, side BracketSide, round, position int) *Match {
	t.Helper()
	for _, m := range matches {
		if m.BracketSide == side && m.RoundNumber == round && m.PositionInRound == position {
			return m
		}
	}
	t.Fatalf("no %s R%d M%d", side, round, position)
	return nil
}

func pointers(matches []Match) []*Match {
	out := make([]*Match, len(matches))
	for i := range matches {
		out[i] = &matches[i]
	}
	return out
}

func TestCalcBracketSize(t *testing.T) {
	testCases := []struct {
		count    int
		expected int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 4},
		{5, 8},
		{8, 8},
		{9, 16},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, CalcBracketSize(tc.count), "count %d", tc.count)
	}
}

func TestGenerateRound1SeedOrder(t *testing.T) {
	testCases := []struct {
		name       string
		numEntries int
		expected   [][2]int
	}{
		{
			name:       "2 entries",
			numEntries: 2,
			expected:   [][2]int{{0, 1}},
		},
		{
			name:       "4 entries",
			numEntries: 4,
			expected:   [][2]int{{0, 3}, {1, 2}},
		},
		{
			name:       "8 entries",
			numEntries: 8,
			expected:   [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}},
		},
		{
			name:       "Non-power of 2 (7 entries)",
			numEntries: 7,
			expected:   [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := generateRound1Pairs(tc.numEntries)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestGenerateMatchCounts(t *testing.T) {
	testCases := []struct {
		name         string
		bracketType  BracketType
		players      int
		advance      int
		expected     int
		hasFinal     bool
		terminalWins int
	}{
		{"SE 2 players", SingleElimination, 2, 0, 1, false, 1},
		{"SE 4 players", SingleElimination, 4, 0, 3, false, 1},
		{"SE 5 players", SingleElimination, 5, 0, 7, false, 1},
		{"DE 2 players", DoubleElimination, 2, 0, 2, true, 1},
		{"DE 4 players", DoubleElimination, 4, 0, 6, true, 1},
		{"DE 8 players", DoubleElimination, 8, 0, 14, true, 1},
		{"DE 8 players advancing 4", DoubleElimination, 8, 4, 10, false, 4},
		{"DE 16 players advancing 4", DoubleElimination, 16, 4, 26, false, 4},
		{"DE 16 players advancing 8", DoubleElimination, 16, 8, 20, false, 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			matches, err := Generate(GenerateInput{
				TournamentID: uuid.New(),
				StageID:      uuid.New(),
				Type:         tc.bracketType,
				Players:      makePlayers(tc.players),
				AdvanceCount: tc.advance,
				RaceTo:       RaceTo{Winners: 5, Losers: 4, Finals: 7},
			})
			require.NoError(t, err)
			assert.Len(t, matches, tc.expected)

			ms := pointers(matches)
			require.NoError(t, CheckGraph(ms))

			terminal, finals := 0, 0
			for _, m := range ms {
				if m.NextWinnerMatchID == nil {
					terminal++
				}
				if m.BracketSide == FinalsSide {
					finals++
				}
			}
			assert.Equal(t, tc.terminalWins, terminal)
			assert.Equal(t, tc.hasFinal, finals == 1)
		})
	}
}

func TestGenerateRaceTo(t *testing.T) {
	matches, err := Generate(GenerateInput{
		Type:    DoubleElimination,
		Players: makePlayers(4),
		RaceTo:  RaceTo{Winners: 5, Losers: 4, Finals: 7},
	})
	require.NoError(t, err)

	for _, m := range matches {
		switch m.BracketSide {
		case WinnersSide:
			assert.Equal(t, 5, m.RaceTo)
		case LosersSide:
			assert.Equal(t, 4, m.RaceTo)
		case FinalsSide:
			assert.Equal(t, 7, m.RaceTo)
		}
	}

	se, err := Generate(GenerateInput{
		Type:    SingleElimination,
		Players: makePlayers(4),
		RaceTo:  RaceTo{Winners: 5, Finals: 9},
	})
	require.NoError(t, err)
	final := findMatch(t, pointers(se), WinnersSide, 2, 1)
	assert.Equal(t, 9, final.RaceTo, "SE final should race to the finals value")
	assert.Equal(t, 5, findMatch(t, pointers(se), WinnersSide, 1, 1).RaceTo)
}

func TestGenerateByes(t *testing.T) {
	players := makePlayers(5)
	matches, err := Generate(GenerateInput{
		Type:    DoubleElimination,
		Players: players,
		RaceTo:  RaceTo{Winners: 5, Losers: 5, Finals: 5},
	})
	require.NoError(t, err)
	ms := pointers(matches)

	// Seeds 1, 2 and 3 sit out round 1.
	wb1 := findMatch(t, ms, WinnersSide, 1, 1)
	assert.True(t, wb1.IsBye)
	assert.Equal(t, MatchCompleted, wb1.Status)
	require.NotNil(t, wb1.WinnerTpID)
	assert.Equal(t, players[0].ID, *wb1.WinnerTpID)

	wb2 := findMatch(t, ms, WinnersSide, 1, 2)
	assert.False(t, wb2.IsBye)
	assert.Equal(t, MatchScheduled, wb2.Status)
	assert.True(t, wb2.IsReady())

	wbR2 := findMatch(t, ms, WinnersSide, 2, 1)
	require.NotNil(t, wbR2.Player1TpID, "bye winner should already be placed")
	assert.Equal(t, players[0].ID, *wbR2.Player1TpID)
	assert.Nil(t, wbR2.Player2TpID)

	wbR2M2 := findMatch(t, ms, WinnersSide, 2, 2)
	assert.True(t, wbR2M2.IsReady())
	assert.False(t, wbR2M2.IsBye)

	lb1 := findMatch(t, ms, LosersSide, 1, 1)
	assert.True(t, lb1.IsBye, "LB R1 M1 waits for a single loser")
	assert.Equal(t, MatchScheduled, lb1.Status)

	lb2 := findMatch(t, ms, LosersSide, 1, 2)
	assert.True(t, lb2.IsBye)
	assert.Equal(t, MatchCompleted, lb2.Status)
	assert.Nil(t, lb2.WinnerTpID, "a bye without players completes without a winner")

	lbR2M2 := findMatch(t, ms, LosersSide, 2, 2)
	assert.True(t, lbR2M2.IsBye, "LB R2 M2 should be marked as Bye")
	assert.Equal(t, MatchScheduled, lbR2M2.Status)

	require.NoError(t, CheckGraph(ms))
}

func TestGenerateRejects(t *testing.T) {
	testCases := []struct {
		name  string
		input GenerateInput
	}{
		{"one player", GenerateInput{Type: DoubleElimination, Players: makePlayers(1)}},
		{"unknown type", GenerateInput{Type: "round_robin", Players: makePlayers(4)}},
		{"single elimination truncated", GenerateInput{Type: SingleElimination, Players: makePlayers(8), AdvanceCount: 4}},
		{"advance too large", GenerateInput{Type: DoubleElimination, Players: makePlayers(6), AdvanceCount: 8}},
		{"advance not power of two", GenerateInput{Type: DoubleElimination, Players: makePlayers(16), AdvanceCount: 6}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(tc.input)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestOrderPlayers(t *testing.T) {
	players := makePlayers(4)
	reversed := []Player{players[3], players[2], players[1], players[0]}

	seeded := OrderPlayers(reversed, OrderingSeeded, nil)
	assert.Equal(t, players, seeded)
	assert.Equal(t, players[3], reversed[0], "input should not be reordered")

	swapFirstLast := func(n int, swap func(i, j int)) {
		swap(0, n-1)
	}
	random := OrderPlayers(players, OrderingRandom, swapFirstLast)
	assert.Equal(t, players[3].ID, random[0].ID)
	assert.Equal(t, players[0].ID, random[3].ID)

	ignored := OrderPlayers(players, OrderingSeeded, swapFirstLast)
	assert.Equal(t, players, ignored)
}
