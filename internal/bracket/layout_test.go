package bracket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLayouts(t *testing.T) {
	players := makePlayers(5)
	stageOne := Stage{ID: uuid.New(), StageNo: 1, Type: DoubleElimination, Status: StageInProgress}
	stageTwo := Stage{ID: uuid.New(), StageNo: 2, Type: SingleElimination, Status: StagePending}

	matches, err := Generate(GenerateInput{
		TournamentID: uuid.New(),
		StageID:      stageOne.ID,
		Type:         DoubleElimination,
		Players:      players,
		RaceTo:       RaceTo{Winners: 3, Losers: 3, Finals: 3},
	})
	require.NoError(t, err)

	// Reverse to make sure ordering does not depend on input order.
	for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
		matches[i], matches[j] = matches[j], matches[i]
	}

	layouts := BuildLayouts([]Stage{stageTwo, stageOne}, players, matches)
	require.Len(t, layouts, 2)

	one := layouts[0]
	assert.Equal(t, 1, one.StageNo)
	require.Len(t, one.Sides, 3)
	assert.Equal(t, WinnersSide, one.Sides[0].Side)
	assert.Equal(t, LosersSide, one.Sides[1].Side)
	assert.Equal(t, FinalsSide, one.Sides[2].Side)

	wb := one.Sides[0].Rounds
	require.Len(t, wb, 3)
	for i, round := range wb {
		assert.Equal(t, i+1, round.Number)
		for pos, m := range round.Matches {
			assert.Equal(t, pos+1, m.PositionInRound)
		}
	}
	assert.Len(t, wb[0].Matches, 4)
	assert.Len(t, one.Sides[1].Rounds, 4)

	assert.Len(t, one.Names, 5)
	assert.Equal(t, players[0].Name, one.Names[players[0].ID])

	two := layouts[1]
	assert.Equal(t, StagePending, two.Status)
	assert.Empty(t, two.Sides)
	assert.Empty(t, two.Names)
}
