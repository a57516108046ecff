package bracket

import (
	"sort"

	"github.com/google/uuid"
)

// Layout is a stage arranged for display: sides in playing order, rounds in
// order, matches top to bottom.
type Layout struct {
	StageID uuid.UUID            `json:"stageId"`
	StageNo int                  `json:"stageNo"`
	Type    BracketType          `json:"type"`
	Status  StageStatus          `json:"status"`
	Sides   []LayoutSide         `json:"sides"`
	Names   map[uuid.UUID]string `json:"names"`
}

type LayoutSide struct {
	Side   BracketSide   `json:"side"`
	Rounds []LayoutRound `json:"rounds"`
}

type LayoutRound struct {
	Number  int     `json:"number"`
	Matches []Match `json:"matches"`
}

// BuildLayouts groups matches by stage, side and round. Stages without
// matches yet are included with no sides.
func BuildLayouts(stages []Stage, players []Player, matches []Match) []Layout {
	names := make(map[uuid.UUID]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}

	byStage := make(map[uuid.UUID][]Match)
	for _, m := range matches {
		byStage[m.StageID] = append(byStage[m.StageID], m)
	}

	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StageNo < sorted[j].StageNo
	})

	layouts := make([]Layout, 0, len(sorted))
	for _, st := range sorted {
		stageMatches := byStage[st.ID]

		// Only the players who appear in this stage.
		stageNames := make(map[uuid.UUID]string)
		for _, m := range stageMatches {
			for _, id := range []*uuid.UUID{m.Player1TpID, m.Player2TpID} {
				if id != nil {
					stageNames[*id] = names[*id]
				}
			}
		}

		layouts = append(layouts, Layout{
			StageID: st.ID,
			StageNo: st.StageNo,
			Type:    st.Type,
			Status:  st.Status,
			Sides:   groupSides(stageMatches),
			Names:   stageNames,
		})
	}
	return layouts
}

func groupSides(matches []Match) []LayoutSide {
	rounds := map[BracketSide]map[int][]Match{}
	for _, m := range matches {
		if rounds[m.BracketSide] == nil {
			rounds[m.BracketSide] = make(map[int][]Match)
		}
		rounds[m.BracketSide][m.RoundNumber] = append(rounds[m.BracketSide][m.RoundNumber], m)
	}

	sides := []LayoutSide{}
	for _, side := range []BracketSide{WinnersSide, LosersSide, FinalsSide} {
		bySide, ok := rounds[side]
		if !ok {
			continue
		}

		var roundNums []int
		for r := range bySide {
			roundNums = append(roundNums, r)
		}
		sort.Ints(roundNums)

		ls := LayoutSide{Side: side}
		for _, r := range roundNums {
			round := bySide[r]
			sort.Slice(round, func(i, j int) bool {
				return round[i].PositionInRound < round[j].PositionInRound
			})
			ls.Rounds = append(ls.Rounds, LayoutRound{Number: r, Matches: round})
		}
		sides = append(sides, ls)
	}
	return sides
}
