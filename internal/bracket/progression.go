package bracket

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Advance moves the winner and loser of a completed match into the slots
// that are sourced from it. Bye matches that receive their only player
// complete straight away and keep propagating. Every match touched is
// returned once, in the order it was changed.
func Advance(matches []*Match, completed *Match) ([]*Match, error) {
	index := make(map[uuid.UUID]*Match, len(matches))
	for _, m := range matches {
		index[m.ID] = m
	}

	var changed []*Match
	seen := make(map[uuid.UUID]bool)
	touch := func(m *Match) {
		if !seen[m.ID] {
			seen[m.ID] = true
			changed = append(changed, m)
		}
	}

	var walk func(m *Match) error
	walk = func(m *Match) error {
		if m.Status != MatchCompleted {
			return fmt.Errorf("match %s is not completed", m.ID)
		}

		routes := []struct {
			next   *uuid.UUID
			kind   SourceType
			player *uuid.UUID
		}{
			{m.NextWinnerMatchID, SourceWinnerOf, m.WinnerTpID},
			{m.NextLoserMatchID, SourceLoserOf, m.Loser()},
		}

		for _, route := range routes {
			if route.next == nil || route.player == nil {
				continue
			}
			next, ok := index[*route.next]
			if !ok {
				return fmt.Errorf("match %s points to unknown match %s", m.ID, *route.next)
			}

			player := *route.player
			switch next.slotFedBy(m.ID, route.kind) {
			case 1:
				next.Player1TpID = &player
			case 2:
				next.Player2TpID = &player
			default:
				return fmt.Errorf("match %s has no slot fed by %s of match %s", next.ID, route.kind, m.ID)
			}
			touch(next)

			if next.IsBye && next.Status != MatchCompleted {
				next.Status = MatchCompleted
				next.WinnerTpID = &player
				if err := walk(next); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(completed); err != nil {
		return nil, err
	}
	return changed, nil
}

// StageComplete reports whether every match that feeds nothing further has
// been decided. For a full bracket that is the final; for a Stage 1 that
// narrows the field it is every qualifying match.
func StageComplete(matches []*Match) bool {
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if m.NextWinnerMatchID == nil && m.Status != MatchCompleted {
			return false
		}
	}
	return true
}

var sideOrder = map[BracketSide]int{WinnersSide: 0, LosersSide: 1, FinalsSide: 2}

// Qualifiers returns the winners of the terminal matches, winners side first.
func Qualifiers(matches []*Match) []uuid.UUID {
	var terminal []*Match
	for _, m := range matches {
		if m.NextWinnerMatchID == nil && m.WinnerTpID != nil {
			terminal = append(terminal, m)
		}
	}

	sort.SliceStable(terminal, func(i, j int) bool {
		a, b := terminal[i], terminal[j]
		if sideOrder[a.BracketSide] != sideOrder[b.BracketSide] {
			return sideOrder[a.BracketSide] < sideOrder[b.BracketSide]
		}
		if a.RoundNumber != b.RoundNumber {
			return a.RoundNumber < b.RoundNumber
		}
		return a.PositionInRound < b.PositionInRound
	})

	out := make([]uuid.UUID, 0, len(terminal))
	for _, m := range terminal {
		out = append(out, *m.WinnerTpID)
	}
	return out
}

// CheckGraph verifies the structural invariants of a stage: every sourced
// slot has exactly one producing match that points back at it, winners are
// consistent, and following next pointers never loops.
func CheckGraph(matches []*Match) error {
	index := make(map[uuid.UUID]*Match, len(matches))
	for _, m := range matches {
		index[m.ID] = m
	}

	type edge struct {
		source uuid.UUID
		kind   SourceType
	}
	fed := make(map[edge]uuid.UUID)

	for _, m := range matches {
		if err := m.Validate(); err != nil {
			return err
		}

		for _, s := range []struct {
			kind   SourceType
			source *uuid.UUID
		}{
			{m.Player1SourceType, m.Player1SourceMatchID},
			{m.Player2SourceType, m.Player2SourceMatchID},
		} {
			if s.kind == SourceSeed || s.kind == "" {
				continue
			}
			if s.source == nil {
				return fmt.Errorf("match %s has a %s slot without a source match", m.ID, s.kind)
			}
			src, ok := index[*s.source]
			if !ok {
				return fmt.Errorf("match %s is fed by unknown match %s", m.ID, *s.source)
			}

			next := src.NextWinnerMatchID
			if s.kind == SourceLoserOf {
				next = src.NextLoserMatchID
			}
			if next == nil || *next != m.ID {
				return fmt.Errorf("match %s does not route its %s result to match %s", src.ID, s.kind, m.ID)
			}

			e := edge{source: src.ID, kind: s.kind}
			if other, dup := fed[e]; dup {
				return fmt.Errorf("%s of match %s feeds both %s and %s", s.kind, src.ID, other, m.ID)
			}
			fed[e] = m.ID
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[uuid.UUID]int, len(matches))

	var visit func(id uuid.UUID) error
	visit = func(id uuid.UUID) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("match %s is part of a cycle", id)
		case done:
			return nil
		}
		state[id] = visiting
		m, ok := index[id]
		if ok {
			for _, next := range []*uuid.UUID{m.NextWinnerMatchID, m.NextLoserMatchID} {
				if next == nil {
					continue
				}
				if err := visit(*next); err != nil {
					return err
				}
			}
		}
		state[id] = done
		return nil
	}

	for _, m := range matches {
		if err := visit(m.ID); err != nil {
			return err
		}
	}
	return nil
}
