package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/actor"
	"github.com/AdamBeresnev/poolbracket/internal/bracket"
	"github.com/AdamBeresnev/poolbracket/internal/db"
	"github.com/AdamBeresnev/poolbracket/internal/store"
	"github.com/AdamBeresnev/poolbracket/internal/token"
	"github.com/AdamBeresnev/poolbracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const testOwnerID = "00000000-0000-0000-0000-000000000001"

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(db.DriverSQLite, "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	require.NoError(t, db.RunMigrations(database, "../../migrations"), "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

type testEnv struct {
	db          *sqlx.DB
	tournaments *TournamentService
	templates   *TemplateService
	payouts     *PayoutService
	scoring     *ScoringService
	locks       *store.MatchLockStore
	tokens      *token.Service
	owner       uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := setupTestDB(t)

	tournamentStore := store.NewTournamentStore(database)
	templateStore := store.NewTemplateStore(database)
	locks := store.NewMatchLockStore(database)
	tokens := token.NewService("test-secret", time.Hour)
	templates := NewTemplateService(database, templateStore)

	env := &testEnv{
		db:          database,
		tournaments: NewTournamentService(database, tournamentStore, templateStore),
		templates:   templates,
		payouts:     NewPayoutService(tournamentStore, templates),
		scoring:     NewScoringService(database, tournamentStore, locks, tokens, 30*time.Second),
		locks:       locks,
		tokens:      tokens,
		owner:       uuid.MustParse(testOwnerID),
	}
	// Keep registration order so results are predictable.
	env.tournaments.shuffle = nil
	env.scoring.shuffle = nil
	return env
}

func (e *testEnv) organizer() actor.Actor {
	return actor.User{ID: e.owner}
}

func playerNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Player %d", i+1)
	}
	return names
}

// startTournament creates a tournament with n players, seeded, racing to 3.
func (e *testEnv) startTournament(t *testing.T, n int, in TournamentInput) *TournamentDetail {
	t.Helper()
	ctx := context.Background()

	if !in.Name.IsSet() {
		in.Name = utils.Some("Friday 9-ball")
	}
	if !in.Stage1Ordering.IsSet() {
		in.Stage1Ordering = utils.Some(bracket.OrderingSeeded)
	}
	for _, r := range []*utils.Opt[int]{&in.WinnersRaceTo, &in.LosersRaceTo, &in.FinalsRaceTo} {
		if !r.IsSet() {
			*r = utils.Some(3)
		}
	}

	tournament, err := e.tournaments.Create(ctx, e.owner, in)
	require.NoError(t, err)

	_, err = e.tournaments.AddPlayers(ctx, tournament.ID, e.owner, playerNames(n))
	require.NoError(t, err)

	detail, err := e.tournaments.Start(ctx, tournament.ID, e.owner)
	require.NoError(t, err)
	return detail
}

func (e *testEnv) matches(t *testing.T, tournamentID uuid.UUID) []bracket.Match {
	t.Helper()
	detail, err := e.tournaments.Get(context.Background(), tournamentID, e.owner)
	require.NoError(t, err)
	return detail.Matches
}

func findMatch(t *testing.T, matches []bracket.Match, side bracket.BracketSide, round, position int) bracket.Match {
	t.Helper()
	for _, m := range matches {
		if m.BracketSide == side && m.RoundNumber == round && m.PositionInRound == position {
			return m
		}
	}
	t.Fatalf("no %s R%d M%d", side, round, position)
	return bracket.Match{}
}

// playOut completes every ready match, player 1 winning, until nothing is
// left to play. It returns the last completion.
func (e *testEnv) playOut(t *testing.T, tournamentID uuid.UUID) *CompletionResult {
	t.Helper()
	var last *CompletionResult
	for {
		var next *bracket.Match
		for _, m := range e.matches(t, tournamentID) {
			if m.Status != bracket.MatchCompleted && m.IsReady() {
				next = &m
				break
			}
		}
		if next == nil {
			return last
		}

		res, err := e.scoring.CompleteMatch(context.Background(), e.organizer(), ScoreInput{
			MatchID:    next.ID,
			ScoreP1:    next.RaceTo,
			ScoreP2:    0,
			RowVersion: next.RowVersion,
		})
		require.NoError(t, err)
		last = res
	}
}
