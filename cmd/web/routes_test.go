package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/bracket"
	"github.com/AdamBeresnev/poolbracket/internal/db"
	"github.com/AdamBeresnev/poolbracket/internal/service"
	"github.com/AdamBeresnev/poolbracket/internal/store"
	"github.com/AdamBeresnev/poolbracket/internal/token"
	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	bearer  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.Open(db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database, "../../migrations"))

	tokens := token.NewService("test-secret", time.Hour)
	app := newApplication(database, scs.New(), store.NewMatchLockStore(database), tokens, 30*time.Second)

	return &testServer{t: t, handler: newRouter(app)}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+s.bearer)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) login() {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/guest", nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	s.bearer = decode[loginResponse](s.t, rec).Token
}

func TestOrganizerRoutesRequireLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/tournaments", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Authentication required."}`, rec.Body.String())

	srv.login()
	rec = srv.do(http.MethodGet, "/tournaments", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTournamentRoute(t *testing.T) {
	srv := newTestServer(t)
	srv.login()

	rec := srv.do(http.MethodPost, "/tournaments", map[string]any{
		"name":                 "Cup",
		"bracketType":          "single_elimination",
		"isMultiStage":         true,
		"advanceToStage2Count": 8,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, bracket.MsgSingleElimMultiStageCreate, decode[map[string]string](t, rec)["error"])

	rec = srv.do(http.MethodPost, "/tournaments", map[string]any{"name": "Cup", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/tournaments", map[string]any{
		"name":                "Cup",
		"bracketSizeEstimate": 16,
		"entryFee":            "100",
		"adminFee":            "10",
		"addedMoney":          "500",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[bracket.Tournament](t, rec)
	assert.Equal(t, "1940", created.TotalPrize.String())

	rec = srv.do(http.MethodGet, "/tournaments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodGet, fmt.Sprintf("/tournaments/%s/payouts", created.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScoringRoutes(t *testing.T) {
	srv := newTestServer(t)
	srv.login()

	rec := srv.do(http.MethodPost, "/tournaments", map[string]any{
		"name":           "Cup",
		"bracketType":    "single_elimination",
		"stage1Ordering": "seeded",
		"winnersRaceTo":  3,
		"finalsRaceTo":   3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tournament := decode[bracket.Tournament](t, rec)

	rec = srv.do(http.MethodPost, fmt.Sprintf("/tournaments/%s/players", tournament.ID), map[string]any{
		"text": "Alice\nBob\nCarol\nDave\n",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodPost, fmt.Sprintf("/tournaments/%s/start", tournament.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	detail := decode[service.TournamentDetail](t, rec)

	rec = srv.do(http.MethodGet, fmt.Sprintf("/tournaments/%s/bracket", tournament.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	layouts := decode[[]bracket.Layout](t, rec)
	require.Len(t, layouts, 1)
	require.Len(t, layouts[0].Sides, 1)
	assert.Len(t, layouts[0].Sides[0].Rounds, 2)
	assert.Len(t, layouts[0].Names, 4)

	var first bracket.Match
	for _, m := range detail.Matches {
		if m.RoundNumber == 1 && m.PositionInRound == 1 {
			first = m
		}
	}
	require.NotNil(t, first.Player1TpID)

	rec = srv.do(http.MethodPut, fmt.Sprintf("/matches/%s/table", first.ID), map[string]any{"tableId": 1, "rowVersion": first.RowVersion})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assigned := decode[bracket.Match](t, rec)

	rec = srv.do(http.MethodPost, fmt.Sprintf("/tournaments/%s/tables/1/token", tournament.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issued := decode[service.TableToken](t, rec)

	organizer := srv.bearer
	srv.bearer = issued.Token

	rec = srv.do(http.MethodGet, "/table/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]bracket.Match](t, rec), 1)

	rec = srv.do(http.MethodGet, "/tournaments", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "table tokens cannot manage tournaments")

	rec = srv.do(http.MethodPut, fmt.Sprintf("/matches/%s/score", first.ID), map[string]any{"scoreP1": 1, "scoreP2": 0, "rowVersion": assigned.RowVersion})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	scored := decode[bracket.Match](t, rec)
	assert.Equal(t, bracket.MatchInProgress, scored.Status)

	rec = srv.do(http.MethodPut, fmt.Sprintf("/matches/%s/score", first.ID), map[string]any{"scoreP1": 2, "scoreP2": 0, "rowVersion": assigned.RowVersion})
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[struct {
		Error  string         `json:"error"`
		Latest *bracket.Match `json:"latest"`
	}](t, rec)
	require.NotNil(t, conflict.Latest)
	assert.Equal(t, scored.RowVersion, conflict.Latest.RowVersion)

	rec = srv.do(http.MethodPost, fmt.Sprintf("/matches/%s/complete", first.ID), map[string]any{"scoreP1": 3, "scoreP2": 1, "rowVersion": scored.RowVersion})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[service.CompletionResult](t, rec)
	assert.Equal(t, bracket.MatchCompleted, result.Match.Status)
	assert.Len(t, result.Advanced, 1)

	srv.bearer = "garbage"
	rec = srv.do(http.MethodPut, fmt.Sprintf("/matches/%s/score", first.ID), map[string]any{"scoreP1": 1, "rowVersion": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	srv.bearer = organizer
	rec = srv.do(http.MethodPost, fmt.Sprintf("/tournaments/%s/start", tournament.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Tournament has already started.", decode[map[string]string](t, rec)["error"])
}

func TestPayoutTemplateRoutes(t *testing.T) {
	srv := newTestServer(t)
	srv.login()

	rec := srv.do(http.MethodPost, "/payout-templates", map[string]any{
		"name":       "Top three",
		"minPlayers": 2,
		"maxPlayers": 32,
		"percents": []map[string]any{
			{"rank": 1, "percent": "50"},
			{"rank": 2, "percent": "30"},
			{"rank": 3, "percent": "19.98"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payout percentages must total 100% (got 99.98%).", decode[map[string]string](t, rec)["error"])

	rec = srv.do(http.MethodPost, "/payouts/simulate", map[string]any{
		"pool":     "1000",
		"percents": []map[string]any{{"rank": 1, "percent": 70}, {"rank": 2, "percent": 30}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	breakdown := decode[struct {
		Payouts []struct {
			Amount string `json:"amount"`
		} `json:"payouts"`
	}](t, rec)
	require.Len(t, breakdown.Payouts, 2)
	assert.Equal(t, "700", breakdown.Payouts[0].Amount)
	assert.Equal(t, "300", breakdown.Payouts[1].Amount)
}
