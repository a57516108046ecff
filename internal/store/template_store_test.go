package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/payout"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplate(owner uuid.UUID, name string, min, max int) *payout.Template {
	now := time.Now().UTC()
	return &payout.Template{
		ID:         uuid.New(),
		OwnerID:    owner,
		Name:       name,
		MinPlayers: min,
		MaxPlayers: max,
		Places:     2,
		Percents: payout.Distribution{
			{Rank: 1, Percent: decimal.NewFromInt(70)},
			{Rank: 2, Percent: decimal.NewFromInt(30)},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func insertTemplate(t *testing.T, db *sqlx.DB, tpl *payout.Template) {
	t.Helper()
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, NewTemplateStore(db).CreateTemplate(context.Background(), tx, tpl))
	require.NoError(t, tx.Commit())
}

func TestCreateAndGetTemplate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	owner := uuid.MustParse(testOwnerID)
	tpl := newTemplate(owner, "Small field", 8, 16)
	insertTemplate(t, db, tpl)

	fetched, err := NewTemplateStore(db).GetTemplate(context.Background(), tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.Name, fetched.Name)
	assert.Equal(t, 2, fetched.Places)
	require.Len(t, fetched.Percents, 2)
	assert.True(t, fetched.Percents[0].Percent.Equal(decimal.NewFromInt(70)))

	var raw string
	require.NoError(t, db.Get(&raw, "SELECT percents FROM payout_templates WHERE id = ?", tpl.ID))
	assert.JSONEq(t, `[{"rank":1,"percent":"70"},{"rank":2,"percent":"30"}]`, raw)
}

func TestUpdateTemplateOwnership(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTemplateStore(db)
	owner := uuid.MustParse(testOwnerID)
	tpl := newTemplate(owner, "Small field", 8, 16)
	insertTemplate(t, db, tpl)

	intruder := *tpl
	intruder.OwnerID = uuid.New()
	intruder.Name = "Hijacked"

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	updated, err := store.UpdateTemplate(context.Background(), tx, &intruder)
	require.NoError(t, err)
	assert.False(t, updated)
	require.NoError(t, tx.Commit())

	tpl.Name = "Renamed"
	tx, err = db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	updated, err = store.UpdateTemplate(context.Background(), tx, tpl)
	require.NoError(t, err)
	assert.True(t, updated)
	require.NoError(t, tx.Commit())

	fetched, err := store.GetTemplate(context.Background(), tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fetched.Name)
}

func TestFindTemplateForPlayerCount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTemplateStore(db)
	owner := uuid.MustParse(testOwnerID)
	wide := newTemplate(owner, "Wide", 2, 64)
	narrow := newTemplate(owner, "Narrow", 8, 16)
	other := newTemplate(uuid.New(), "Someone else's", 8, 8)
	for _, tpl := range []*payout.Template{wide, narrow, other} {
		insertTemplate(t, db, tpl)
	}

	testCases := []struct {
		count    int
		expected *payout.Template
	}{
		{4, wide},
		{8, narrow},
		{16, narrow},
		{17, wide},
		{65, nil},
	}

	for _, tc := range testCases {
		found, err := store.FindTemplateForPlayerCount(context.Background(), owner, tc.count)
		if tc.expected == nil {
			assert.ErrorIs(t, err, sql.ErrNoRows, "count %d", tc.count)
			continue
		}
		require.NoError(t, err, "count %d", tc.count)
		assert.Equal(t, tc.expected.ID, found.ID, "count %d", tc.count)
	}

	list, err := store.GetTemplatesByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
