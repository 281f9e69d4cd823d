package paramsource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-contract-tester/internal/types"
)

func clinic(t *testing.T) *Harvester {
	t.Helper()
	db, err := Open(context.Background(), DBConfig{Driver: "sqlite3", Database: filepath.Join(t.TempDir(), "clinic.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE owners (id INTEGER PRIMARY KEY, last_name TEXT)`,
		`CREATE TABLE pets (id INTEGER PRIMARY KEY, owner_id INTEGER, name TEXT)`,
		`CREATE TABLE visits (id INTEGER PRIMARY KEY, pet_id INTEGER, description TEXT)`,
		`INSERT INTO owners (id, last_name) VALUES (7, 'Davis')`,
		`INSERT INTO pets (id, owner_id, name) VALUES (11, 7, 'Leo')`,
		`INSERT INTO visits (id, pet_id, description) VALUES (3, 11, NULL)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return NewHarvester(db, "sqlite3", nil)
}

func TestHarvesterColumns(t *testing.T) {
	h := clinic(t)
	cols, err := h.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Column{
		{"owners", "id"}, {"owners", "last_name"},
		{"pets", "id"}, {"pets", "owner_id"}, {"pets", "name"},
		{"visits", "id"}, {"visits", "pet_id"}, {"visits", "description"},
	}, cols)
}

func TestHarvesterSuggestParams(t *testing.T) {
	h := clinic(t)
	op := &types.Operation{Method: "GET", Path: "/owners/{ownerId}/pets/{petId}"}
	params := []types.Parameter{
		{Name: "ownerId", In: types.InPath},
		{Name: "petId", In: types.InPath},
		{Name: "lastName", In: types.InQuery},
		{Name: "description", In: types.InQuery},
		{Name: "unknown", In: types.InQuery},
	}

	got, err := h.SuggestParams(context.Background(), op, params)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"ownerId":  int64(7),
		"petId":    int64(11),
		"lastName": "Davis",
	}, got)
}

func TestCandidates(t *testing.T) {
	cols := []Column{{"visits", "pet_id"}, {"pets", "id"}, {"categories", "id"}, {"users", "name"}}

	assert.Equal(t, []Column{{"visits", "pet_id"}, {"pets", "id"}}, candidates("petId", "/visits", cols))
	assert.Equal(t, []Column{{"pets", "id"}, {"visits", "pet_id"}}, candidates("petId", "/pets/{petId}", cols))
	assert.Equal(t, []Column{{"categories", "id"}}, candidates("category_id", "/", cols))
	assert.Empty(t, candidates("id", "/users", cols[3:]))
}

func TestHarvesterUnsupportedDriver(t *testing.T) {
	h := NewHarvester(nil, "oracle", nil)
	_, err := h.SuggestParams(context.Background(), &types.Operation{}, nil)
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestHarvesterSampleQuery(t *testing.T) {
	col := Column{Table: "owners", Name: "id"}
	tests := []struct {
		driver string
		want   string
	}{
		{driver: "postgres", want: `SELECT "id" FROM "owners" WHERE "id" IS NOT NULL LIMIT 1`},
		{driver: "sqlite3", want: `SELECT "id" FROM "owners" WHERE "id" IS NOT NULL LIMIT 1`},
		{driver: "mysql", want: "SELECT `id` FROM `owners` WHERE `id` IS NOT NULL LIMIT 1"},
		{driver: "sqlserver", want: "SELECT TOP 1 [id] FROM [owners] WHERE [id] IS NOT NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			h := NewHarvester(nil, tt.driver, nil)
			assert.Equal(t, tt.want, h.sampleQuery(col))
		})
	}
}
