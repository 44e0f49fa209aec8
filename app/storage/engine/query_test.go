package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryMap_Pick(t *testing.T) {
	qmap := NewQueryMap("prayers").
		Add(1, Query{
			Sqlite:   "CREATE TABLE prayers (id TEXT, created_at DATETIME)",
			Postgres: "CREATE TABLE prayers (id TEXT, created_at TIMESTAMP)",
		}).
		AddSame(2, "CREATE INDEX idx_prayers_zip ON prayers(zip)")

	tests := []struct {
		name    string
		dbType  Type
		cmd     DBCmd
		want    string
		wantErr string
	}{
		{name: "sqlite", dbType: Sqlite, cmd: 1, want: "CREATE TABLE prayers (id TEXT, created_at DATETIME)"},
		{name: "postgres", dbType: Postgres, cmd: 1, want: "CREATE TABLE prayers (id TEXT, created_at TIMESTAMP)"},
		{name: "same for sqlite", dbType: Sqlite, cmd: 2, want: "CREATE INDEX idx_prayers_zip ON prayers(zip)"},
		{name: "same for postgres", dbType: Postgres, cmd: 2, want: "CREATE INDEX idx_prayers_zip ON prayers(zip)"},
		{name: "unknown db type", dbType: Unknown, cmd: 1, wantErr: "unsupported database type"},
		{name: "unknown command", dbType: Sqlite, cmd: 99, wantErr: "no prayers query for command 99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := qmap.Pick(tt.dbType, tt.cmd)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryMap_Get(t *testing.T) {
	qmap := NewQueryMap("prayers").
		AddSame(1, "SELECT id FROM prayers WHERE gid = ? AND zip = ? AND text <> '?'")

	tests := []struct {
		name   string
		dbType Type
		want   string
	}{
		{name: "sqlite keeps placeholders", dbType: Sqlite,
			want: "SELECT id FROM prayers WHERE gid = ? AND zip = ? AND text <> '?'"},
		{name: "postgres numbers placeholders", dbType: Postgres,
			want: "SELECT id FROM prayers WHERE gid = $1 AND zip = $2 AND text <> '?'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := qmap.Get(&SQL{dbType: tt.dbType}, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown command", func(t *testing.T) {
		_, err := qmap.Get(&SQL{dbType: Postgres}, 2)
		assert.EqualError(t, err, "no prayers query for command 2")
	})

	t.Run("nil db", func(t *testing.T) {
		_, err := qmap.Get(nil, 1)
		assert.EqualError(t, err, "db connection is nil")
	})
}

func TestQueryMap_Duplicate(t *testing.T) {
	qmap := NewQueryMap("rejected_prayers").AddSame(1, "SELECT 1")
	assert.PanicsWithValue(t, "duplicate rejected_prayers command 1", func() { qmap.AddSame(1, "SELECT 2") })
	got, err := qmap.Pick(Postgres, 1)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
}
