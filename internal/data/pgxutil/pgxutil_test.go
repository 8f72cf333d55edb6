package pgxutil

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToPgxTxOptions(t *testing.T) {
	assert.Equal(t, pgx.TxOptions{}, ToPgxTxOptions(nil))

	got := ToPgxTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: true})
	assert.Equal(t, pgx.Serializable, got.IsoLevel)
	assert.Equal(t, pgx.ReadOnly, got.AccessMode)

	got = ToPgxTxOptions(&sql.TxOptions{Isolation: sql.LevelReadCommitted})
	assert.Equal(t, pgx.ReadCommitted, got.IsoLevel)
	assert.Equal(t, pgx.ReadWrite, got.AccessMode)
}

func TestToPgxIsoLevel(t *testing.T) {
	tests := []struct {
		input    sql.IsolationLevel
		expected pgx.TxIsoLevel
	}{
		{sql.LevelDefault, pgx.TxIsoLevel("")},
		{sql.LevelSerializable, pgx.Serializable},
		{sql.LevelLinearizable, pgx.Serializable},
		{sql.LevelRepeatableRead, pgx.RepeatableRead},
		{sql.LevelSnapshot, pgx.RepeatableRead},
		{sql.LevelReadCommitted, pgx.ReadCommitted},
		{sql.LevelWriteCommitted, pgx.ReadCommitted},
		{sql.LevelReadUncommitted, pgx.ReadUncommitted},
	}

	for _, tt := range tests {
		t.Run(tt.input.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, ToPgxIsoLevel(tt.input))
		})
	}
}
