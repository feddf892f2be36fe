package database

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniqueViolationTarget(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not a unique violation", errors.New("database is locked"), ""},
		{
			"sqlite idempotency",
			errors.New("UNIQUE constraint failed: bookings.idempotency_key"),
			"idempotency",
		},
		{
			"sqlite slot",
			errors.New("UNIQUE constraint failed: bookings.slot_key"),
			"slot",
		},
		{
			"sqlite dedupe",
			errors.New("UNIQUE constraint failed: sms_logs.dedupe_key"),
			"dedupe",
		},
		{
			"postgres partial idempotency index",
			errors.New(`ERROR: duplicate key value violates unique constraint "idx_bookings_active_idem" (SQLSTATE 23505)`),
			"idempotency",
		},
		{
			"postgres partial slot index",
			errors.New(`ERROR: duplicate key value violates unique constraint "idx_bookings_active_slot" (SQLSTATE 23505)`),
			"slot",
		},
		{
			"unique violation on an unclassified index",
			errors.New(`ERROR: duplicate key value violates unique constraint "businesses_pkey" (SQLSTATE 23505)`),
			"other",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UniqueViolationTarget(tc.err))
		})
	}
}

func TestWriteTxOptionsAreSerializable(t *testing.T) {
	opts := WriteTxOptions()
	assert.Equal(t, sql.LevelSerializable, opts.Isolation)
	assert.False(t, opts.ReadOnly)
}
