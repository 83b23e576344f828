package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"vehicle-auction/internal/auctionerrors"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	store := NewMemorySessionStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "s1", "u1", time.Minute))

	userID, err := store.Lookup(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "u1", userID)

	_, err = store.Lookup(ctx, "unknown")
	require.ErrorIs(t, err, auctionerrors.ErrSessionNotFound)

	// expiry
	now = now.Add(time.Minute)
	_, err = store.Lookup(ctx, "s1")
	require.ErrorIs(t, err, auctionerrors.ErrSessionNotFound)

	// delete is idempotent
	require.NoError(t, store.Save(ctx, "s2", "u1", time.Minute))
	require.NoError(t, store.Delete(ctx, "s2"))
	require.NoError(t, store.Delete(ctx, "s2"))
	_, err = store.Lookup(ctx, "s2")
	require.ErrorIs(t, err, auctionerrors.ErrSessionNotFound)
}

func TestMemorySessionStore_SavePrunesExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	store := NewMemorySessionStore()
	store.now = func() time.Time { return now }

	// abandoned sessions are never looked up again
	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, store.Save(ctx, id, "u1", time.Minute))
	}
	require.NoError(t, store.Save(ctx, "long", "u2", time.Hour))
	require.Len(t, store.sessions, 4)

	now = now.Add(2 * time.Minute)
	require.NoError(t, store.Save(ctx, "fresh", "u3", time.Minute))
	require.Len(t, store.sessions, 2)

	userID, err := store.Lookup(ctx, "long")
	require.NoError(t, err)
	require.Equal(t, "u2", userID)
	_, err = store.Lookup(ctx, "a1")
	require.ErrorIs(t, err, auctionerrors.ErrSessionNotFound)
}

func TestRedisSessionStore_Save(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisSessionStore(db, "session:")

	mock.ExpectSet("session:s1", "u1", time.Hour).SetVal("OK")
	require.NoError(t, store.Save(context.Background(), "s1", "u1", time.Hour))

	mock.ExpectSet("session:s2", "u1", time.Hour).SetErr(errors.New("redis down"))
	require.Error(t, store.Save(context.Background(), "s2", "u1", time.Hour))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSessionStore_Lookup(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(mock redismock.ClientMock)
		want      string
		wantError error
		anyError  bool
	}{
		{
			name:  "found",
			setup: func(mock redismock.ClientMock) { mock.ExpectGet("session:s1").SetVal("u1") },
			want:  "u1",
		},
		{
			name:      "missing",
			setup:     func(mock redismock.ClientMock) { mock.ExpectGet("session:s1").RedisNil() },
			wantError: auctionerrors.ErrSessionNotFound,
		},
		{
			name:     "redis_error",
			setup:    func(mock redismock.ClientMock) { mock.ExpectGet("session:s1").SetErr(errors.New("timeout")) },
			anyError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			store := NewRedisSessionStore(db, "session:")
			tc.setup(mock)

			got, err := store.Lookup(context.Background(), "s1")
			switch {
			case tc.wantError != nil:
				require.ErrorIs(t, err, tc.wantError)
			case tc.anyError:
				require.Error(t, err)
				require.NotErrorIs(t, err, auctionerrors.ErrSessionNotFound)
			default:
				require.NoError(t, err)
				require.Equal(t, tc.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisSessionStore_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisSessionStore(db, "session:")

	mock.ExpectDel("session:s1").SetVal(1)
	mock.ExpectDel("session:s1").SetVal(0)

	require.NoError(t, store.Delete(context.Background(), "s1"))
	require.NoError(t, store.Delete(context.Background(), "s1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
