package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestClaimNotification(t *testing.T) {
	link := "http://www.youtube.com/watch?v=VIDEO_ID"

	t.Run("first claim wins", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO notifications \(link\) VALUES \(\$1\) ON CONFLICT \(link\) DO NOTHING`).
			WithArgs(link).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		claimed, err := store.ClaimNotification(context.Background(), link)
		assert.NoError(t, err)
		assert.True(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing link is not claimed again", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO notifications`).WithArgs(link).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		claimed, err := store.ClaimNotification(context.Background(), link)
		assert.NoError(t, err)
		assert.False(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO notifications`).WithArgs(link).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		claimed, err := store.ClaimNotification(context.Background(), link)
		assert.Error(t, err)
		assert.False(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure is not a claim", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO notifications`).WithArgs(link).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		claimed, err := store.ClaimNotification(context.Background(), link)
		assert.Error(t, err)
		assert.False(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
