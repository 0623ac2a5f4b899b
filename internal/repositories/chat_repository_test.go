package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*ChatRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewChatRepo(sqlx.NewDb(db, "sqlmock")), mockDB
}

func chatRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "participant1_id", "participant2_id", "last_message", "last_message_at", "created_at",
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert chat: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(assert.AnError))
	assert.False(t, isUniqueViolation(nil))
}

func TestCreateOrGetChatNormalizesPair(t *testing.T) {
	repo, mockDB := newMockRepo(t)

	// Callers pass the pair in either order; the row is keyed on the sorted one.
	mockDB.ExpectQuery("FROM chats WHERE participant1_id").
		WithArgs(1, 2).
		WillReturnRows(chatRows().AddRow(10, 1, 2, "", nil, time.Now()))

	chat, err := repo.CreateOrGetChat(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, chat.ID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestCreateOrGetChatInsertsWhenAbsent(t *testing.T) {
	repo, mockDB := newMockRepo(t)

	mockDB.ExpectQuery("FROM chats WHERE participant1_id").
		WithArgs(1, 2).
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("INSERT INTO chats").
		WithArgs(1, 2).
		WillReturnRows(chatRows().AddRow(11, 1, 2, "", nil, time.Now()))

	chat, err := repo.CreateOrGetChat(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 11, chat.ID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestCreateOrGetChatRereadsOnDuplicatePair(t *testing.T) {
	repo, mockDB := newMockRepo(t)

	// A concurrent creator wins the insert race; the duplicate-key failure
	// means the row now exists, so it is re-read instead of surfacing.
	mockDB.ExpectQuery("FROM chats WHERE participant1_id").
		WithArgs(1, 2).
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("INSERT INTO chats").
		WithArgs(1, 2).
		WillReturnError(&pq.Error{Code: "23505"})
	mockDB.ExpectQuery("FROM chats WHERE participant1_id").
		WithArgs(1, 2).
		WillReturnRows(chatRows().AddRow(12, 1, 2, "", nil, time.Now()))

	chat, err := repo.CreateOrGetChat(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 12, chat.ID)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestCreateOrGetChatSurfacesOtherInsertErrors(t *testing.T) {
	repo, mockDB := newMockRepo(t)

	mockDB.ExpectQuery("FROM chats WHERE participant1_id").
		WithArgs(1, 2).
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("INSERT INTO chats").
		WithArgs(1, 2).
		WillReturnError(&pq.Error{Code: "23503"})

	_, err := repo.CreateOrGetChat(context.Background(), 1, 2)
	require.Error(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestCreateOrGetChatRejectsSelf(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.CreateOrGetChat(context.Background(), 3, 3)
	assert.Error(t, err)
}

func TestGetChatNotFound(t *testing.T) {
	repo, mockDB := newMockRepo(t)

	mockDB.ExpectQuery("FROM chats WHERE id").
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetChat(context.Background(), 99)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
