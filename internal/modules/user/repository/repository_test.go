package repository

import (
	"context"
	"testing"

	"crawford.app/podcastserver/internal/entity"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestUpdate_BumpsUpdatedAt(t *testing.T) {
	db, mock := setupTestDB(t)

	user := &entity.User{
		ID:           3,
		Username:     "carol",
		Email:        "carol@example.com",
		PasswordHash: "hash",
		IsActive:     true,
		Role:         entity.RoleLecturer,
	}

	mock.ExpectExec(`UPDATE "users" SET "username"=\$1,"email"=\$2,"password_hash"=\$3,"is_active"=\$4,"role"=\$5,"updated_at"=\$6 WHERE "id" = \$7`).
		WithArgs("carol", "carol@example.com", "hash", true, "lecturer", sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewUserRepository(db).Update(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascade(t *testing.T) {
	t.Run("removes podcasts and streams before the user", func(t *testing.T) {
		db, mock := setupTestDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "podcasts" WHERE owner_id = \$1`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM "live_streams" WHERE host_id = \$1`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "users" WHERE "users"."id" = \$1`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewUserRepository(db).DeleteCascade(context.Background(), 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user rolls back", func(t *testing.T) {
		db, mock := setupTestDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "podcasts"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM "live_streams"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM "users"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := NewUserRepository(db).DeleteCascade(context.Background(), 3)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
