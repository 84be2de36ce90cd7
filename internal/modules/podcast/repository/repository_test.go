package repository

import (
	"context"
	"regexp"
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

func TestIncrementCounters(t *testing.T) {
	tests := []struct {
		name      string
		call      func(r Repository) (*entity.Podcast, error)
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
		check     func(t *testing.T, p *entity.Podcast)
	}{
		{
			name: "plays is incremented in a single statement",
			call: func(r Repository) (*entity.Podcast, error) { return r.IncrementPlays(context.Background(), 5) },
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "podcasts" SET "plays"=plays + $1 WHERE id = $2 RETURNING *`)).
					WithArgs(1, 5).
					WillReturnRows(sqlmock.NewRows([]string{"id", "title", "plays", "views", "owner_id"}).
						AddRow(5, "Ep", 8, 3, 1))
			},
			check: func(t *testing.T, p *entity.Podcast) {
				assert.Equal(t, uint(5), p.ID)
				assert.Equal(t, int64(8), p.Plays)
				assert.Equal(t, int64(3), p.Views)
			},
		},
		{
			name: "views is incremented in a single statement",
			call: func(r Repository) (*entity.Podcast, error) { return r.IncrementViews(context.Background(), 5) },
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "podcasts" SET "views"=views + $1 WHERE id = $2 RETURNING *`)).
					WithArgs(1, 5).
					WillReturnRows(sqlmock.NewRows([]string{"id", "title", "plays", "views", "owner_id"}).
						AddRow(5, "Ep", 0, 1, 1))
			},
			check: func(t *testing.T, p *entity.Podcast) {
				assert.Equal(t, int64(1), p.Views)
			},
		},
		{
			name: "missing podcast",
			call: func(r Repository) (*entity.Podcast, error) { return r.IncrementViews(context.Background(), 9) },
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "podcasts" SET "views"=views + $1 WHERE id = $2 RETURNING *`)).
					WithArgs(1, 9).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantErr: gorm.ErrRecordNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupTestDB(t)
			tt.setupMock(mock)

			p, err := tt.call(NewRepository(db))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				tt.check(t, p)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdate_LeavesCountersAlone(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectExec(`UPDATE "podcasts" SET "title"=\$1,"description"=\$2,"author"=\$3,"duration_minutes"=\$4,"audio_file_url"=\$5,"cover_art_url"=\$6,"updated_at"=\$7 WHERE ("podcasts"\.)?"id" = \$8`).
		WithArgs("New", nil, nil, nil, "/uploads/audio/a.mp3", nil, sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewRepository(db).Update(context.Background(), &entity.Podcast{
		ID:           5,
		Title:        "New",
		AudioFileURL: "/uploads/audio/a.mp3",
		Views:        100,
		Plays:        100,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deleted", affected: 1},
		{name: "not found", affected: 0, wantErr: gorm.ErrRecordNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupTestDB(t)
			mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "podcasts" WHERE "podcasts"."id" = $1`)).
				WithArgs(5).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := NewRepository(db).Delete(context.Background(), 5)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindByIDs_KeepsRankOrder(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "podcasts" WHERE id IN ($1,$2,$3)`)).
		WithArgs(3, 1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(1, "one").
			AddRow(3, "three"))

	podcasts, err := NewRepository(db).FindByIDs(context.Background(), []uint{3, 1, 2})
	require.NoError(t, err)
	require.Len(t, podcasts, 2)
	assert.Equal(t, uint(3), podcasts[0].ID)
	assert.Equal(t, uint(1), podcasts[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDs_Empty(t *testing.T) {
	db, _ := setupTestDB(t)
	podcasts, err := NewRepository(db).FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, podcasts)
}
