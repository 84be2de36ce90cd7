package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"crawford.app/podcastserver/internal/entity"
	"crawford.app/podcastserver/internal/modules/podcast/dto"
	"crawford.app/podcastserver/pkg/apperror"
	commonDto "crawford.app/podcastserver/pkg/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockRepo struct {
	podcasts  map[uint]*entity.Podcast
	nextID    uint
	createErr error
	updateErr error
}

func newMockRepo(podcasts ...*entity.Podcast) *mockRepo {
	m := &mockRepo{podcasts: map[uint]*entity.Podcast{}, nextID: 10}
	for _, p := range podcasts {
		m.podcasts[p.ID] = p
	}
	return m
}

func (m *mockRepo) Create(ctx context.Context, p *entity.Podcast) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	p.ID = m.nextID
	p.UploadedAt = time.Now()
	clone := *p
	m.podcasts[p.ID] = &clone
	return nil
}

func (m *mockRepo) FindByID(ctx context.Context, id uint) (*entity.Podcast, error) {
	p, ok := m.podcasts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockRepo) FindByIDs(ctx context.Context, ids []uint) ([]*entity.Podcast, error) {
	var out []*entity.Podcast
	for _, id := range ids {
		if p, ok := m.podcasts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) FindAll(ctx context.Context, offset, limit int) ([]*entity.Podcast, error) {
	var out []*entity.Podcast
	for _, p := range m.podcasts {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRepo) FindByOwner(ctx context.Context, ownerID uint) ([]*entity.Podcast, error) {
	return nil, nil
}

func (m *mockRepo) Search(ctx context.Context, query string, limit int) ([]*entity.Podcast, error) {
	var out []*entity.Podcast
	for _, p := range m.podcasts {
		if strings.Contains(strings.ToLower(p.Title), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(ctx context.Context, p *entity.Podcast) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	clone := *p
	m.podcasts[p.ID] = &clone
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := m.podcasts[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.podcasts, id)
	return nil
}

func (m *mockRepo) IncrementViews(ctx context.Context, id uint) (*entity.Podcast, error) {
	p, ok := m.podcasts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p.Views++
	clone := *p
	return &clone, nil
}

func (m *mockRepo) IncrementPlays(ctx context.Context, id uint) (*entity.Podcast, error) {
	p, ok := m.podcasts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p.Plays++
	clone := *p
	return &clone, nil
}

type mockStorage struct {
	files      map[string]string
	failFolder string
	deleteErr  error
	deleted    []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: map[string]string{}}
}

func (m *mockStorage) Upload(ctx context.Context, r io.Reader, folder, fileName string) (string, error) {
	if folder == m.failFolder {
		return "", errors.New("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	url := "/uploads/" + folder + "/" + fileName
	m.files[url] = string(data)
	return url, nil
}

func (m *mockStorage) Delete(ctx context.Context, fileURL string) error {
	m.deleted = append(m.deleted, fileURL)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.files, fileURL)
	return nil
}

func audioFile() *commonDto.AssetFile {
	return &commonDto.AssetFile{Reader: strings.NewReader("ID3..."), FileName: "episode.mp3", ContentType: "audio/mpeg"}
}

func coverFile() *commonDto.AssetFile {
	return &commonDto.AssetFile{Reader: strings.NewReader("PNG..."), FileName: "cover.png", ContentType: "image/png"}
}

var (
	lecturer      = &entity.User{ID: 1, Username: "alice", Role: entity.RoleLecturer, IsActive: true}
	otherLecturer = &entity.User{ID: 2, Username: "bob", Role: entity.RoleLecturer, IsActive: true}
	admin         = &entity.User{ID: 3, Username: "root", Role: entity.RoleAdmin, IsActive: true}
)

func TestCreatePodcast(t *testing.T) {
	t.Run("audio only starts with zero counters", func(t *testing.T) {
		repo, store := newMockRepo(), newMockStorage()
		svc := NewService(repo, store, Options{})

		resp, err := svc.CreatePodcast(context.Background(), lecturer, dto.CreatePodcastRequest{Title: "  Go Concurrency "}, audioFile(), nil)
		require.NoError(t, err)

		assert.Equal(t, "Go Concurrency", resp.Title)
		assert.Equal(t, int64(0), resp.Views)
		assert.Equal(t, int64(0), resp.Plays)
		assert.Equal(t, lecturer.ID, resp.OwnerID)
		assert.Nil(t, resp.CoverArtURL)
		assert.True(t, strings.HasPrefix(resp.AudioFileURL, "/uploads/audio/"))
		assert.True(t, strings.HasSuffix(resp.AudioFileURL, "_episode.mp3"))
		assert.Contains(t, store.files, resp.AudioFileURL)
	})

	t.Run("with cover art", func(t *testing.T) {
		repo, store := newMockRepo(), newMockStorage()
		svc := NewService(repo, store, Options{})

		resp, err := svc.CreatePodcast(context.Background(), lecturer, dto.CreatePodcastRequest{Title: "Ep"}, audioFile(), coverFile())
		require.NoError(t, err)
		require.NotNil(t, resp.CoverArtURL)
		assert.Len(t, store.files, 2)
	})

	t.Run("missing audio", func(t *testing.T) {
		svc := NewService(newMockRepo(), newMockStorage(), Options{})
		_, err := svc.CreatePodcast(context.Background(), lecturer, dto.CreatePodcastRequest{Title: "Ep"}, nil, nil)
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	})

	t.Run("blank title", func(t *testing.T) {
		store := newMockStorage()
		svc := NewService(newMockRepo(), store, Options{})
		_, err := svc.CreatePodcast(context.Background(), lecturer, dto.CreatePodcastRequest{Title: "   "}, audioFile(), nil)
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
		assert.Empty(t, store.files)
	})

	t.Run("wrong audio type", func(t *testing.T) {
		svc := NewService(newMockRepo(), newMockStorage(), Options{})
		bad := &commonDto.AssetFile{Reader: strings.NewReader("x"), FileName: "notes.txt", ContentType: "text/plain"}
		_, err := svc.CreatePodcast(context.Background(), lecturer, dto.CreatePodcastRequest{Title: "Ep"}, bad, nil)
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	})

	t.Run("cover upload failure rolls back audio", func(t *testing.T) {
		repo, store := newMockRepo(), newMockStorage()
		store.failFolder = coverFolder
		svc := NewService(repo, store, Options{})

		_, err := svc.CreatePodcast(context.Background(), lecturer, dto.CreatePodcastRequest{Title: "Ep"}, audioFile(), coverFile())
		require.Error(t, err)

		assert.Empty(t, store.files)
		assert.Len(t, store.deleted, 1)
		assert.Empty(t, repo.podcasts)
	})

	t.Run("database failure rolls back every file", func(t *testing.T) {
		repo, store := newMockRepo(), newMockStorage()
		repo.createErr = errors.New("insert failed")
		svc := NewService(repo, store, Options{})

		_, err := svc.CreatePodcast(context.Background(), lecturer, dto.CreatePodcastRequest{Title: "Ep"}, audioFile(), coverFile())
		require.Error(t, err)
		assert.True(t, http500(err))

		assert.Empty(t, store.files)
		assert.Len(t, store.deleted, 2)
	})
}

func http500(err error) bool {
	return apperror.MapErrorToStatus(err) == 500
}

func TestGetAndPlayPodcast(t *testing.T) {
	repo := newMockRepo(&entity.Podcast{ID: 5, Title: "Ep", AudioFileURL: "uploads/a.mp3", OwnerID: 1})
	svc := NewService(repo, newMockStorage(), Options{})
	ctx := context.Background()

	got, err := svc.GetPodcast(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Views)
	assert.Equal(t, "/uploads/a.mp3", got.AudioFileURL)

	got, err = svc.GetPodcast(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Views)

	played, err := svc.PlayPodcast(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), played.Plays)
	assert.Equal(t, "Play count incremented", played.Message)

	_, err = svc.GetPodcast(ctx, 404)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = svc.PlayPodcast(ctx, 404)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdatePodcast(t *testing.T) {
	cover := "/uploads/covers/old.png"
	seed := func() *entity.Podcast {
		return &entity.Podcast{ID: 5, Title: "Old", AudioFileURL: "/uploads/audio/old.mp3", CoverArtURL: &cover, OwnerID: lecturer.ID}
	}

	t.Run("owner replaces audio and old file is removed after save", func(t *testing.T) {
		repo, store := newMockRepo(seed()), newMockStorage()
		svc := NewService(repo, store, Options{})
		title := "New"

		resp, err := svc.UpdatePodcast(context.Background(), lecturer, 5, dto.UpdatePodcastRequest{Title: &title}, audioFile(), nil)
		require.NoError(t, err)

		assert.Equal(t, "New", resp.Title)
		assert.NotEqual(t, "/uploads/audio/old.mp3", resp.AudioFileURL)
		assert.Equal(t, []string{"/uploads/audio/old.mp3"}, store.deleted)
		assert.Equal(t, cover, *repo.podcasts[5].CoverArtURL)
	})

	t.Run("blank title is rejected before any upload", func(t *testing.T) {
		repo, store := newMockRepo(seed()), newMockStorage()
		svc := NewService(repo, store, Options{})
		blank := " \t "

		_, err := svc.UpdatePodcast(context.Background(), lecturer, 5, dto.UpdatePodcastRequest{Title: &blank}, audioFile(), nil)
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
		assert.Empty(t, store.files)
		assert.Equal(t, "Old", repo.podcasts[5].Title)
	})

	t.Run("failed save keeps old files and removes new ones", func(t *testing.T) {
		repo, store := newMockRepo(seed()), newMockStorage()
		repo.updateErr = errors.New("update failed")
		svc := NewService(repo, store, Options{})

		_, err := svc.UpdatePodcast(context.Background(), lecturer, 5, dto.UpdatePodcastRequest{}, audioFile(), coverFile())
		require.Error(t, err)

		assert.Empty(t, store.files)
		assert.Len(t, store.deleted, 2)
		assert.NotContains(t, store.deleted, "/uploads/audio/old.mp3")
		assert.Equal(t, "/uploads/audio/old.mp3", repo.podcasts[5].AudioFileURL)
	})

	t.Run("admin may update any podcast", func(t *testing.T) {
		repo := newMockRepo(seed())
		svc := NewService(repo, newMockStorage(), Options{})
		mins := 42

		resp, err := svc.UpdatePodcast(context.Background(), admin, 5, dto.UpdatePodcastRequest{DurationMinutes: &mins}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 42, *resp.DurationMinutes)
	})

	t.Run("other lecturer is forbidden", func(t *testing.T) {
		svc := NewService(newMockRepo(seed()), newMockStorage(), Options{})
		_, err := svc.UpdatePodcast(context.Background(), otherLecturer, 5, dto.UpdatePodcastRequest{}, nil, nil)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("missing podcast", func(t *testing.T) {
		svc := NewService(newMockRepo(), newMockStorage(), Options{})
		_, err := svc.UpdatePodcast(context.Background(), admin, 5, dto.UpdatePodcastRequest{}, nil, nil)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("description is sanitized", func(t *testing.T) {
		repo := newMockRepo(seed())
		svc := NewService(repo, newMockStorage(), Options{})
		desc := `<b>Intro</b><script>alert(1)</script>`

		resp, err := svc.UpdatePodcast(context.Background(), lecturer, 5, dto.UpdatePodcastRequest{Description: &desc}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "<b>Intro</b>", *resp.Description)
	})
}

func TestDeletePodcast(t *testing.T) {
	cover := "/uploads/covers/c.png"

	tests := []struct {
		name        string
		actor       *entity.User
		id          uint
		deleteErr   error
		wantErr     error
		wantDeleted []string
	}{
		{
			name:        "owner removes record and files",
			actor:       lecturer,
			id:          5,
			wantDeleted: []string{"/uploads/audio/a.mp3", cover},
		},
		{
			name:        "admin override",
			actor:       admin,
			id:          5,
			wantDeleted: []string{"/uploads/audio/a.mp3", cover},
		},
		{
			name:        "file removal failure still deletes record",
			actor:       lecturer,
			id:          5,
			deleteErr:   errors.New("permission denied"),
			wantDeleted: []string{"/uploads/audio/a.mp3", cover},
		},
		{name: "not owner", actor: otherLecturer, id: 5, wantErr: apperror.ErrForbidden},
		{name: "not found", actor: admin, id: 99, wantErr: apperror.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(&entity.Podcast{ID: 5, Title: "Ep", AudioFileURL: "/uploads/audio/a.mp3", CoverArtURL: &cover, OwnerID: lecturer.ID})
			store := newMockStorage()
			store.deleteErr = tt.deleteErr
			svc := NewService(repo, store, Options{})

			err := svc.DeletePodcast(context.Background(), tt.actor, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, store.deleted)
				return
			}

			require.NoError(t, err)
			assert.NotContains(t, repo.podcasts, tt.id)
			assert.Equal(t, tt.wantDeleted, store.deleted)
		})
	}
}

type mockSearch struct {
	ids     []uint
	err     error
	indexed []uint
	removed []uint
}

func (m *mockSearch) IndexPodcast(p *entity.Podcast) error {
	m.indexed = append(m.indexed, p.ID)
	return nil
}
func (m *mockSearch) DeletePodcast(id uint) error {
	m.removed = append(m.removed, id)
	return nil
}
func (m *mockSearch) IndexLiveStream(s *entity.LiveStream) error { return nil }
func (m *mockSearch) DeleteLiveStream(id uint) error             { return nil }
func (m *mockSearch) SearchPodcasts(query string, limit int) ([]uint, error) {
	return m.ids, m.err
}
func (m *mockSearch) SearchLiveStreams(query string, status *entity.StreamStatus, limit int) ([]uint, error) {
	return nil, nil
}

func TestSearchPodcasts(t *testing.T) {
	repo := newMockRepo(
		&entity.Podcast{ID: 1, Title: "Intro to Go"},
		&entity.Podcast{ID: 2, Title: "Rust basics"},
		&entity.Podcast{ID: 3, Title: "Advanced Go"},
	)

	t.Run("uses index ranking", func(t *testing.T) {
		meili := &mockSearch{ids: []uint{3, 1}}
		svc := NewService(repo, newMockStorage(), Options{Meili: meili})

		got, err := svc.SearchPodcasts(context.Background(), commonDto.SearchQuery{Q: "go"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint(3), got[0].ID)
		assert.Equal(t, uint(1), got[1].ID)
	})

	t.Run("falls back to database", func(t *testing.T) {
		meili := &mockSearch{err: errors.New("meili down")}
		svc := NewService(repo, newMockStorage(), Options{Meili: meili})

		got, err := svc.SearchPodcasts(context.Background(), commonDto.SearchQuery{Q: "rust"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, uint(2), got[0].ID)
	})
}

func TestIndexingFollowsLifecycle(t *testing.T) {
	repo, store, meili := newMockRepo(), newMockStorage(), &mockSearch{}
	svc := NewService(repo, store, Options{Meili: meili})
	ctx := context.Background()

	created, err := svc.CreatePodcast(ctx, lecturer, dto.CreatePodcastRequest{Title: "Ep"}, audioFile(), nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{created.ID}, meili.indexed)

	require.NoError(t, svc.DeletePodcast(ctx, lecturer, created.ID))
	assert.Equal(t, []uint{created.ID}, meili.removed)
}
