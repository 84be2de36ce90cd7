package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crawford.app/podcastserver/internal/entity"
	"crawford.app/podcastserver/internal/metrics"
	"crawford.app/podcastserver/internal/modules/podcast/dto"
	repo "crawford.app/podcastserver/internal/modules/podcast/repository"
	search "crawford.app/podcastserver/internal/modules/search/service"
	"crawford.app/podcastserver/pkg/apperror"
	commonDto "crawford.app/podcastserver/pkg/dto"
	"crawford.app/podcastserver/pkg/ratelimiter"
	"crawford.app/podcastserver/pkg/storage"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	audioFolder = "audio"
	coverFolder = "covers"

	uploadAction = "upload_podcast"
)

var errPodcastNotFound = fmt.Errorf("podcast not found: %w", apperror.ErrNotFound)

type Service interface {
	CreatePodcast(ctx context.Context, owner *entity.User, req dto.CreatePodcastRequest, audio, cover *commonDto.AssetFile) (*dto.PodcastResponse, error)
	ListPodcasts(ctx context.Context, page commonDto.Pagination) ([]dto.PodcastResponse, error)
	// GetPodcast counts as a view.
	GetPodcast(ctx context.Context, id uint) (*dto.PodcastResponse, error)
	PlayPodcast(ctx context.Context, id uint) (*dto.PlayResponse, error)
	UpdatePodcast(ctx context.Context, actor *entity.User, id uint, req dto.UpdatePodcastRequest, audio, cover *commonDto.AssetFile) (*dto.PodcastResponse, error)
	DeletePodcast(ctx context.Context, actor *entity.User, id uint) error
	SearchPodcasts(ctx context.Context, query commonDto.SearchQuery) ([]dto.PodcastResponse, error)
	// RemoveAssets deletes the stored files and search documents of podcasts
	// whose records are already gone.
	RemoveAssets(ctx context.Context, podcasts []*entity.Podcast)
}

type service struct {
	repo      repo.Repository
	storage   storage.AssetStorage
	cooldown  *ratelimiter.Cooldown
	meili     search.MeiliSearchService
	metrics   *metrics.Collector
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
	urlPrefix string
}

type Options struct {
	Cooldown  *ratelimiter.Cooldown
	Meili     search.MeiliSearchService
	Metrics   *metrics.Collector
	Logger    *zap.Logger
	URLPrefix string
}

func NewService(repository repo.Repository, assetStorage storage.AssetStorage, opts Options) Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	urlPrefix := opts.URLPrefix
	if urlPrefix == "" {
		urlPrefix = "/uploads"
	}
	return &service{
		repo:      repository,
		storage:   assetStorage,
		cooldown:  opts.Cooldown,
		meili:     opts.Meili,
		metrics:   opts.Metrics,
		logger:    logger,
		sanitizer: bluemonday.UGCPolicy(),
		urlPrefix: urlPrefix,
	}
}

func (s *service) CreatePodcast(ctx context.Context, owner *entity.User, req dto.CreatePodcastRequest, audio, cover *commonDto.AssetFile) (resp *dto.PodcastResponse, err error) {
	title, err := cleanTitle(req.Title)
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, fmt.Errorf("audio_file is required: %w", apperror.ErrInvalidInput)
	}
	if err := validateAudio(audio); err != nil {
		return nil, err
	}
	if cover != nil {
		if err := validateCover(cover); err != nil {
			return nil, err
		}
	}

	release, err := s.cooldown.Acquire(ctx, owner.ID, uploadAction)
	if err != nil {
		return nil, err
	}

	var written []string
	defer func() {
		if err != nil {
			s.removeFiles(context.WithoutCancel(ctx), written...)
			release()
		}
	}()

	audioURL, err := s.storage.Upload(ctx, audio.Reader, audioFolder, storage.GenerateFileName(audio.FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to store audio file: %w", err)
	}
	written = append(written, audioURL)

	podcast := &entity.Podcast{
		Title:           title,
		Description:     s.sanitize(req.Description),
		Author:          trimmed(req.Author),
		DurationMinutes: req.DurationMinutes,
		AudioFileURL:    audioURL,
		OwnerID:         owner.ID,
	}

	if cover != nil {
		coverURL, err := s.storage.Upload(ctx, cover.Reader, coverFolder, storage.GenerateFileName(cover.FileName))
		if err != nil {
			return nil, fmt.Errorf("failed to store cover art: %w", err)
		}
		written = append(written, coverURL)
		podcast.CoverArtURL = &coverURL
	}

	if err := s.repo.Create(ctx, podcast); err != nil {
		return nil, fmt.Errorf("failed to save podcast: %w", err)
	}

	s.metrics.PodcastUploaded()
	s.index(podcast)
	s.logger.Info("podcast uploaded", zap.Uint("podcast_id", podcast.ID), zap.Uint("owner_id", owner.ID))

	out := s.toResponse(podcast)
	return &out, nil
}

func (s *service) ListPodcasts(ctx context.Context, page commonDto.Pagination) ([]dto.PodcastResponse, error) {
	page = page.Normalize()
	podcasts, err := s.repo.FindAll(ctx, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}
	return s.toResponses(podcasts), nil
}

func (s *service) GetPodcast(ctx context.Context, id uint) (*dto.PodcastResponse, error) {
	podcast, err := s.repo.IncrementViews(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPodcastNotFound
		}
		return nil, err
	}

	s.metrics.PodcastViewed()
	out := s.toResponse(podcast)
	return &out, nil
}

func (s *service) PlayPodcast(ctx context.Context, id uint) (*dto.PlayResponse, error) {
	podcast, err := s.repo.IncrementPlays(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPodcastNotFound
		}
		return nil, err
	}

	s.metrics.PodcastPlayed()
	return &dto.PlayResponse{Message: "Play count incremented", Plays: podcast.Plays}, nil
}

func (s *service) UpdatePodcast(ctx context.Context, actor *entity.User, id uint, req dto.UpdatePodcastRequest, audio, cover *commonDto.AssetFile) (resp *dto.PodcastResponse, err error) {
	var title string
	if req.Title != nil {
		if title, err = cleanTitle(*req.Title); err != nil {
			return nil, err
		}
	}
	podcast, err := s.findManageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if audio != nil {
		if err := validateAudio(audio); err != nil {
			return nil, err
		}
	}
	if cover != nil {
		if err := validateCover(cover); err != nil {
			return nil, err
		}
	}

	if req.Title != nil {
		podcast.Title = title
	}
	if req.Description != nil {
		podcast.Description = s.sanitize(req.Description)
	}
	if req.Author != nil {
		podcast.Author = trimmed(req.Author)
	}
	if req.DurationMinutes != nil {
		podcast.DurationMinutes = req.DurationMinutes
	}

	var written, replaced []string
	defer func() {
		if err != nil {
			s.removeFiles(context.WithoutCancel(ctx), written...)
		}
	}()

	if audio != nil {
		audioURL, err := s.storage.Upload(ctx, audio.Reader, audioFolder, storage.GenerateFileName(audio.FileName))
		if err != nil {
			return nil, fmt.Errorf("failed to store audio file: %w", err)
		}
		written = append(written, audioURL)
		replaced = append(replaced, podcast.AudioFileURL)
		podcast.AudioFileURL = audioURL
	}

	if cover != nil {
		coverURL, err := s.storage.Upload(ctx, cover.Reader, coverFolder, storage.GenerateFileName(cover.FileName))
		if err != nil {
			return nil, fmt.Errorf("failed to store cover art: %w", err)
		}
		written = append(written, coverURL)
		if podcast.CoverArtURL != nil && *podcast.CoverArtURL != "" {
			replaced = append(replaced, *podcast.CoverArtURL)
		}
		podcast.CoverArtURL = &coverURL
	}

	if err := s.repo.Update(ctx, podcast); err != nil {
		return nil, fmt.Errorf("failed to update podcast: %w", err)
	}

	// old files go only once the record points at the new ones
	s.removeFiles(ctx, replaced...)
	s.index(podcast)

	out := s.toResponse(podcast)
	return &out, nil
}

func (s *service) DeletePodcast(ctx context.Context, actor *entity.User, id uint) error {
	podcast, err := s.findManageable(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errPodcastNotFound
		}
		return err
	}

	s.RemoveAssets(ctx, []*entity.Podcast{podcast})
	s.logger.Info("podcast deleted", zap.Uint("podcast_id", id), zap.Uint("actor_id", actor.ID))
	return nil
}

func (s *service) SearchPodcasts(ctx context.Context, query commonDto.SearchQuery) ([]dto.PodcastResponse, error) {
	limit := query.Limit
	if limit <= 0 || limit > commonDto.MaxLimit {
		limit = 20
	}
	q := strings.TrimSpace(query.Q)

	if s.meili != nil {
		ids, err := s.meili.SearchPodcasts(q, limit)
		if err == nil {
			podcasts, err := s.repo.FindByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			return s.toResponses(podcasts), nil
		}
		s.logger.Warn("meilisearch query failed, falling back to database", zap.Error(err))
	}

	podcasts, err := s.repo.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return s.toResponses(podcasts), nil
}

func (s *service) RemoveAssets(ctx context.Context, podcasts []*entity.Podcast) {
	for _, p := range podcasts {
		s.removeFiles(ctx, p.AssetURLs()...)
		if s.meili != nil {
			if err := s.meili.DeletePodcast(p.ID); err != nil {
				s.logger.Warn("failed to remove podcast from search index", zap.Uint("podcast_id", p.ID), zap.Error(err))
			}
		}
	}
}

func (s *service) findManageable(ctx context.Context, actor *entity.User, id uint) (*entity.Podcast, error) {
	podcast, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPodcastNotFound
		}
		return nil, err
	}
	if !actor.CanManage(podcast.OwnerID) {
		return nil, fmt.Errorf("only the owner or an admin can modify this podcast: %w", apperror.ErrForbidden)
	}
	return podcast, nil
}

// removeFiles is best-effort: failures are logged and counted, never returned.
func (s *service) removeFiles(ctx context.Context, urls ...string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := s.storage.Delete(ctx, u); err != nil {
			s.metrics.AssetCleanupFailed()
			s.logger.Warn("failed to delete asset", zap.String("url", u), zap.Error(err))
		}
	}
}

func (s *service) index(p *entity.Podcast) {
	if s.meili == nil {
		return
	}
	if err := s.meili.IndexPodcast(p); err != nil {
		s.logger.Warn("failed to index podcast", zap.Uint("podcast_id", p.ID), zap.Error(err))
	}
}

func (s *service) sanitize(v *string) *string {
	if v == nil {
		return nil
	}
	clean := strings.TrimSpace(s.sanitizer.Sanitize(*v))
	return &clean
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func validateAudio(f *commonDto.AssetFile) error {
	if f.FileName == "" {
		return fmt.Errorf("audio_file must have a file name: %w", apperror.ErrInvalidInput)
	}
	ct := strings.ToLower(f.ContentType)
	if ct != "" && !strings.HasPrefix(ct, "audio/") && !strings.HasPrefix(ct, "video/") && ct != "application/octet-stream" {
		return fmt.Errorf("audio_file must be an audio file, got %s: %w", f.ContentType, apperror.ErrInvalidInput)
	}
	return nil
}

func validateCover(f *commonDto.AssetFile) error {
	ct := strings.ToLower(f.ContentType)
	if ct != "" && !strings.HasPrefix(ct, "image/") && ct != "application/octet-stream" {
		return fmt.Errorf("cover_art must be an image, got %s: %w", f.ContentType, apperror.ErrInvalidInput)
	}
	return nil
}
