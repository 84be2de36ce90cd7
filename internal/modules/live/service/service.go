package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crawford.app/podcastserver/internal/entity"
	"crawford.app/podcastserver/internal/metrics"
	"crawford.app/podcastserver/internal/modules/live/dto"
	repo "crawford.app/podcastserver/internal/modules/live/repository"
	search "crawford.app/podcastserver/internal/modules/search/service"
	"crawford.app/podcastserver/pkg/apperror"
	commonDto "crawford.app/podcastserver/pkg/dto"
	"crawford.app/podcastserver/pkg/ratelimiter"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const createAction = "create_stream"

var (
	errStreamNotFound = fmt.Errorf("live stream not found: %w", apperror.ErrNotFound)
	errStreamNotLive  = fmt.Errorf("stream is not currently live: %w", apperror.ErrInvalidInput)
	errActiveStream   = fmt.Errorf("you already have an active or scheduled live stream: %w", apperror.ErrConflict)
)

type Service interface {
	CreateStream(ctx context.Context, host *entity.User, req dto.CreateLiveStreamRequest) (*dto.LiveStreamResponse, error)
	ListStreams(ctx context.Context, query dto.ListLiveStreamsQuery) ([]dto.LiveStreamResponse, error)
	GetStream(ctx context.Context, id uint) (*dto.LiveStreamResponse, error)
	// UpdateStream is open to the host and admins.
	UpdateStream(ctx context.Context, actor *entity.User, id uint, req dto.UpdateLiveStreamRequest) (*dto.LiveStreamResponse, error)
	// SetStatus is the admin override; it skips the ownership check.
	SetStatus(ctx context.Context, id uint, status string) (*dto.LiveStreamResponse, error)
	DeleteStream(ctx context.Context, actor *entity.User, id uint) error
	JoinStream(ctx context.Context, id uint) (*dto.ViewerResponse, error)
	LeaveStream(ctx context.Context, id uint) (*dto.ViewerResponse, error)
	SearchStreams(ctx context.Context, query dto.SearchLiveStreamsQuery) ([]dto.LiveStreamResponse, error)
}

type service struct {
	repo      repo.Repository
	cooldown  *ratelimiter.Cooldown
	meili     search.MeiliSearchService
	metrics   *metrics.Collector
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

type Options struct {
	Cooldown *ratelimiter.Cooldown
	Meili    search.MeiliSearchService
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

func NewService(repository repo.Repository, opts Options) Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:      repository,
		cooldown:  opts.Cooldown,
		meili:     opts.Meili,
		metrics:   opts.Metrics,
		logger:    logger,
		sanitizer: bluemonday.UGCPolicy(),
		now:       time.Now,
	}
}

func (s *service) CreateStream(ctx context.Context, host *entity.User, req dto.CreateLiveStreamRequest) (resp *dto.LiveStreamResponse, err error) {
	title, err := cleanTitle(req.Title)
	if err != nil {
		return nil, err
	}
	status := entity.StatusOffline
	if req.Status != nil && *req.Status != "" {
		if status, err = entity.ParseStreamStatus(*req.Status); err != nil {
			return nil, err
		}
	}

	release, err := s.cooldown.Acquire(ctx, host.ID, createAction)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	stream := &entity.LiveStream{
		Title:       title,
		Description: s.sanitize(req.Description),
		StreamURL:   trimmed(req.StreamURL),
		Status:      status,
		HostID:      host.ID,
	}
	if status == entity.StatusLive {
		now := s.now()
		stream.StartTime = &now
	}

	// an active stream blocks any new one, offline included
	err = s.repo.WithHostLock(ctx, host.ID, func(tx repo.Repository) error {
		active, err := tx.HasActiveStream(ctx, host.ID, 0)
		if err != nil {
			return err
		}
		if active {
			return errActiveStream
		}
		return tx.Create(ctx, stream)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create live stream: %w", err)
	}

	s.index(stream)
	s.logger.Info("live stream created",
		zap.Uint("stream_id", stream.ID),
		zap.Uint("host_id", host.ID),
		zap.String("status", string(stream.Status)),
	)

	out := toResponse(stream)
	return &out, nil
}

func (s *service) ListStreams(ctx context.Context, query dto.ListLiveStreamsQuery) ([]dto.LiveStreamResponse, error) {
	status, err := optionalStatus(query.Status)
	if err != nil {
		return nil, err
	}
	page := query.Pagination.Normalize()

	streams, err := s.repo.FindAll(ctx, status, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}
	return toResponses(streams), nil
}

func (s *service) GetStream(ctx context.Context, id uint) (*dto.LiveStreamResponse, error) {
	stream, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	out := toResponse(stream)
	return &out, nil
}

func (s *service) UpdateStream(ctx context.Context, actor *entity.User, id uint, req dto.UpdateLiveStreamRequest) (*dto.LiveStreamResponse, error) {
	var target *entity.StreamStatus
	if req.Status != nil {
		st, err := entity.ParseStreamStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		target = &st
	}
	var title string
	if req.Title != nil {
		t, err := cleanTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		title = t
	}
	if req.CurrentViewers != nil && *req.CurrentViewers < 0 {
		return nil, fmt.Errorf("current_viewers must not be negative: %w", apperror.ErrInvalidInput)
	}

	stream, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(stream.HostID) {
		return nil, fmt.Errorf("you are not authorized to update this live stream: %w", apperror.ErrForbidden)
	}

	previous := stream.Status
	viewers := stream.CurrentViewers
	if req.Title != nil {
		stream.Title = title
	}
	if req.Description != nil {
		stream.Description = s.sanitize(req.Description)
	}
	if req.StreamURL != nil {
		stream.StreamURL = trimmed(req.StreamURL)
	}
	if target != nil {
		if err := stream.ApplyStatus(*target, s.now()); err != nil {
			return nil, err
		}
	}
	// an explicit viewer count wins over the reset on going offline
	if req.CurrentViewers != nil {
		stream.CurrentViewers = *req.CurrentViewers
	}

	withViewers := req.CurrentViewers != nil || stream.CurrentViewers != viewers
	if err := s.save(ctx, stream, previous, withViewers); err != nil {
		return nil, err
	}

	out := toResponse(stream)
	return &out, nil
}

func (s *service) SetStatus(ctx context.Context, id uint, status string) (*dto.LiveStreamResponse, error) {
	target, err := entity.ParseStreamStatus(status)
	if err != nil {
		return nil, err
	}

	stream, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	previous, viewers := stream.Status, stream.CurrentViewers
	if err := stream.ApplyStatus(target, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, stream, previous, stream.CurrentViewers != viewers); err != nil {
		return nil, err
	}

	out := toResponse(stream)
	return &out, nil
}

func (s *service) DeleteStream(ctx context.Context, actor *entity.User, id uint) error {
	stream, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(stream.HostID) {
		return fmt.Errorf("you are not authorized to delete this live stream: %w", apperror.ErrForbidden)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errStreamNotFound
		}
		return err
	}

	if s.meili != nil {
		if err := s.meili.DeleteLiveStream(id); err != nil {
			s.logger.Warn("failed to remove live stream from search index", zap.Uint("stream_id", id), zap.Error(err))
		}
	}
	s.logger.Info("live stream deleted", zap.Uint("stream_id", id), zap.Uint("actor_id", actor.ID))
	return nil
}

func (s *service) JoinStream(ctx context.Context, id uint) (*dto.ViewerResponse, error) {
	stream, err := s.repo.IncrementViewers(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// nothing matched: tell a missing stream apart from one that is not live
		if _, err := s.find(ctx, id); err != nil {
			return nil, err
		}
		return nil, errStreamNotLive
	}

	s.metrics.StreamJoined()
	return &dto.ViewerResponse{Message: "Joined stream", CurrentViewers: stream.CurrentViewers}, nil
}

func (s *service) LeaveStream(ctx context.Context, id uint) (*dto.ViewerResponse, error) {
	stream, err := s.repo.DecrementViewers(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// already at zero, or missing
		if stream, err = s.find(ctx, id); err != nil {
			return nil, err
		}
	} else {
		s.metrics.StreamLeft()
	}

	return &dto.ViewerResponse{Message: "Left stream", CurrentViewers: stream.CurrentViewers}, nil
}

func (s *service) SearchStreams(ctx context.Context, query dto.SearchLiveStreamsQuery) ([]dto.LiveStreamResponse, error) {
	status, err := optionalStatus(query.Status)
	if err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 || limit > commonDto.MaxLimit {
		limit = 20
	}
	q := strings.TrimSpace(query.Q)

	if s.meili != nil {
		ids, err := s.meili.SearchLiveStreams(q, status, limit)
		if err == nil {
			streams, err := s.repo.FindByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			return toResponses(streams), nil
		}
		s.logger.Warn("meilisearch query failed, falling back to database", zap.Error(err))
	}

	streams, err := s.repo.Search(ctx, q, status, limit)
	if err != nil {
		return nil, err
	}
	return toResponses(streams), nil
}

// save persists the stream. Moving into an active status re-checks the
// one-active-stream-per-host limit under the host lock. current_viewers is
// only written when withViewers is set.
func (s *service) save(ctx context.Context, stream *entity.LiveStream, previous entity.StreamStatus, withViewers bool) error {
	var err error
	if stream.Status.Active() && !previous.Active() {
		err = s.repo.WithHostLock(ctx, stream.HostID, func(tx repo.Repository) error {
			active, err := tx.HasActiveStream(ctx, stream.HostID, stream.ID)
			if err != nil {
				return err
			}
			if active {
				return errActiveStream
			}
			return tx.Update(ctx, stream, withViewers)
		})
	} else {
		err = s.repo.Update(ctx, stream, withViewers)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return err
		}
		return fmt.Errorf("failed to update live stream: %w", err)
	}

	if previous != stream.Status {
		s.metrics.StreamTransitioned(string(previous), string(stream.Status))
		s.logger.Info("live stream status changed",
			zap.Uint("stream_id", stream.ID),
			zap.String("from", string(previous)),
			zap.String("to", string(stream.Status)),
		)
	}
	s.index(stream)
	return nil
}

func (s *service) find(ctx context.Context, id uint) (*entity.LiveStream, error) {
	stream, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errStreamNotFound
		}
		return nil, err
	}
	return stream, nil
}

func (s *service) index(stream *entity.LiveStream) {
	if s.meili == nil {
		return
	}
	if err := s.meili.IndexLiveStream(stream); err != nil {
		s.logger.Warn("failed to index live stream", zap.Uint("stream_id", stream.ID), zap.Error(err))
	}
}

func (s *service) sanitize(v *string) *string {
	if v == nil {
		return nil
	}
	clean := strings.TrimSpace(s.sanitizer.Sanitize(*v))
	return &clean
}

func optionalStatus(raw string) (*entity.StreamStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	st, err := entity.ParseStreamStatus(raw)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// cleanTitle trims the title and rejects one that is left empty.
func cleanTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", fmt.Errorf("title must not be blank: %w", apperror.ErrInvalidInput)
	}
	return title, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func toResponse(s *entity.LiveStream) dto.LiveStreamResponse {
	return dto.LiveStreamResponse{
		ID:             s.ID,
		HostID:         s.HostID,
		Title:          s.Title,
		Description:    s.Description,
		StreamURL:      s.StreamURL,
		Status:         string(s.Status),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		CurrentViewers: s.CurrentViewers,
		TotalViews:     s.TotalViews,
	}
}

func toResponses(streams []*entity.LiveStream) []dto.LiveStreamResponse {
	out := make([]dto.LiveStreamResponse, 0, len(streams))
	for _, s := range streams {
		out = append(out, toResponse(s))
	}
	return out
}
