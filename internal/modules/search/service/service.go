package service

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"crawford.app/podcastserver/internal/entity"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	podcastsIndex    = "podcasts"
	liveStreamsIndex = "live_streams"
)

// MeiliSearchService keeps the search indexes in step with the database and
// answers full-text queries with ranked record IDs.
type MeiliSearchService interface {
	IndexPodcast(p *entity.Podcast) error
	DeletePodcast(id uint) error
	IndexLiveStream(s *entity.LiveStream) error
	DeleteLiveStream(id uint) error
	SearchPodcasts(query string, limit int) ([]uint, error)
	SearchLiveStreams(query string, status *entity.StreamStatus, limit int) ([]uint, error)
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

func NewMeiliSearchService(client meilisearch.ServiceManager, logger *zap.Logger) MeiliSearchService {
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	podcastFilterable := []any{"owner_id"}
	if _, err := s.client.Index(podcastsIndex).UpdateFilterableAttributes(&podcastFilterable); err != nil {
		s.logger.Warn("failed to update podcasts filterable attributes", zap.Error(err))
	}
	podcastSortable := []string{"uploaded_at", "plays", "views"}
	if _, err := s.client.Index(podcastsIndex).UpdateSortableAttributes(&podcastSortable); err != nil {
		s.logger.Warn("failed to update podcasts sortable attributes", zap.Error(err))
	}

	streamFilterable := []any{"status", "host_id"}
	if _, err := s.client.Index(liveStreamsIndex).UpdateFilterableAttributes(&streamFilterable); err != nil {
		s.logger.Warn("failed to update live_streams filterable attributes", zap.Error(err))
	}

	s.logger.Info("meilisearch indexes initialized")
}

type podcastDoc struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	OwnerID     uint   `json:"owner_id"`
	Views       int64  `json:"views"`
	Plays       int64  `json:"plays"`
	UploadedAt  int64  `json:"uploaded_at"`
}

type liveStreamDoc struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	HostID      uint   `json:"host_id"`
}

type idHits struct {
	Hits []struct {
		ID uint `json:"id"`
	} `json:"hits"`
}

func (s *meiliSearchService) cleanContentForIndex(content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")
	content = strings.ReplaceAll(content, "</div>", " ")

	cleanText := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(cleanText), " ")
}

func (s *meiliSearchService) IndexPodcast(p *entity.Podcast) error {
	doc := podcastDoc{
		ID:          p.ID,
		Title:       s.cleanContentForIndex(p.Title),
		Description: s.cleanContentForIndex(getStringOrEmpty(p.Description)),
		Author:      s.cleanContentForIndex(getStringOrEmpty(p.Author)),
		OwnerID:     p.OwnerID,
		Views:       p.Views,
		Plays:       p.Plays,
		UploadedAt:  p.UploadedAt.Unix(),
	}

	task, err := s.client.Index(podcastsIndex).AddDocuments([]podcastDoc{doc}, strPtr("id"))
	if err != nil {
		return fmt.Errorf("failed to index podcast %d: %w", p.ID, err)
	}
	s.logger.Debug("indexed podcast", zap.Uint("podcast_id", p.ID), zap.Int64("task_uid", task.TaskUID))
	return nil
}

func (s *meiliSearchService) DeletePodcast(id uint) error {
	_, err := s.client.Index(podcastsIndex).DeleteDocument(fmt.Sprint(id))
	return err
}

func (s *meiliSearchService) IndexLiveStream(ls *entity.LiveStream) error {
	doc := liveStreamDoc{
		ID:          ls.ID,
		Title:       s.cleanContentForIndex(ls.Title),
		Description: s.cleanContentForIndex(getStringOrEmpty(ls.Description)),
		Status:      string(ls.Status),
		HostID:      ls.HostID,
	}

	task, err := s.client.Index(liveStreamsIndex).AddDocuments([]liveStreamDoc{doc}, strPtr("id"))
	if err != nil {
		return fmt.Errorf("failed to index live stream %d: %w", ls.ID, err)
	}
	s.logger.Debug("indexed live stream", zap.Uint("stream_id", ls.ID), zap.Int64("task_uid", task.TaskUID))
	return nil
}

func (s *meiliSearchService) DeleteLiveStream(id uint) error {
	_, err := s.client.Index(liveStreamsIndex).DeleteDocument(fmt.Sprint(id))
	return err
}

func (s *meiliSearchService) SearchPodcasts(query string, limit int) ([]uint, error) {
	return s.searchIDs(podcastsIndex, query, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
}

func (s *meiliSearchService) SearchLiveStreams(query string, status *entity.StreamStatus, limit int) ([]uint, error) {
	req := &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	}
	if status != nil {
		req.Filter = fmt.Sprintf("status = '%s'", *status)
	}
	return s.searchIDs(liveStreamsIndex, query, req)
}

func (s *meiliSearchService) searchIDs(index, query string, req *meilisearch.SearchRequest) ([]uint, error) {
	raw, err := s.client.Index(index).SearchRaw(query, req)
	if err != nil {
		return nil, fmt.Errorf("search %s failed: %w", index, err)
	}
	return decodeIDs(*raw)
}

func decodeIDs(raw json.RawMessage) ([]uint, error) {
	var result idHits
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search hits: %w", err)
	}
	ids := make([]uint, 0, len(result.Hits))
	for _, h := range result.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func getStringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	return &s
}
