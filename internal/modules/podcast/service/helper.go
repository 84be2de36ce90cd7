package service

import (
	"fmt"
	"strings"

	"crawford.app/podcastserver/internal/entity"
	"crawford.app/podcastserver/internal/modules/podcast/dto"
	"crawford.app/podcastserver/pkg/apperror"
	"crawford.app/podcastserver/pkg/storage"
)

// cleanTitle trims the title and rejects one that is left empty.
func cleanTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", fmt.Errorf("title must not be blank: %w", apperror.ErrInvalidInput)
	}
	return title, nil
}

func (s *service) toResponse(p *entity.Podcast) dto.PodcastResponse {
	resp := dto.PodcastResponse{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Title:           p.Title,
		Description:     p.Description,
		Author:          p.Author,
		DurationMinutes: p.DurationMinutes,
		AudioFileURL:    storage.NormalizeURL(s.urlPrefix, p.AudioFileURL),
		UploadedAt:      p.UploadedAt,
		Views:           p.Views,
		Plays:           p.Plays,
	}
	if p.CoverArtURL != nil && *p.CoverArtURL != "" {
		cover := storage.NormalizeURL(s.urlPrefix, *p.CoverArtURL)
		resp.CoverArtURL = &cover
	}
	return resp
}

func (s *service) toResponses(podcasts []*entity.Podcast) []dto.PodcastResponse {
	out := make([]dto.PodcastResponse, 0, len(podcasts))
	for _, p := range podcasts {
		out = append(out, s.toResponse(p))
	}
	return out
}
