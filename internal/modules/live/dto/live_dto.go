package dto

import (
	"time"

	commonDto "crawford.app/podcastserver/pkg/dto"
)

type CreateLiveStreamRequest struct {
	Title       string  `json:"title" binding:"required,max=255"`
	Description *string `json:"description" binding:"omitempty,max=10000"`
	StreamURL   *string `json:"stream_url" binding:"omitempty,url,max=2048"`
	// Status defaults to offline.
	Status *string `json:"status"`
}

type UpdateLiveStreamRequest struct {
	Title          *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description    *string `json:"description" binding:"omitempty,max=10000"`
	StreamURL      *string `json:"stream_url" binding:"omitempty,url,max=2048"`
	Status         *string `json:"status"`
	CurrentViewers *int64  `json:"current_viewers"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type ListLiveStreamsQuery struct {
	commonDto.Pagination
	Status string `form:"status"`
}

type SearchLiveStreamsQuery struct {
	commonDto.SearchQuery
	Status string `form:"status"`
}

type LiveStreamResponse struct {
	ID             uint       `json:"id"`
	HostID         uint       `json:"host_id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description"`
	StreamURL      *string    `json:"stream_url"`
	Status         string     `json:"status"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	CurrentViewers int64      `json:"current_viewers"`
	TotalViews     int64      `json:"total_views"`
}

type ViewerResponse struct {
	Message        string `json:"message"`
	CurrentViewers int64  `json:"current_viewers"`
}
