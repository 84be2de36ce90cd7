package dto

import "time"

type CreatePodcastRequest struct {
	Title           string  `form:"title" binding:"required,max=255"`
	Description     *string `form:"description" binding:"omitempty,max=10000"`
	Author          *string `form:"author" binding:"omitempty,max=255"`
	DurationMinutes *int    `form:"duration_minutes" binding:"omitempty,min=0"`
}

type UpdatePodcastRequest struct {
	Title           *string `form:"title" binding:"omitempty,min=1,max=255"`
	Description     *string `form:"description" binding:"omitempty,max=10000"`
	Author          *string `form:"author" binding:"omitempty,max=255"`
	DurationMinutes *int    `form:"duration_minutes" binding:"omitempty,min=0"`
}

type PodcastResponse struct {
	ID              uint      `json:"id"`
	OwnerID         uint      `json:"owner_id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description"`
	Author          *string   `json:"author"`
	DurationMinutes *int      `json:"duration_minutes"`
	AudioFileURL    string    `json:"audio_file_url"`
	CoverArtURL     *string   `json:"cover_art_url"`
	UploadedAt      time.Time `json:"uploaded_at"`
	Views           int64     `json:"views"`
	Plays           int64     `json:"plays"`
}

type PlayResponse struct {
	Message string `json:"message"`
	Plays   int64  `json:"plays"`
}
