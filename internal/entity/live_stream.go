package entity

import (
	"fmt"
	"strings"
	"time"

	"crawford.app/podcastserver/pkg/apperror"
)

type StreamStatus string

const (
	StatusScheduled StreamStatus = "scheduled"
	StatusLive      StreamStatus = "live"
	StatusOffline   StreamStatus = "offline"
)

func ParseStreamStatus(s string) (StreamStatus, error) {
	st := StreamStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q, expected one of scheduled, live, offline: %w", s, apperror.ErrInvalidInput)
	}
	return st, nil
}

func (s StreamStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusLive, StatusOffline:
		return true
	}
	return false
}

// Active statuses count against the one-stream-per-host limit.
func (s StreamStatus) Active() bool {
	return s == StatusLive || s == StatusScheduled
}

type LiveStream struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	Title          string       `gorm:"size:255;not null" json:"title"`
	Description    *string      `gorm:"type:text" json:"description"`
	StreamURL      *string      `gorm:"type:text" json:"stream_url"`
	Status         StreamStatus `gorm:"size:20;not null;index" json:"status"`
	StartTime      *time.Time   `json:"start_time"`
	EndTime        *time.Time   `json:"end_time"`
	CurrentViewers int64        `gorm:"not null;default:0" json:"current_viewers"`
	TotalViews     int64        `gorm:"not null;default:0" json:"total_views"`
	HostID         uint         `gorm:"not null;index" json:"host_id"`
	Host           *User        `gorm:"foreignKey:HostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// ApplyStatus moves the stream to target, applying the lifecycle side effects:
// entering live stamps start_time and clears end_time, leaving live for offline
// stamps end_time and resets current_viewers. Any other change is a plain write.
// An invalid target is rejected and the stream is left untouched.
func (l *LiveStream) ApplyStatus(target StreamStatus, now time.Time) error {
	if !target.Valid() {
		return fmt.Errorf("invalid status %q: %w", target, apperror.ErrInvalidInput)
	}

	switch {
	case target == StatusLive && l.Status != StatusLive:
		l.StartTime = &now
		l.EndTime = nil
	case target == StatusOffline && l.Status == StatusLive:
		l.EndTime = &now
		l.CurrentViewers = 0
	}

	l.Status = target
	return nil
}
