package entity

import "time"

type Podcast struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null;index" json:"title"`
	Description     *string   `gorm:"type:text" json:"description"`
	Author          *string   `gorm:"size:255" json:"author"`
	DurationMinutes *int      `json:"duration_minutes"`
	AudioFileURL    string    `gorm:"type:text;not null" json:"audio_file_url"`
	CoverArtURL     *string   `gorm:"type:text" json:"cover_art_url"`
	OwnerID         uint      `gorm:"not null;index" json:"owner_id"`
	Owner           *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Views           int64     `gorm:"not null;default:0" json:"views"`
	Plays           int64     `gorm:"not null;default:0" json:"plays"`
	UploadedAt      time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AssetURLs lists every stored asset referenced by the podcast.
func (p *Podcast) AssetURLs() []string {
	urls := make([]string, 0, 2)
	if p.AudioFileURL != "" {
		urls = append(urls, p.AudioFileURL)
	}
	if p.CoverArtURL != nil && *p.CoverArtURL != "" {
		urls = append(urls, *p.CoverArtURL)
	}
	return urls
}
