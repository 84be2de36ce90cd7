package dto

import "io"

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Pagination binds the skip/limit query parameters used by list endpoints.
type Pagination struct {
	Skip  int `form:"skip" binding:"omitempty,min=0"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Normalize fills the default limit and clamps out-of-range values.
func (p Pagination) Normalize() Pagination {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

type SearchQuery struct {
	Q     string `form:"q" binding:"required,min=1,max=200"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// AssetFile is an uploaded file handed from the HTTP layer to a service.
type AssetFile struct {
	Reader      io.Reader
	FileName    string
	ContentType string
	Size        int64
}

type MessageResponse struct {
	Message string `json:"message"`
}
