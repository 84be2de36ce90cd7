package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"crawford.app/podcastserver/internal/middleware"
	podcastDto "crawford.app/podcastserver/internal/modules/podcast/dto"
	podcast "crawford.app/podcastserver/internal/modules/podcast/service"
	"crawford.app/podcastserver/pkg/apperror"
	commonDto "crawford.app/podcastserver/pkg/dto"
	"crawford.app/podcastserver/pkg/response"
	"crawford.app/podcastserver/pkg/validator"
	"github.com/gin-gonic/gin"
)

type PodcastHandler struct {
	service        podcast.Service
	maxUploadBytes int64
}

func NewPodcastHandler(service podcast.Service, maxUploadBytes int64) *PodcastHandler {
	return &PodcastHandler{service: service, maxUploadBytes: maxUploadBytes}
}

func (h *PodcastHandler) CreatePodcast(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req podcastDto.CreatePodcastRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	audio, closeAudio, err := h.formFile(c, "audio_file")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeAudio()
	if audio == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_file is required"})
		return
	}

	cover, closeCover, err := h.formFile(c, "cover_art")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeCover()

	resp, err := h.service.CreatePodcast(c.Request.Context(), user, req, audio, cover)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *PodcastHandler) ListPodcasts(c *gin.Context) {
	var page commonDto.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	podcasts, err := h.service.ListPodcasts(c.Request.Context(), page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, podcasts)
}

func (h *PodcastHandler) SearchPodcasts(c *gin.Context) {
	var query commonDto.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	podcasts, err := h.service.SearchPodcasts(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, podcasts)
}

func (h *PodcastHandler) GetPodcast(c *gin.Context) {
	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	resp, err := h.service.GetPodcast(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PodcastHandler) PlayPodcast(c *gin.Context) {
	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	resp, err := h.service.PlayPodcast(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PodcastHandler) UpdatePodcast(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req podcastDto.UpdatePodcastRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	audio, closeAudio, err := h.formFile(c, "audio_file")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeAudio()

	cover, closeCover, err := h.formFile(c, "cover_art")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeCover()

	resp, err := h.service.UpdatePodcast(c.Request.Context(), user, id, req, audio, cover)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PodcastHandler) DeletePodcast(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeletePodcast(c.Request.Context(), user, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// formFile opens an optional multipart file. A missing field yields a nil asset.
func (h *PodcastHandler) formFile(c *gin.Context, field string) (*commonDto.AssetFile, func(), error) {
	noop := func() {}

	fileHeader, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, fmt.Errorf("invalid %s: %w", field, apperror.ErrBadRequest)
	}

	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		return nil, noop, fmt.Errorf("%s exceeds the %d MB upload limit: %w", field, h.maxUploadBytes>>20, apperror.ErrBadRequest)
	}

	var file multipart.File
	if file, err = fileHeader.Open(); err != nil {
		return nil, noop, fmt.Errorf("failed to read %s: %w", field, err)
	}

	return &commonDto.AssetFile{
		Reader:      file,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
	}, func() { file.Close() }, nil
}
