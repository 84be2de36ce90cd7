package handler

import (
	"net/http"

	"crawford.app/podcastserver/internal/middleware"
	liveDto "crawford.app/podcastserver/internal/modules/live/dto"
	live "crawford.app/podcastserver/internal/modules/live/service"
	"crawford.app/podcastserver/pkg/response"
	"crawford.app/podcastserver/pkg/validator"
	"github.com/gin-gonic/gin"
)

type LiveStreamHandler struct {
	service live.Service
}

func NewLiveStreamHandler(service live.Service) *LiveStreamHandler {
	return &LiveStreamHandler{service: service}
}

func (h *LiveStreamHandler) CreateStream(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req liveDto.CreateLiveStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.CreateStream(c.Request.Context(), user, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *LiveStreamHandler) ListStreams(c *gin.Context) {
	var query liveDto.ListLiveStreamsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	streams, err := h.service.ListStreams(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, streams)
}

func (h *LiveStreamHandler) SearchStreams(c *gin.Context) {
	var query liveDto.SearchLiveStreamsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	streams, err := h.service.SearchStreams(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, streams)
}

func (h *LiveStreamHandler) GetStream(c *gin.Context) {
	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	resp, err := h.service.GetStream(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *LiveStreamHandler) UpdateStream(c *gin.Context) {
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

	var req liveDto.UpdateLiveStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.UpdateStream(c.Request.Context(), user, id, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *LiveStreamHandler) DeleteStream(c *gin.Context) {
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

	if err := h.service.DeleteStream(c.Request.Context(), user, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *LiveStreamHandler) JoinStream(c *gin.Context) {
	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	resp, err := h.service.JoinStream(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *LiveStreamHandler) LeaveStream(c *gin.Context) {
	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	resp, err := h.service.LeaveStream(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
