package handler

import (
	"net/http"

	"crawford.app/podcastserver/internal/middleware"
	"crawford.app/podcastserver/internal/modules/admin/dto"
	adminService "crawford.app/podcastserver/internal/modules/admin/service"
	liveDto "crawford.app/podcastserver/internal/modules/live/dto"
	liveService "crawford.app/podcastserver/internal/modules/live/service"
	podcastService "crawford.app/podcastserver/internal/modules/podcast/service"
	commonDto "crawford.app/podcastserver/pkg/dto"
	"crawford.app/podcastserver/pkg/response"
	"crawford.app/podcastserver/pkg/validator"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves /api/admin. Every route sits behind RequireAdmin, so
// podcast and stream actions run with admin rights and skip ownership checks.
type AdminHandler struct {
	adminService   adminService.AdminService
	podcastService podcastService.Service
	liveService    liveService.Service
}

func NewAdminHandler(admin adminService.AdminService, podcasts podcastService.Service, streams liveService.Service) *AdminHandler {
	return &AdminHandler{
		adminService:   admin,
		podcastService: podcasts,
		liveService:    streams,
	}
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.adminService.CreateUser(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	var page commonDto.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.adminService.ListUsers(c.Request.Context(), page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.adminService.GetUser(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.adminService.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, err := middleware.CurrentUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.adminService.DeleteUser(c.Request.Context(), actor, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListPodcasts(c *gin.Context) {
	var page commonDto.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.podcastService.ListPodcasts(c.Request.Context(), page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) DeletePodcast(c *gin.Context) {
	actor, err := middleware.CurrentUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.podcastService.DeletePodcast(c.Request.Context(), actor, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListLiveStreams(c *gin.Context) {
	var query liveDto.ListLiveStreamsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.liveService.ListStreams(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) UpdateLiveStream(c *gin.Context) {
	actor, err := middleware.CurrentUser(c)
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

	res, err := h.liveService.UpdateStream(c.Request.Context(), actor, id, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// UpdateLiveStreamStatus takes {"status": ...} or the status_update query
// parameter older clients send.
func (h *AdminHandler) UpdateLiveStreamStatus(c *gin.Context) {
	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req liveDto.StatusUpdateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
			return
		}
	}
	if req.Status == "" {
		req.Status = c.Query("status_update")
	}

	res, err := h.liveService.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) DeleteLiveStream(c *gin.Context) {
	actor, err := middleware.CurrentUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := response.ParseID(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.liveService.DeleteStream(c.Request.Context(), actor, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
