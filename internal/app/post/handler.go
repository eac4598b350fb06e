package post

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"threadboard/internal/app/upload"
	"threadboard/internal/media"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Handler interface {
	CreatePost(c *gin.Context)
	ListThreads(c *gin.Context)
	GetThread(c *gin.Context)
	GetStats(c *gin.Context)
}

// formOverhead is the room left in a create request for the text fields and
// multipart framing on top of the attachment itself.
const formOverhead = 1 << 20

type handler struct {
	service     Service
	uploads     upload.Storage
	maxBodySize int64
	logger      *zap.Logger
}

// NewHandler caps create request bodies at maxFileSize plus room for the
// text fields. A non-positive maxFileSize leaves bodies uncapped.
func NewHandler(service Service, uploads upload.Storage, maxFileSize int64, logger *zap.Logger) Handler {
	h := &handler{
		service: service,
		uploads: uploads,
		logger:  logger,
	}
	if maxFileSize > 0 {
		h.maxBodySize = maxFileSize + formOverhead
	}
	return h
}

// @Summary Create a thread or reply
// @Description Multipart form with title, message, optional parent_id and file.
// @Tags Post
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} CreatePostResponse
// @Success 303
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /api/posts [post]
func (h *handler) CreatePost(c *gin.Context) {
	if h.maxBodySize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodySize)
	}

	var req CreatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: bindingErrorMessage(err)})
		return
	}

	fileHeader, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case isBodyTooLarge(err):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
		return
	case fileHeader.Filename != "" && fileHeader.Size > 0:
		if h.uploads == nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "attachments are not configured"})
			return
		}
		name, err := h.uploads.Save(c.Request.Context(), fileHeader)
		if errors.Is(err, upload.ErrTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
			return
		}
		if err != nil {
			h.logger.Error("Failed to store attachment", zap.String("filename", fileHeader.Filename), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to store attachment"})
			return
		}
		req.File = &name
	}

	result, err := h.service.CreatePost(c.Request.Context(), req)
	if err != nil {
		if req.File != nil {
			h.discardUpload(*req.File)
		}
		if IsValidationError(err) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("Failed to create post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create post"})
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusCreated, CreatePostResponse{
			Redirect: result.Redirect,
			Post:     h.toResponse(result.Post),
		})
		return
	}

	location := "/api/posts"
	if result.Post.ParentID != nil {
		location += "/" + result.Redirect
	}
	c.Redirect(http.StatusSeeOther, location)
}

// @Summary List threads
// @Description Threads ordered by last bump, newest first. page is zero-based.
// @Tags Post
// @Produce json
// @Param page query int false "Page index"
// @Success 200 {object} ListResponse
// @Router /api/posts [get]
func (h *handler) ListThreads(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		page = 0
	}

	result, err := h.service.ListThreads(c.Request.Context(), page)
	if err != nil {
		h.logger.Error("Failed to list threads", zap.Int("page", page), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list threads"})
		return
	}

	resp := ListResponse{
		Posts:      make([]*PostResponse, 0, len(result.Posts)),
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		TotalPages: result.TotalPages(),
		PrevPage:   result.PrevPage(),
		NextPage:   result.NextPage(),
	}
	for _, p := range result.Posts {
		resp.Posts = append(resp.Posts, h.toResponse(p))
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a thread
// @Description The post with its replies, oldest reply first.
// @Tags Post
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} ThreadResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/posts/{id} [get]
func (h *handler) GetThread(c *gin.Context) {
	thread, err := h.service.GetThread(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "thread not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get thread", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get thread"})
		return
	}

	resp := ThreadResponse{
		Post:    h.toResponse(thread.Post),
		Replies: make([]*PostResponse, 0, len(thread.Replies)),
	}
	for _, r := range thread.Replies {
		resp.Replies = append(resp.Replies, h.toResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Board statistics
// @Tags Post
// @Produce json
// @Success 200 {object} Stats
// @Router /api/stats [get]
func (h *handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}

func (h *handler) toResponse(p *Post) *PostResponse {
	resp := &PostResponse{
		ID:        p.ID,
		ParentID:  p.ParentID,
		Title:     p.Title,
		Message:   p.Message,
		File:      p.File,
		Timestamp: p.Timestamp,
	}
	if p.File != nil {
		resp.Kind = media.Classify(*p.File)
		if h.uploads != nil {
			url := h.uploads.URL(*p.File)
			resp.FileURL = &url
		}
	}
	return resp
}

func (h *handler) discardUpload(name string) {
	if err := h.uploads.Delete(context.Background(), name); err != nil {
		h.logger.Warn("Failed to remove orphaned attachment", zap.String("file", name), zap.Error(err))
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || (err != nil && strings.Contains(err.Error(), "request body too large"))
}

// bindingErrorMessage names the first failing form field the way clients
// sent it.
func bindingErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	name := fe.Field()
	if f, ok := reflect.TypeOf(CreatePostRequest{}).FieldByName(fe.StructField()); ok {
		name = f.Tag.Get("form")
	}
	if fe.Tag() == "max" {
		return fmt.Sprintf("validation error (%s): must be at most %s characters", name, fe.Param())
	}
	return fmt.Sprintf("validation error (%s): failed %s", name, fe.Tag())
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
