package post

import (
	"context"
	"fmt"
	"strings"
	"time"

	"threadboard/internal/utils"

	"go.uber.org/zap"
)

type Service interface {
	CreatePost(ctx context.Context, req CreatePostRequest) (*CreateResult, error)
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context, page int) (*Page, error)
	Stats() Stats
}

type service struct {
	repo     Repository
	eventBus *utils.EventBus
	logger   *zap.SugaredLogger
	pageSize int
	now      func() time.Time
}

func NewService(repo Repository, eventBus *utils.EventBus, logger *zap.Logger, pageSize int) Service {
	return &service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger.Sugar(),
		pageSize: pageSize,
		now:      time.Now,
	}
}

func (s *service) CreatePost(ctx context.Context, req CreatePostRequest) (*CreateResult, error) {
	params, err := validateCreate(req)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.Create(ctx, params, uint64(s.now().Unix()))
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	p := result.Post
	s.logger.Infow("Post created",
		"post_id", p.ID,
		"parent_id", req.ParentID,
		"has_file", p.File != nil,
		"bumped", result.Bumped,
	)

	if s.eventBus != nil {
		s.eventBus.Publish("post_created", map[string]interface{}{
			"post_id":   p.ID,
			"parent_id": p.ParentID,
			"title":     p.Title,
			"timestamp": p.Timestamp,
		})
		if result.Bumped {
			s.eventBus.Publish("thread_bumped", map[string]interface{}{
				"thread_id": *p.ParentID,
				"reply_id":  p.ID,
				"timestamp": p.Timestamp,
			})
		}
	}

	return result, nil
}

func (s *service) GetThread(ctx context.Context, id string) (*Thread, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetThread(ctx, id)
}

// ListThreads returns one page of threads, most recently bumped first.
// Negative pages read as the first page.
func (s *service) ListThreads(ctx context.Context, page int) (*Page, error) {
	if page < 0 {
		page = 0
	}
	return s.repo.ListTopLevel(ctx, page, s.pageSize)
}

func (s *service) Stats() Stats {
	return s.repo.Stats()
}

// validateCreate trims the request and applies the rules that span fields.
// Per-field limits are enforced by the binding tags on CreatePostRequest.
func validateCreate(req CreatePostRequest) (CreateParams, error) {
	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	parentID := strings.TrimSpace(req.ParentID)

	params := CreateParams{
		Title:   title,
		Message: message,
		File:    req.File,
	}
	if parentID != "" {
		params.ParentID = &parentID
	} else if title == "" && message == "" {
		return CreateParams{}, NewValidationError("title", "a thread needs a title or a message")
	}
	if parentID != "" && message == "" && req.File == nil {
		return CreateParams{}, NewValidationError("message", "a reply needs a message or a file")
	}
	return params, nil
}
