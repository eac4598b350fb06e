package seeder

import (
	"context"
	"time"

	"threadboard/internal/app/post"

	"go.uber.org/zap"
)

type Seeder struct {
	posts  post.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewSeeder(posts post.Repository, logger *zap.Logger) *Seeder {
	return &Seeder{
		posts:  posts,
		logger: logger,
		now:    time.Now,
	}
}

// Seed posts a welcome thread with one reply into an empty board.
func (s *Seeder) Seed(ctx context.Context) error {
	s.logger.Info("Running seeders...")

	if err := s.seedWelcome(ctx); err != nil {
		return err
	}

	s.logger.Info("Seeders completed successfully")
	return nil
}

func (s *Seeder) seedWelcome(ctx context.Context) error {
	if s.posts.Stats().Threads > 0 {
		s.logger.Info("Threads already exist, skipping seed")
		return nil
	}

	now := uint64(s.now().Unix())
	thread, err := s.posts.Create(ctx, post.CreateParams{
		Title:   "Welcome",
		Message: "This is the first thread. Reply to bump it back to the top.",
	}, now)
	if err != nil {
		return err
	}

	_, err = s.posts.Create(ctx, post.CreateParams{
		Message:  "Replies are listed oldest first.",
		ParentID: ptr(thread.Post.ID),
	}, now)
	if err != nil {
		return err
	}

	s.logger.Info("Seeded welcome thread", zap.String("thread_id", thread.Post.ID))
	return nil
}

func ptr(s string) *string {
	return &s
}
