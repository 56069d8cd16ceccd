// Package services contains the community forum logic: categories with
// derived slugs, threaded posts and votes.
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/traderoom/trading-academy/internal/models"
)

// ErrParentMismatch is returned when a reply names a parent post from a
// different category.
var ErrParentMismatch = errors.New("parent post belongs to a different category")

// ErrMissingTitle is returned when a thread root has no title.
var ErrMissingTitle = errors.New("thread title is required")

// ForumRepository defines the storage methods of the forum.
type ForumRepository interface {
	CreateCategory(ctx context.Context, cat models.ForumCategory) (int, error)
	ListCategories(ctx context.Context) ([]*models.ForumCategory, error)
	CreatePost(ctx context.Context, post models.ForumPost) (int, error)
	GetPost(ctx context.Context, id int) (*models.ForumPost, error)
	ListPostsByCategory(ctx context.Context, categoryID, limit, offset int) ([]*models.ForumPost, error)
	ListReplies(ctx context.Context, postID int) ([]*models.ForumPost, error)
	UpsertVote(ctx context.Context, userUID string, postID, value int) error
}

// ForumService implements the forum operations.
type ForumService struct {
	repo ForumRepository
	log  *slog.Logger
}

// NewForumService creates a new ForumService.
func NewForumService(repo ForumRepository, log *slog.Logger) *ForumService {
	return &ForumService{
		repo: repo,
		log:  log,
	}
}

// CreateCategory stores a category under the slug derived from its
// name. A duplicate slug surfaces as repository.ErrDuplicate.
func (s *ForumService) CreateCategory(ctx context.Context, req models.DummyCategory) (int, error) {
	id, err := s.repo.CreateCategory(ctx, models.ForumCategory{
		Name:        req.Name,
		Slug:        Slugify(req.Name),
		Description: req.Description,
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("forum category created", slog.Int("id", id), slog.String("slug", Slugify(req.Name)))
	return id, nil
}

// ListCategories returns all categories.
func (s *ForumService) ListCategories(ctx context.Context) ([]*models.ForumCategory, error) {
	return s.repo.ListCategories(ctx)
}

// CreatePost stores a thread root or a reply. Replies inherit the
// category of their parent and must name a parent in the same category.
func (s *ForumService) CreatePost(ctx context.Context, userUID string, req models.DummyPost) (int, error) {
	if req.ParentID != nil {
		parent, err := s.repo.GetPost(ctx, *req.ParentID)
		if err != nil {
			return 0, err
		}
		if parent.CategoryID != req.CategoryID {
			return 0, ErrParentMismatch
		}
	} else if strings.TrimSpace(req.Title) == "" {
		return 0, ErrMissingTitle
	}

	id, err := s.repo.CreatePost(ctx, models.ForumPost{
		CategoryID: req.CategoryID,
		UserUID:    userUID,
		ParentID:   req.ParentID,
		Title:      req.Title,
		Content:    req.Content,
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("forum post created", slog.Int("id", id), slog.Int("category_id", req.CategoryID))
	return id, nil
}

// ListPosts returns the thread roots of a category with vote sums and
// reply counts.
func (s *ForumService) ListPosts(ctx context.Context, categoryID, limit, offset int) ([]*models.ForumPost, error) {
	return s.repo.ListPostsByCategory(ctx, categoryID, limit, offset)
}

// ListReplies returns the replies of one post, oldest first.
func (s *ForumService) ListReplies(ctx context.Context, postID int) ([]*models.ForumPost, error) {
	return s.repo.ListReplies(ctx, postID)
}

// Vote records or updates the user's vote on a post.
func (s *ForumService) Vote(ctx context.Context, userUID string, postID, value int) error {
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		return err
	}
	return s.repo.UpsertVote(ctx, userUID, postID, value)
}

// Slugify lowercases the name and replaces every run of non-alphanumeric
// characters with a single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
