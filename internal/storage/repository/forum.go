package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/traderoom/trading-academy/internal/models"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate")

// CreateCategory inserts a forum category. A name normalizing to an
// existing slug returns ErrDuplicate.
func (s *Storage) CreateCategory(ctx context.Context, cat models.ForumCategory) (int, error) {
	const op = "storage.CreateCategory"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int
	query := `INSERT INTO forum_categories (name, slug, description)
			  VALUES ($1, $2, $3)
			  RETURNING id`
	err := s.DB.QueryRowContext(ctx, query, cat.Name, cat.Slug, cat.Description).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListCategories returns all forum categories.
func (s *Storage) ListCategories(ctx context.Context) ([]*models.ForumCategory, error) {
	const op = "storage.ListCategories"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, slug, description FROM forum_categories ORDER BY name`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ForumCategory
	for rows.Next() {
		var item models.ForumCategory
		if err := rows.Scan(&item.ID, &item.Name, &item.Slug, &item.Description); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreatePost inserts a thread root or a reply and returns its ID.
func (s *Storage) CreatePost(ctx context.Context, post models.ForumPost) (int, error) {
	const op = "storage.CreatePost"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int
	query := `INSERT INTO forum_posts (category_id, user_uid, parent_id, title, content)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		post.CategoryID, post.UserUID, post.ParentID, post.Title, post.Content).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetPost returns one post by ID.
func (s *Storage) GetPost(ctx context.Context, id int) (*models.ForumPost, error) {
	const op = "storage.GetPost"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, category_id, user_uid, parent_id, title, content, created_at
			  FROM forum_posts
			  WHERE id = $1`
	var item models.ForumPost
	var parentID sql.NullInt64
	row := s.DB.QueryRowContext(ctx, query, id)
	if err := row.Scan(&item.ID, &item.CategoryID, &item.UserUID, &parentID,
		&item.Title, &item.Content, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if parentID.Valid {
		parent := int(parentID.Int64)
		item.ParentID = &parent
	}
	return &item, nil
}

// ListPostsByCategory returns a category's thread roots with vote sums
// and reply counts, newest first.
func (s *Storage) ListPostsByCategory(ctx context.Context, categoryID, limit, offset int) ([]*models.ForumPost, error) {
	const op = "storage.ListPostsByCategory"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT p.id, p.category_id, p.user_uid, p.parent_id, p.title, p.content, p.created_at,
			      COALESCE(SUM(v.value), 0) AS vote_sum,
			      (SELECT COUNT(*) FROM forum_posts r WHERE r.parent_id = p.id) AS reply_count
			  FROM forum_posts p
			  LEFT JOIN forum_votes v ON v.post_id = p.id
			  WHERE p.category_id = $1 AND p.parent_id IS NULL
			  GROUP BY p.id
			  ORDER BY p.id DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, categoryID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ForumPost
	for rows.Next() {
		var item models.ForumPost
		var parentID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.CategoryID, &item.UserUID, &parentID,
			&item.Title, &item.Content, &item.CreatedAt, &item.VoteSum, &item.ReplyCount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if parentID.Valid {
			parent := int(parentID.Int64)
			item.ParentID = &parent
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListReplies returns the replies of one post, oldest first.
func (s *Storage) ListReplies(ctx context.Context, postID int) ([]*models.ForumPost, error) {
	const op = "storage.ListReplies"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT p.id, p.category_id, p.user_uid, p.parent_id, p.title, p.content, p.created_at,
			      COALESCE(SUM(v.value), 0) AS vote_sum
			  FROM forum_posts p
			  LEFT JOIN forum_votes v ON v.post_id = p.id
			  WHERE p.parent_id = $1
			  GROUP BY p.id
			  ORDER BY p.id`
	rows, err := s.DB.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ForumPost
	for rows.Next() {
		var item models.ForumPost
		var parentID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.CategoryID, &item.UserUID, &parentID,
			&item.Title, &item.Content, &item.CreatedAt, &item.VoteSum); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if parentID.Valid {
			parent := int(parentID.Int64)
			item.ParentID = &parent
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpsertVote records one user's vote on one post, replacing any previous
// value. The (user_uid, post_id) primary key keeps it to one row.
func (s *Storage) UpsertVote(ctx context.Context, userUID string, postID, value int) error {
	const op = "storage.UpsertVote"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO forum_votes (user_uid, post_id, value)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (user_uid, post_id) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.DB.ExecContext(ctx, query, userUID, postID, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
