package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"blogarchive/pkg/models"
)

// ImageStore is the slice of the storage backend DeletePost needs to
// clean up downloaded files. Paths are storage-root-relative.
type ImageStore interface {
	Delete(ctx context.Context, relPath string) error
}

// UpsertPost stores a scraped post, replacing any earlier scrape of the
// same URL. Image references are rewritten wholesale so the stored order
// always matches the latest scrape. The post's ID field is set on return.
func (db *DB) UpsertPost(ctx context.Context, post *models.BlogPost) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blog_posts (member_id, member_name, url, title, date, content, site)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			member_id = excluded.member_id,
			member_name = excluded.member_name,
			title = excluded.title,
			date = excluded.date,
			content = excluded.content,
			site = excluded.site`,
		post.MemberID, post.MemberName, post.URL, post.Title, post.Date, post.Content, string(post.Site))
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.URL, err)
	}

	var postID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM blog_posts WHERE url = ?`, post.URL).Scan(&postID); err != nil {
		return fmt.Errorf("failed to read post id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM blog_images WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to clear image references: %w", err)
	}

	for _, img := range post.Images {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO blog_images (post_id, image_url, local_path) VALUES (?, ?, ?)`,
			postID, img.ImageURL, img.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to insert image reference: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post: %w", err)
	}

	post.ID = int(postID)
	return nil
}

// UpdatePostImagePaths pairs downloaded file paths with a post's image
// references by position: the references ordered by row id get paths[i].
// Paths beyond the stored reference count are ignored; references beyond
// the path count are set back to NULL. An unknown post URL returns
// ErrPostNotFound.
func (db *DB) UpdatePostImagePaths(ctx context.Context, postURL string, paths []string) error {
	var postID int
	err := db.conn.QueryRowContext(ctx, `SELECT id FROM blog_posts WHERE url = ?`, postURL).Scan(&postID)
	if err == sql.ErrNoRows {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up post %s: %w", postURL, err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM blog_images WHERE post_id = ? ORDER BY id`, postID)
	if err != nil {
		return fmt.Errorf("failed to list image references: %w", err)
	}

	var imageIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			db.closeRows(rows)
			return fmt.Errorf("failed to scan image id: %w", err)
		}
		imageIDs = append(imageIDs, id)
	}
	if err := rows.Err(); err != nil {
		db.closeRows(rows)
		return fmt.Errorf("failed to iterate image references: %w", err)
	}
	db.closeRows(rows)

	for i, imageID := range imageIDs {
		var path interface{}
		if i < len(paths) {
			path = paths[i]
		}
		_, err := db.conn.ExecContext(ctx,
			`UPDATE blog_images SET local_path = ? WHERE id = ?`, path, imageID)
		if err != nil {
			return fmt.Errorf("failed to update image path: %w", err)
		}
	}

	return nil
}

// UpdatePostImagePathsByURL pairs downloaded file paths with a post's image
// references by image URL, which survives reordering between scrape and
// download. Unknown image URLs are ignored.
func (db *DB) UpdatePostImagePathsByURL(ctx context.Context, postURL string, paths map[string]string) error {
	var postID int
	err := db.conn.QueryRowContext(ctx, `SELECT id FROM blog_posts WHERE url = ?`, postURL).Scan(&postID)
	if err == sql.ErrNoRows {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up post %s: %w", postURL, err)
	}

	for imageURL, localPath := range paths {
		if localPath == "" {
			continue
		}
		_, err := db.conn.ExecContext(ctx,
			`UPDATE blog_images SET local_path = ? WHERE post_id = ? AND image_url = ?`,
			localPath, postID, imageURL)
		if err != nil {
			return fmt.Errorf("failed to update image path: %w", err)
		}
	}

	return nil
}

// GetPost fetches one post with its images. A missing id returns nil, not
// an error.
func (db *DB) GetPost(ctx context.Context, id int) (*models.BlogPost, error) {
	posts, err := db.queryPosts(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// GetPosts returns a member's posts, newest first. limit <= 0 means no
// limit.
func (db *DB) GetPosts(ctx context.Context, memberID, limit int) ([]models.BlogPost, error) {
	clause := `WHERE member_id = ? ORDER BY date DESC, id DESC`
	args := []interface{}{memberID}
	if limit > 0 {
		clause += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.queryPosts(ctx, clause, args...)
}

// GetAllPosts returns every stored post, newest first.
func (db *DB) GetAllPosts(ctx context.Context) ([]models.BlogPost, error) {
	return db.queryPosts(ctx, `ORDER BY date DESC, id DESC`)
}

// SearchPosts returns posts whose title or content contains the query,
// case-insensitively, newest first.
func (db *DB) SearchPosts(ctx context.Context, query string) ([]models.BlogPost, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	return db.queryPosts(ctx,
		`WHERE lower(title) LIKE ? OR lower(content) LIKE ? ORDER BY date DESC, id DESC`,
		pattern, pattern)
}

// DeletePost removes a post, its image references and any downloaded
// image files, the latter through the storage backend so object-store
// backends are cleaned up too. File removal is best effort; a failure is
// only logged. The returned count is 1 when a post was deleted, 0 when
// the id was unknown.
func (db *DB) DeletePost(ctx context.Context, id int, store ImageStore) (int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT local_path FROM blog_images WHERE post_id = ? AND local_path IS NOT NULL AND local_path != ''`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to list image files: %w", err)
	}

	var files []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			db.closeRows(rows)
			return 0, fmt.Errorf("failed to scan image path: %w", err)
		}
		files = append(files, p)
	}
	if err := rows.Err(); err != nil {
		db.closeRows(rows)
		return 0, fmt.Errorf("failed to iterate image files: %w", err)
	}
	db.closeRows(rows)

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM blog_images WHERE post_id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to delete image references: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete post: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}

	if store != nil {
		for _, f := range files {
			if err := store.Delete(ctx, f); err != nil {
				db.logger.WithError(err).WithField("path", f).Warn("Failed to remove image file")
			}
		}
	}

	return int(deleted), nil
}

// queryPosts runs a post query and attaches image references in stored
// order.
func (db *DB) queryPosts(ctx context.Context, clause string, args ...interface{}) ([]models.BlogPost, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, member_id, member_name, url, title, date, content, site, created_at
		FROM blog_posts `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	var posts []models.BlogPost
	for rows.Next() {
		var p models.BlogPost
		var site string
		if err := rows.Scan(&p.ID, &p.MemberID, &p.MemberName, &p.URL, &p.Title,
			&p.Date, &p.Content, &site, &p.CreatedAt); err != nil {
			db.closeRows(rows)
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.Site = models.Site(site)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		db.closeRows(rows)
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	db.closeRows(rows)

	for i := range posts {
		images, err := db.imagesFor(ctx, posts[i].ID)
		if err != nil {
			return nil, err
		}
		posts[i].Images = images
	}

	return posts, nil
}

func (db *DB) imagesFor(ctx context.Context, postID int) ([]models.PostImage, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, post_id, image_url, local_path FROM blog_images WHERE post_id = ? ORDER BY id`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer db.closeRows(rows)

	var images []models.PostImage
	for rows.Next() {
		var img models.PostImage
		var localPath sql.NullString
		if err := rows.Scan(&img.ID, &img.PostID, &img.ImageURL, &localPath); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		img.LocalPath = localPath.String
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}

	return images, nil
}
