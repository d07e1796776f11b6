package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogarchive/pkg/logger"
	"blogarchive/pkg/models"
	"blogarchive/pkg/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePost(url string) *models.BlogPost {
	return &models.BlogPost{
		MemberID:   4,
		MemberName: "member-a",
		URL:        url,
		Title:      "first title",
		Date:       "2024/03/05",
		Content:    "<p>hello</p>",
		Site:       models.SiteCurrent,
		Images: []models.PostImage{
			{ImageURL: "https://example.com/1.jpg"},
			{ImageURL: "https://example.com/2.jpg"},
		},
	}
}

func TestUpsertPostIsIdempotentPerURL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	post := samplePost("https://example.com/posts/1")
	require.NoError(t, db.UpsertPost(ctx, post))
	firstID := post.ID

	again := samplePost("https://example.com/posts/1")
	again.Title = "updated title"
	again.Images = []models.PostImage{{ImageURL: "https://example.com/3.jpg"}}
	require.NoError(t, db.UpsertPost(ctx, again))

	assert.Equal(t, firstID, again.ID, "re-scraping the same URL keeps the row")

	posts, err := db.GetAllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "updated title", posts[0].Title)
	require.Len(t, posts[0].Images, 1)
	assert.Equal(t, "https://example.com/3.jpg", posts[0].Images[0].ImageURL)
}

func TestGetPostReturnsNilWhenAbsent(t *testing.T) {
	db := openTestDB(t)

	post, err := db.GetPost(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestGetPostsFiltersByMemberAndLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, date := range []string{"2024/01/01", "2024/01/02", "2024/01/03"} {
		p := samplePost("https://example.com/posts/a" + date)
		p.Date = date
		p.Title = "post"
		require.NoError(t, db.UpsertPost(ctx, p))
	}
	other := samplePost("https://example.com/posts/other")
	other.MemberID = 7
	require.NoError(t, db.UpsertPost(ctx, other))

	posts, err := db.GetPosts(ctx, 4, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "2024/01/03", posts[0].Date, "newest first")
	assert.Equal(t, "2024/01/02", posts[1].Date)
}

func TestSearchPostsIsCaseInsensitive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := samplePost("https://example.com/posts/1")
	p.Title = "Summer Tour Report"
	require.NoError(t, db.UpsertPost(ctx, p))

	q := samplePost("https://example.com/posts/2")
	q.Title = "unrelated"
	q.Content = "rehearsal for the TOUR final"
	require.NoError(t, db.UpsertPost(ctx, q))

	r := samplePost("https://example.com/posts/3")
	r.Title = "nothing here"
	r.Content = "nothing here"
	require.NoError(t, db.UpsertPost(ctx, r))

	found, err := db.SearchPosts(ctx, "tour")
	require.NoError(t, err)
	assert.Len(t, found, 2, "matches in title and content, any case")
}

func TestUpdatePostImagePathsOrdinal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	post := samplePost("https://example.com/posts/1")
	require.NoError(t, db.UpsertPost(ctx, post))

	require.NoError(t, db.UpdatePostImagePaths(ctx, post.URL, []string{"a/1.jpg", "a/2.jpg"}))

	got, err := db.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "a/1.jpg", got.Images[0].LocalPath)
	assert.Equal(t, "a/2.jpg", got.Images[1].LocalPath)
}

func TestUpdatePostImagePathsNullsRemainder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	post := samplePost("https://example.com/posts/1")
	require.NoError(t, db.UpsertPost(ctx, post))
	require.NoError(t, db.UpdatePostImagePaths(ctx, post.URL, []string{"a/1.jpg", "a/2.jpg"}))

	// A shorter slice overwrites the covered rows and clears the rest.
	require.NoError(t, db.UpdatePostImagePaths(ctx, post.URL, []string{"b/1.jpg"}))

	got, err := db.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "b/1.jpg", got.Images[0].LocalPath)
	assert.Empty(t, got.Images[1].LocalPath, "rows beyond the slice are cleared")
}

func TestUpdatePostImagePathsUnknownPost(t *testing.T) {
	db := openTestDB(t)

	err := db.UpdatePostImagePaths(context.Background(), "https://example.com/unknown", []string{"x.jpg"})
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestUpdatePostImagePathsByURL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	post := samplePost("https://example.com/posts/1")
	require.NoError(t, db.UpsertPost(ctx, post))

	err := db.UpdatePostImagePathsByURL(ctx, post.URL, map[string]string{
		"https://example.com/2.jpg": "/data/2.jpg",
	})
	require.NoError(t, err)

	got, err := db.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.Empty(t, got.Images[0].LocalPath, "unmatched reference untouched")
	assert.Equal(t, "/data/2.jpg", got.Images[1].LocalPath)

	err = db.UpdatePostImagePathsByURL(ctx, "https://example.com/unknown", nil)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestDeletePostRemovesImagesAndFiles(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	root := t.TempDir()
	store, err := storage.NewLocal(root, logger.NewNopLogger())
	require.NoError(t, err)

	relPath := "member-a/site-A_1_abcd.jpg"
	imgFile := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(imgFile), 0755))
	require.NoError(t, os.WriteFile(imgFile, []byte("x"), 0644))

	post := samplePost("https://example.com/posts/1")
	post.Images = []models.PostImage{{ImageURL: "https://example.com/1.jpg", LocalPath: relPath}}
	require.NoError(t, db.UpsertPost(ctx, post))

	deleted, err := db.DeletePost(ctx, post.ID, store)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, statErr := os.Stat(imgFile)
	assert.True(t, os.IsNotExist(statErr), "stored file is removed through the backend")

	got, err := db.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = db.DeletePost(ctx, post.ID, store)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted, "deleting an unknown id reports zero rows")
}

func TestSaveMembersRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	roster := []models.Member{
		{ID: 2, Name: "member-b", BlogURL: "https://example.com/b"},
		{ID: 1, Name: "member-a", BlogURL: "https://example.com/a"},
	}
	require.NoError(t, db.SaveMembers(ctx, roster))

	members, err := db.GetMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, 1, members[0].ID, "ordered by id")

	m, err := db.GetMember(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "member-b", m.Name)

	missing, err := db.GetMember(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Re-seeding refreshes rather than duplicates.
	roster[0].Name = "member-b-renamed"
	require.NoError(t, db.SaveMembers(ctx, roster))
	members, err = db.GetMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}
