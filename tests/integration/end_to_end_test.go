package integration

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogarchive/pkg/config"
	"blogarchive/pkg/database"
	"blogarchive/pkg/imagecache"
	"blogarchive/pkg/logger"
	"blogarchive/pkg/models"
	"blogarchive/pkg/scraper"
	"blogarchive/pkg/sites"
	"blogarchive/pkg/storage"
)

const sitePageSize = 20

type harness struct {
	scraper *scraper.Scraper
	db      *database.DB
	store   storage.Adapter
	cache   *imagecache.Index
	cfg     *config.Config
	root    string
}

func newHarness(t *testing.T, serverURL string) *harness {
	t.Helper()

	restore := sites.OverrideBaseURL(models.SiteCurrent, serverURL)
	t.Cleanup(restore)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Scrape.MinDelay = 0
	cfg.Scrape.MaxDelay = time.Millisecond
	cfg.Scrape.BurstPause = 0
	cfg.Download.RetryBaseDelay = time.Millisecond
	cfg.Storage.Root = filepath.Join(dir, "images")
	cfg.Database.Path = filepath.Join(dir, "archive.db")
	cfg.Download.CacheIndexPath = filepath.Join(dir, "cache.json")

	db, err := database.Open(cfg.Database.Path, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocal(cfg.Storage.Root, logger.NewNopLogger())
	require.NoError(t, err)

	cache, err := imagecache.Load(cfg.Download.CacheIndexPath, logger.NewNopLogger())
	require.NoError(t, err)

	return &harness{
		scraper: scraper.New(cfg, db, store, cache, logger.NewNopLogger()),
		db:      db,
		store:   store,
		cache:   cache,
		cfg:     cfg,
		root:    cfg.Storage.Root,
	}
}

// restart builds a fresh scraper over the same database, storage and cache
// file, the way a new process would.
func (h *harness) restart(t *testing.T) {
	t.Helper()

	store, err := storage.NewLocal(h.cfg.Storage.Root, logger.NewNopLogger())
	require.NoError(t, err)

	cache, err := imagecache.Load(h.cfg.Download.CacheIndexPath, logger.NewNopLogger())
	require.NoError(t, err)

	h.store = store
	h.cache = cache
	h.scraper = scraper.New(h.cfg, h.db, store, cache, logger.NewNopLogger())
}

func (h *harness) countStoredImages(t *testing.T) int {
	t.Helper()
	count := 0
	err := filepath.Walk(h.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestFullArchiveAcrossPages(t *testing.T) {
	server := NewMockBlogServer(sitePageSize)
	defer server.Close()
	server.SetPosts(4, 25) // two listing pages

	h := newHarness(t, server.URL())
	ctx := context.Background()
	require.NoError(t, h.db.SaveMembers(ctx, []models.Member{{ID: 4, Name: "member-a"}}))

	summary, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent})
	require.NoError(t, err)

	assert.Equal(t, 25, summary.PostsScraped)
	assert.Equal(t, 0, summary.PostsFailed)
	assert.Equal(t, 25, summary.ImagesDownloaded)

	posts, err := h.db.GetPosts(ctx, 4, 0)
	require.NoError(t, err)
	require.Len(t, posts, 25)
	for _, p := range posts {
		require.Len(t, p.Images, 1, "chrome images filtered, post %s", p.URL)
		assert.NotEmpty(t, p.Images[0].LocalPath, "post %s image not linked", p.URL)
	}

	assert.Equal(t, 25, h.countStoredImages(t))
}

func TestSharedImageLinkedInEveryPost(t *testing.T) {
	server := NewMockBlogServer(sitePageSize)
	defer server.Close()
	server.SetPosts(4, 5)
	server.UseSharedImage(true)

	h := newHarness(t, server.URL())
	ctx := context.Background()
	require.NoError(t, h.db.SaveMembers(ctx, []models.Member{{ID: 4, Name: "member-a"}}))

	summary, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent})
	require.NoError(t, err)

	// 5 unique images plus the shared one in each of the 5 posts. Cache
	// entries are post-scoped, so each post keeps its own copy.
	assert.Equal(t, 10, summary.ImagesDownloaded)
	assert.Equal(t, 0, summary.ImagesCached)
	assert.Equal(t, 10, h.countStoredImages(t))

	posts, err := h.db.GetPosts(ctx, 4, 0)
	require.NoError(t, err)
	require.Len(t, posts, 5)

	sharedPaths := make(map[string]bool)
	for _, p := range posts {
		require.Len(t, p.Images, 2)
		for _, img := range p.Images {
			require.NotEmpty(t, img.LocalPath, "post %s image %s not linked", p.URL, img.ImageURL)
			if img.ImageURL == server.URL()+"/images/shared.jpg" {
				sharedPaths[img.LocalPath] = true
			}
		}
	}
	assert.Len(t, sharedPaths, 5, "each post stores the shared image under its own path")
}

func TestDeletePostKeepsOtherPostsImages(t *testing.T) {
	server := NewMockBlogServer(sitePageSize)
	defer server.Close()
	server.SetPosts(4, 2)
	server.UseSharedImage(true)

	h := newHarness(t, server.URL())
	ctx := context.Background()
	require.NoError(t, h.db.SaveMembers(ctx, []models.Member{{ID: 4, Name: "member-a"}}))

	_, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent})
	require.NoError(t, err)

	posts, err := h.db.GetPosts(ctx, 4, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	deleted, err := h.db.DeletePost(ctx, posts[0].ID, h.store)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	// The surviving post's files, shared image included, are untouched.
	survivor, err := h.db.GetPost(ctx, posts[1].ID)
	require.NoError(t, err)
	require.NotNil(t, survivor)
	for _, img := range survivor.Images {
		require.NotEmpty(t, img.LocalPath)
		_, statErr := os.Stat(filepath.Join(h.root, filepath.FromSlash(img.LocalPath)))
		assert.NoError(t, statErr, "surviving post lost %s", img.LocalPath)
	}

	// The deleted post's files are gone.
	for _, img := range posts[0].Images {
		_, statErr := os.Stat(filepath.Join(h.root, filepath.FromSlash(img.LocalPath)))
		assert.True(t, os.IsNotExist(statErr), "deleted post still has %s", img.LocalPath)
	}
}

func TestLimitStopsEarly(t *testing.T) {
	server := NewMockBlogServer(sitePageSize)
	defer server.Close()
	server.SetPosts(4, 50)

	h := newHarness(t, server.URL())
	ctx := context.Background()
	require.NoError(t, h.db.SaveMembers(ctx, []models.Member{{ID: 4, Name: "member-a"}}))

	summary, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent, Limit: 7})
	require.NoError(t, err)

	assert.Equal(t, 7, summary.PostsScraped)

	posts, err := h.db.GetAllPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 7)
}

func TestMaxPagesCapsListingWalk(t *testing.T) {
	server := NewMockBlogServer(sitePageSize)
	defer server.Close()
	server.SetPosts(4, 30) // would need two listing pages

	h := newHarness(t, server.URL())
	h.cfg.Scrape.MaxPages = 1

	ctx := context.Background()
	require.NoError(t, h.db.SaveMembers(ctx, []models.Member{{ID: 4, Name: "member-a"}}))

	summary, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent})
	require.NoError(t, err)

	assert.Equal(t, sitePageSize, summary.PostsScraped,
		"the configured page cap stops the walk after one listing page")
}

func TestTransientImageFailureIsRetried(t *testing.T) {
	server := NewMockBlogServer(sitePageSize)
	defer server.Close()
	server.SetPosts(4, 3)
	server.FailOnce("/images/4-2.jpg", http.StatusInternalServerError)

	h := newHarness(t, server.URL())
	ctx := context.Background()
	require.NoError(t, h.db.SaveMembers(ctx, []models.Member{{ID: 4, Name: "member-a"}}))

	summary, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ImagesDownloaded)
	assert.Equal(t, 0, summary.ImagesFailed, "a transient 500 is retried, not recorded as failure")
}

func TestPermanentImageFailureDoesNotAbortRun(t *testing.T) {
	server := NewMockBlogServer(sitePageSize)
	defer server.Close()
	server.SetPosts(4, 3)
	// 404 is permanent: every attempt fails without retries.
	server.FailOnce("/images/4-2.jpg", http.StatusNotFound)

	h := newHarness(t, server.URL())
	ctx := context.Background()
	require.NoError(t, h.db.SaveMembers(ctx, []models.Member{{ID: 4, Name: "member-a"}}))

	summary, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.PostsScraped)
	assert.Equal(t, 2, summary.ImagesDownloaded)
	assert.Equal(t, 1, summary.ImagesFailed)

	posts, err := h.db.GetPosts(ctx, 4, 0)
	require.NoError(t, err)
	var unlinked int
	for _, p := range posts {
		for _, img := range p.Images {
			if img.LocalPath == "" {
				unlinked++
			}
		}
	}
	assert.Equal(t, 1, unlinked, "only the failed image stays unlinked")
}

func TestCacheIndexSurvivesRestart(t *testing.T) {
	server := NewMockBlogServer(sitePageSize)
	defer server.Close()
	server.SetPosts(4, 4)

	h := newHarness(t, server.URL())
	ctx := context.Background()
	require.NoError(t, h.db.SaveMembers(ctx, []models.Member{{ID: 4, Name: "member-a"}}))

	_, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent})
	require.NoError(t, err)
	assert.Equal(t, 4, h.cache.Len())

	requestsAfterFirst := server.RequestCount()

	// A fresh process reloads the index and downloads nothing.
	h.restart(t)
	assert.Equal(t, 4, h.cache.Len(), "index reloaded from disk")

	second, err := h.scraper.Run(ctx, scraper.RunOptions{Site: models.SiteCurrent})
	require.NoError(t, err)
	assert.Equal(t, 0, second.ImagesDownloaded)
	assert.Equal(t, 4, second.ImagesCached)

	// Listing and detail pages are refetched, images are not.
	assert.Equal(t, requestsAfterFirst+1+4, server.RequestCount(),
		"second run fetches one listing page and four detail pages only")
}
