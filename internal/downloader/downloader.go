// Package downloader moves post images from the blog CDN into the storage
// backend. Downloads run in fixed-size windows, deduped per post through
// the cache index, with an in-flight guard serializing fetches of the
// same URL.
package downloader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"blogarchive/pkg/imagecache"
	"blogarchive/pkg/logger"
	"blogarchive/pkg/models"
	"blogarchive/pkg/retry"
	"blogarchive/pkg/storage"
)

// Job identifies one image to fetch and where it belongs.
type Job struct {
	URL        string
	MemberID   int
	MemberName string
	PostID     int
	Site       models.Site
}

// Result reports the outcome of one job. LocalPath is the
// storage-root-relative path of the stored image, empty on failure.
type Result struct {
	Job       Job
	LocalPath string
	Cached    bool
	Size      int64
	Duration  time.Duration
	Err       error
}

// Fetcher is the HTTP surface the downloader needs.
type Fetcher interface {
	DownloadBytes(ctx context.Context, url string) ([]byte, error)
}

// Options tunes a Downloader.
type Options struct {
	Concurrency    int
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Downloader downloads images with retries, dedupe and windowed
// concurrency.
type Downloader struct {
	client Fetcher
	store  storage.Adapter
	cache  *imagecache.Index
	opts   Options
	logger logger.Logger

	// inflight serializes concurrent downloads of the same URL so each
	// image is fetched at most once per process.
	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// New creates a Downloader.
func New(client Fetcher, store storage.Adapter, cache *imagecache.Index, opts Options, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	return &Downloader{
		client:   client,
		store:    store,
		cache:    cache,
		opts:     opts,
		logger:   log,
		inflight: make(map[string]*sync.Mutex),
	}
}

// DownloadOne fetches one image unless the cache already has it for this
// member and post. Cache entries are post-scoped: the same remote image
// referenced from two posts is stored twice, so deleting one post never
// takes the other's file with it. The per-URL lock keeps concurrent
// fetches of one URL from running at the same time.
func (d *Downloader) DownloadOne(ctx context.Context, job Job) Result {
	start := time.Now()

	urlLock := d.lockURL(job.URL)
	urlLock.Lock()
	defer urlLock.Unlock()

	if entry, ok := d.cache.Lookup(job.URL, job.MemberID, job.PostID); ok {
		exists, err := d.store.Exists(ctx, entry.LocalPath)
		if err == nil && exists {
			logger.LogDownload(d.logger, job.MemberName, job.URL, true, nil)
			return Result{
				Job:       job,
				LocalPath: entry.LocalPath,
				Cached:    true,
				Size:      entry.Size,
				Duration:  time.Since(start),
			}
		}
		// Stored file vanished; forget the entry and fetch again.
		d.cache.Evict(job.URL, job.MemberID, job.PostID)
	}

	relPath := d.relPath(job)

	cfg := &retry.Config{
		MaxAttempts: d.opts.RetryAttempts,
		Backoff: &retry.LinearBackoff{
			BaseDelay: d.opts.RetryBaseDelay,
			Increment: d.opts.RetryBaseDelay,
			MaxDelay:  10 * d.opts.RetryBaseDelay,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  d.logger,
	}

	data, err := retry.DoWithResult(func() ([]byte, error) {
		return d.client.DownloadBytes(ctx, job.URL)
	}, cfg)
	if err != nil {
		logger.LogDownload(d.logger, job.MemberName, job.URL, false, err)
		return Result{Job: job, Duration: time.Since(start), Err: err}
	}

	size, err := d.store.Save(ctx, relPath, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.LogDownload(d.logger, job.MemberName, job.URL, false, err)
		return Result{Job: job, Duration: time.Since(start), Err: fmt.Errorf("failed to store image: %w", err)}
	}

	d.cache.Record(imagecache.Entry{
		URL:          job.URL,
		LocalPath:    relPath,
		MemberID:     job.MemberID,
		PostID:       job.PostID,
		DownloadedAt: time.Now(),
		Size:         size,
	})

	logger.LogDownload(d.logger, job.MemberName, job.URL, true, nil)

	return Result{
		Job:       job,
		LocalPath: relPath,
		Size:      size,
		Duration:  time.Since(start),
	}
}

// DownloadMany runs jobs in fixed windows of Concurrency, one window at a
// time. Results come back in input order. Failed jobs stay failed; the
// rest of the batch proceeds.
func (d *Downloader) DownloadMany(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	for offset := 0; offset < len(jobs); offset += d.opts.Concurrency {
		if err := ctx.Err(); err != nil {
			for i := offset; i < len(jobs); i++ {
				results[i] = Result{Job: jobs[i], Err: err}
			}
			break
		}

		end := offset + d.opts.Concurrency
		if end > len(jobs) {
			end = len(jobs)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = d.DownloadOne(ctx, jobs[i])
			}(i)
		}
		wg.Wait()

		d.logger.DebugWithFields("Download window finished", map[string]interface{}{
			"done":  end,
			"total": len(jobs),
		})
	}

	return results
}

func (d *Downloader) lockURL(url string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.inflight[url]
	if !ok {
		lock = &sync.Mutex{}
		d.inflight[url] = lock
	}
	return lock
}

// relPath builds the storage path for a job:
// <member-folder>/<site>_<post-id>_<url-hash><ext>.
func (d *Downloader) relPath(job Job) string {
	sum := sha256.Sum256([]byte(job.URL))
	hash := hex.EncodeToString(sum[:8])

	ext := ".jpg"
	if u, err := url.Parse(job.URL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); e != "" && len(e) <= 5 {
			ext = e
		}
	}

	return fmt.Sprintf("%s/%s_%d_%s%s", sanitizeFolder(job.MemberName), job.Site, job.PostID, hash, ext)
}

// sanitizeFolder maps a member name onto a safe directory name.
func sanitizeFolder(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|' || r == '.':
			b.WriteRune('_')
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
