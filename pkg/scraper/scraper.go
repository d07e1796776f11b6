package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"blogarchive/internal/downloader"
	"blogarchive/pkg/collector"
	"blogarchive/pkg/config"
	"blogarchive/pkg/database"
	"blogarchive/pkg/extractor"
	"blogarchive/pkg/fetch"
	"blogarchive/pkg/imagecache"
	"blogarchive/pkg/logger"
	"blogarchive/pkg/models"
	"blogarchive/pkg/ratelimit"
	"blogarchive/pkg/sites"
	"blogarchive/pkg/storage"
)

// Scraper orchestrates a full archive run: collect stubs, fetch and
// extract each post, persist it, then download its images.
type Scraper struct {
	cfg         *config.Config
	db          *database.DB
	store       storage.Adapter
	cache       *imagecache.Index
	pageClient  *fetch.Client
	imageClient *fetch.Client
	scheduler   *ratelimit.Scheduler
	logger      logger.Logger
}

// RunOptions narrows one archive run.
type RunOptions struct {
	Site      models.Site
	MemberIDs []int // empty means every member stored for the site
	Limit     int
	DateFrom  string
	DateTo    string
}

// RunSummary tallies what one run did. Individual failures never abort a
// run; they end up in the Failed counters instead.
type RunSummary struct {
	RunID            string
	Site             models.Site
	Members          int
	PostsScraped     int
	PostsFailed      int
	ImagesDownloaded int
	ImagesCached     int
	ImagesFailed     int
	Duration         time.Duration
}

// New creates a Scraper from its assembled parts.
func New(cfg *config.Config, db *database.DB, store storage.Adapter, cache *imagecache.Index, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}

	pageClient := fetch.NewClient(cfg.Scrape.PageTimeout, log)
	if cfg.Scrape.UserAgent != "" {
		pageClient.SetHeader("User-Agent", cfg.Scrape.UserAgent)
	}
	imageClient := fetch.NewClient(cfg.Download.Timeout, log)

	scheduler := ratelimit.NewScheduler(ratelimit.Options{
		MinDelay:   cfg.Scrape.MinDelay,
		MaxDelay:   cfg.Scrape.MaxDelay,
		BurstEvery: cfg.Scrape.BurstEvery,
		BurstPause: cfg.Scrape.BurstPause,
	})

	return &Scraper{
		cfg:         cfg,
		db:          db,
		store:       store,
		cache:       cache,
		pageClient:  pageClient,
		imageClient: imageClient,
		scheduler:   scheduler,
		logger:      log,
	}
}

// Run archives the selected members' posts. It returns the summary even
// when the run was cut short by ctx.
func (s *Scraper) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	start := time.Now()

	profile, err := sites.ProfileFor(opts.Site)
	if err != nil {
		return nil, err
	}

	members, err := s.selectMembers(ctx, opts.MemberIDs)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("no members to scrape; seed the roster first")
	}

	summary := &RunSummary{
		RunID:   uuid.NewString(),
		Site:    opts.Site,
		Members: len(members),
	}

	s.logger.InfoWithFields("Archive run starting", map[string]interface{}{
		"run_id":  summary.RunID,
		"site":    string(opts.Site),
		"members": len(members),
	})

	dl := downloader.New(s.imageClient, s.store, s.cache, downloader.Options{
		Concurrency:    s.cfg.Download.Concurrency,
		RetryAttempts:  s.cfg.Download.RetryAttempts,
		RetryBaseDelay: s.cfg.Download.RetryBaseDelay,
	}, s.logger)

	for _, member := range members {
		if err := ctx.Err(); err != nil {
			break
		}
		s.scrapeMember(ctx, profile, member, opts, dl, summary)
	}

	if err := s.cache.Flush(); err != nil {
		s.logger.WithError(err).Warn("Failed to flush image cache index")
	}

	summary.Duration = time.Since(start)

	s.logger.InfoWithFields("Archive run finished", map[string]interface{}{
		"run_id":            summary.RunID,
		"posts_scraped":     summary.PostsScraped,
		"posts_failed":      summary.PostsFailed,
		"images_downloaded": summary.ImagesDownloaded,
		"images_cached":     summary.ImagesCached,
		"images_failed":     summary.ImagesFailed,
		"duration":          summary.Duration,
	})

	return summary, ctx.Err()
}

// Shutdown persists in-memory state. Safe to call from an interrupt
// handler.
func (s *Scraper) Shutdown() {
	if err := s.cache.Flush(); err != nil {
		s.logger.WithError(err).Warn("Failed to flush image cache index during shutdown")
	}
}

func (s *Scraper) selectMembers(ctx context.Context, ids []int) ([]models.Member, error) {
	if len(ids) == 0 {
		return s.db.GetMembers(ctx)
	}

	var members []models.Member
	for _, id := range ids {
		m, err := s.db.GetMember(ctx, id)
		if err != nil {
			return nil, err
		}
		if m == nil {
			// Unknown id: still scrapeable, the listing URL only needs the id.
			members = append(members, models.Member{ID: id, Name: fmt.Sprintf("member-%d", id)})
			continue
		}
		members = append(members, *m)
	}
	return members, nil
}

// scrapeMember archives one member. Failures are tallied, never fatal.
func (s *Scraper) scrapeMember(ctx context.Context, profile *sites.Profile, member models.Member, opts RunOptions, dl *downloader.Downloader, summary *RunSummary) {
	// Each member starts with a fresh pacing window.
	s.scheduler.Reset()

	coll := collector.New(s.pageClient, s.scheduler, profile, s.logger)
	stubs, err := coll.Collect(ctx, member.ID, collector.Options{
		Limit:    opts.Limit,
		DateFrom: opts.DateFrom,
		DateTo:   opts.DateTo,
		MaxPages: s.cfg.Scrape.MaxPages,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"member_id": member.ID,
			"member":    member.Name,
		}).Error("Listing collection failed")
		if len(stubs) == 0 {
			return
		}
	}

	ext := extractor.New(profile, s.logger)

	var jobs []downloader.Job
	postURLByID := make(map[int]string)

	for i, stub := range stubs {
		if ctx.Err() != nil {
			return
		}

		post, err := s.scrapePost(ctx, ext, profile, member, stub)
		if err != nil {
			summary.PostsFailed++
			s.logger.WithError(err).WithField("url", stub.URL).Warn("Post scrape failed")
			continue
		}
		summary.PostsScraped++
		postURLByID[post.ID] = post.URL

		for _, img := range post.Images {
			jobs = append(jobs, downloader.Job{
				URL:        img.ImageURL,
				MemberID:   member.ID,
				MemberName: member.Name,
				PostID:     post.ID,
				Site:       profile.Site,
			})
		}

		logger.LogScrapeProgress(member.Name, i+1, len(stubs))
	}

	if len(jobs) == 0 {
		return
	}

	results := dl.DownloadMany(ctx, jobs)

	// Backfill stored image paths keyed by image URL, grouped per post.
	// Each result carries its own post id, so a shared image URL updates
	// every post that references it, not just one.
	perPost := make(map[string]map[string]string)
	for _, res := range results {
		switch {
		case res.Err != nil:
			summary.ImagesFailed++
			continue
		case res.Cached:
			summary.ImagesCached++
		default:
			summary.ImagesDownloaded++
		}

		postURL := postURLByID[res.Job.PostID]
		if perPost[postURL] == nil {
			perPost[postURL] = make(map[string]string)
		}
		perPost[postURL][res.Job.URL] = res.LocalPath
	}

	for postURL, paths := range perPost {
		if err := s.db.UpdatePostImagePathsByURL(ctx, postURL, paths); err != nil {
			s.logger.WithError(err).WithField("url", postURL).Warn("Failed to record image paths")
		}
	}
}

// scrapePost fetches one detail page, extracts it and stores the post.
// Fields the page does not yield fall back to the listing stub.
func (s *Scraper) scrapePost(ctx context.Context, ext *extractor.Extractor, profile *sites.Profile, member models.Member, stub models.PostStub) (*models.BlogPost, error) {
	if err := s.scheduler.Wait(ctx); err != nil {
		return nil, err
	}

	doc, err := s.pageClient.GetDocument(ctx, stub.URL)
	if err != nil {
		return nil, err
	}

	res := ext.Extract(doc, stub.URL)

	title := res.Title
	if title == "" {
		title = stub.Title
	}
	date := res.Date
	if date == "" {
		date = stub.Date
	}

	post := &models.BlogPost{
		MemberID:   member.ID,
		MemberName: member.Name,
		URL:        stub.URL,
		Title:      title,
		Date:       date,
		Content:    res.Content,
		Site:       profile.Site,
	}
	for _, imgURL := range res.Images {
		post.Images = append(post.Images, models.PostImage{ImageURL: imgURL})
	}

	if err := s.db.UpsertPost(ctx, post); err != nil {
		return nil, err
	}

	return post, nil
}
