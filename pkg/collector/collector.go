package collector

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"blogarchive/pkg/fetch"
	"blogarchive/pkg/logger"
	"blogarchive/pkg/models"
	"blogarchive/pkg/ratelimit"
	"blogarchive/pkg/sites"
)

// defaultMaxPages caps listing pagination when the caller does not set a
// limit of its own.
const defaultMaxPages = 100

// Options narrows a collection run. Limit is the maximum number of stubs
// to accumulate; it is ignored while a date range is active, because the
// range fully determines the result set. DateFrom/DateTo are inclusive,
// date-only, in site-native YYYY/MM/DD form. MaxPages caps how many
// listing pages are walked; zero means the default cap.
type Options struct {
	Limit    int
	DateFrom string
	DateTo   string
	MaxPages int
}

// Collector walks a member's paginated listing pages and returns post
// stubs in page order.
type Collector struct {
	client    *fetch.Client
	scheduler *ratelimit.Scheduler
	profile   *sites.Profile
	logger    logger.Logger
}

// New creates a Collector for one site layout.
func New(client *fetch.Client, scheduler *ratelimit.Scheduler, profile *sites.Profile, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Collector{
		client:    client,
		scheduler: scheduler,
		profile:   profile,
		logger:    log,
	}
}

// Collect walks listing pages for the member until a termination rule
// fires and returns the accumulated stubs.
func (c *Collector) Collect(ctx context.Context, memberID int, opts Options) ([]models.PostStub, error) {
	dateFrom, hasFrom := parseDate(opts.DateFrom)
	dateTo, hasTo := parseDate(opts.DateTo)
	rangeActive := hasFrom || hasTo

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var collected []models.PostStub

	for page := 0; page < maxPages; page++ {
		if err := c.scheduler.Wait(ctx); err != nil {
			return collected, err
		}

		url := c.profile.ListingURL(memberID, page)
		doc, err := c.client.GetDocument(ctx, url)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"member_id": memberID,
				"page":      page,
			}).Error("Failed to fetch listing page")
			return collected, err
		}

		stubs := c.parseListing(doc)

		c.logger.DebugWithFields("Listing page parsed", map[string]interface{}{
			"member_id": memberID,
			"page":      page,
			"stubs":     len(stubs),
		})

		// End of pagination.
		if len(stubs) == 0 {
			break
		}

		oldest, oldestOK := oldestDate(stubs)

		for _, stub := range stubs {
			if inRange(stub.Date, dateFrom, hasFrom, dateTo, hasTo) {
				collected = append(collected, stub)
			}
		}

		// Pages are ordered newest first; once the oldest entry on a page
		// predates the cutoff, later pages are strictly older.
		if hasFrom && oldestOK && oldest.Before(dateFrom) {
			break
		}

		if !rangeActive && opts.Limit > 0 && len(collected) >= opts.Limit {
			collected = collected[:opts.Limit]
			break
		}

		// A short page is the last-page heuristic.
		if len(stubs) < c.profile.PageSize {
			break
		}
	}

	c.logger.InfoWithFields("Collection finished", map[string]interface{}{
		"member_id": memberID,
		"stubs":     len(collected),
	})

	return collected, nil
}

// parseListing extracts post stubs from the listing container, ignoring
// anything outside it, and dedupes by URL within the page.
func (c *Collector) parseListing(doc *goquery.Document) []models.PostStub {
	var stubs []models.PostStub
	seen := make(map[string]bool)

	doc.Find(c.profile.ListContainer).Find(c.profile.StubEntry).Each(func(i int, entry *goquery.Selection) {
		href, ok := entry.Find(c.profile.StubLink).First().Attr("href")
		if !ok {
			return
		}
		url := c.profile.ResolveURL(href)
		if url == "" || seen[url] {
			return
		}
		seen[url] = true

		stubs = append(stubs, models.PostStub{
			URL:   url,
			Title: cleanText(entry.Find(c.profile.StubTitle).First().Text()),
			Date:  normalizeDate(entry.Find(c.profile.StubDate).First().Text()),
		})
	})

	return stubs
}

var datePattern = regexp.MustCompile(`(\d{4})[./-](\d{1,2})[./-](\d{1,2})`)

// normalizeDate pulls the first date-like token out of text and returns it
// in YYYY/MM/DD form; unrecognized text passes through unchanged so that a
// malformed date is never silently dropped.
func normalizeDate(text string) string {
	text = strings.TrimSpace(text)
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	t, ok := buildDate(m[1], m[2], m[3])
	if !ok {
		return text
	}
	return t.Format("2006/01/02")
}

// parseDate parses a site-native date string to a date-only time value.
func parseDate(s string) (time.Time, bool) {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	return buildDate(m[1], m[2], m[3])
}

func buildDate(y, mo, d string) (time.Time, bool) {
	t, err := time.Parse("2006/1/2", y+"/"+mo+"/"+d)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// inRange applies the inclusive date filter. A stub whose date cannot be
// parsed is treated as in-range rather than silently dropped.
func inRange(date string, from time.Time, hasFrom bool, to time.Time, hasTo bool) bool {
	t, ok := parseDate(date)
	if !ok {
		return true
	}
	if hasFrom && t.Before(from) {
		return false
	}
	if hasTo && t.After(to) {
		return false
	}
	return true
}

// oldestDate returns the oldest parseable date on a page.
func oldestDate(stubs []models.PostStub) (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, s := range stubs {
		t, ok := parseDate(s.Date)
		if !ok {
			continue
		}
		if !found || t.Before(oldest) {
			oldest = t
			found = true
		}
	}
	return oldest, found
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
