// Package members seeds the member roster, either by scraping the site's
// artist page or from a built-in fallback when the page is unreachable.
package members

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"blogarchive/pkg/fetch"
	"blogarchive/pkg/logger"
	"blogarchive/pkg/models"
	"blogarchive/pkg/sites"
)

// Store is the persistence surface the seeder needs.
type Store interface {
	SaveMembers(ctx context.Context, members []models.Member) error
}

// Seeder populates the members table for one site.
type Seeder struct {
	client  *fetch.Client
	profile *sites.Profile
	store   Store
	logger  logger.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(client *fetch.Client, profile *sites.Profile, store Store, log logger.Logger) *Seeder {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Seeder{client: client, profile: profile, store: store, logger: log}
}

// Seed scrapes the roster page and stores the result. When scraping fails
// or yields nothing, the built-in roster for the site is stored instead so
// a fresh database is never left without members.
func (s *Seeder) Seed(ctx context.Context) ([]models.Member, error) {
	roster, err := s.fetchRoster(ctx)
	if err != nil || len(roster) == 0 {
		if err != nil {
			s.logger.WithError(err).Warn("Roster scrape failed, using built-in roster")
		} else {
			s.logger.Warn("Roster page had no members, using built-in roster")
		}
		roster = FallbackRoster(s.profile.Site)
	}

	if err := s.store.SaveMembers(ctx, roster); err != nil {
		return nil, fmt.Errorf("failed to store roster: %w", err)
	}

	s.logger.InfoWithFields("Roster seeded", map[string]interface{}{
		"site":    string(s.profile.Site),
		"members": len(roster),
	})

	return roster, nil
}

var memberIDPattern = regexp.MustCompile(`(?:ct=|artist/)(\d+)`)

func (s *Seeder) fetchRoster(ctx context.Context) ([]models.Member, error) {
	url := s.profile.BaseURL + s.profile.RosterPath
	doc, err := s.client.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.parseRoster(doc), nil
}

func (s *Seeder) parseRoster(doc *goquery.Document) []models.Member {
	var roster []models.Member
	seen := make(map[int]bool)

	doc.Find(s.profile.RosterLink).Each(func(i int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		m := memberIDPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id, err := strconv.Atoi(m[1])
		if err != nil || seen[id] {
			return
		}

		name := cleanText(link.Find(s.profile.RosterName).First().Text())
		if name == "" {
			name = cleanText(link.Text())
		}
		if name == "" {
			return
		}

		seen[id] = true
		roster = append(roster, models.Member{
			ID:      id,
			Name:    name,
			BlogURL: s.profile.ListingURL(id, 0),
		})
	})

	return roster
}

func cleanText(s string) string {
	fields := []rune{}
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '　' {
			space = len(fields) > 0
			continue
		}
		if space {
			fields = append(fields, ' ')
			space = false
		}
		fields = append(fields, r)
	}
	return string(fields)
}
