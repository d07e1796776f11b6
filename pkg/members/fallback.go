package members

import (
	"blogarchive/pkg/models"
	"blogarchive/pkg/sites"
)

// FallbackRoster returns the built-in member list for a site. The ids are
// the sites' native blog ids (the ct query parameter), so a roster seeded
// offline still points at the right listing pages.
func FallbackRoster(site models.Site) []models.Member {
	switch site {
	case models.SiteCurrent:
		return rosterFor(site, []rosterEntry{
			{2, "加藤史帆"},
			{4, "佐々木久美"},
			{5, "佐々木美玲"},
			{6, "高瀬愛奈"},
			{7, "高本彩花"},
			{11, "金村美玖"},
			{12, "河田陽菜"},
			{13, "小坂菜緒"},
			{14, "富田鈴花"},
			{16, "丹生明里"},
			{18, "濱岸ひより"},
			{20, "松田好花"},
			{21, "宮田愛萌"},
			{23, "上村ひなの"},
		})
	case models.SiteLegacy:
		return rosterFor(site, []rosterEntry{
			{3, "上村莉菜"},
			{5, "小池美波"},
			{6, "小林由依"},
			{8, "齋藤冬優花"},
			{11, "菅井友香"},
			{15, "土生瑞穂"},
			{21, "渡辺梨加"},
			{22, "渡邉理佐"},
		})
	default:
		return nil
	}
}

type rosterEntry struct {
	id   int
	name string
}

func rosterFor(site models.Site, entries []rosterEntry) []models.Member {
	profile, err := sites.ProfileFor(site)
	members := make([]models.Member, 0, len(entries))
	for _, e := range entries {
		m := models.Member{ID: e.id, Name: e.name}
		if err == nil {
			m.BlogURL = profile.ListingURL(e.id, 0)
		}
		members = append(members, m)
	}
	return members
}
