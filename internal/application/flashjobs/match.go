package flashjobs

import (
	"sort"
	"strings"
	"time"

	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/pkg/geo"

	"github.com/google/uuid"
)

// Candidate is a handyman looking for work.
type Candidate struct {
	ID         uuid.UUID
	Location   geo.Point
	Skills     []string
	Categories []string
}

// CandidateFromProfile builds a Candidate from a directory profile.
func CandidateFromProfile(p *domain.Profile) Candidate {
	return Candidate{
		ID:         p.UserID,
		Location:   geo.Point{Lat: p.Lat, Lng: p.Lng},
		Skills:     p.Skills,
		Categories: p.Categories,
	}
}

type Match struct {
	Job        domain.Listing `json:"job"`
	DistanceKm float64        `json:"distance_km"`
}

// MatchCandidates keeps the open, unexpired jobs c can take: c is inside the
// job's radius, shares a skill and works in the job's category. A NaN
// distance never counts as inside. Results are
// ordered by urgency (highest first), then nearest deadline, then id.
func MatchCandidates(jobs []domain.Listing, c Candidate, now time.Time) []Match {
	out := []Match{}
	for i := range jobs {
		j := &jobs[i]
		if j.Kind != domain.KindFlashJob || j.FlashJob == nil {
			continue
		}
		if j.Status != domain.StatusOpen || j.WindowElapsed(now) {
			continue
		}
		dist := geo.DistanceKm(c.Location, geo.FromLocation(j.Location))
		if !(dist <= j.TargetRadiusKm) {
			continue
		}
		if !skillsMatch(j.FlashJob.RequiredSkills, c.Skills) {
			continue
		}
		if !categoryMatch(j.Category, c.Categories) {
			continue
		}
		out = append(out, Match{Job: *j, DistanceKm: dist})
	}
	sort.SliceStable(out, func(a, b int) bool {
		ja, jb := out[a].Job, out[b].Job
		if ja.FlashJob.UrgencyTier != jb.FlashJob.UrgencyTier {
			return ja.FlashJob.UrgencyTier > jb.FlashJob.UrgencyTier
		}
		da, db := ja.ValidUntil(), jb.ValidUntil()
		if !da.Equal(db) {
			return da.Before(db)
		}
		return ja.ID.String() < jb.ID.String()
	})
	return out
}

// skillsMatch is a case-insensitive substring match in either direction,
// so "plumb" matches "Plumber". A job with no required skills matches anyone.
func skillsMatch(required, have []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		for _, h := range have {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if strings.Contains(h, r) || strings.Contains(r, h) {
				return true
			}
		}
	}
	return false
}

// categoryMatch treats an empty category list as a wildcard.
func categoryMatch(category string, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}
