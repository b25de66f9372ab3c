package cluster

import (
	"strings"
	"time"

	"github.com/stylehub/coordinator/cmd/coordinator/models"
)

// ChoosePrimary picks the group's cover asset from the full live
// member set. A working preview always outranks file-type heuristics;
// naming and kind only break ties among equally preview-worthy
// candidates. Ladder, first non-empty rung wins:
//
//  1. "art" file, source kind, usable thumbnail
//  2. source kind, usable thumbnail
//  3. any usable thumbnail
//  4. "art" file, source kind, render still pending
//  5. "art" file, source kind
//  6. source kind
//  7. anyone
//
// Within a rung the earliest-created member wins. Returns nil for an
// empty set.
func ChoosePrimary(members []*models.Asset) *models.Asset {
	rungs := []func(*models.Asset) bool{
		func(a *models.Asset) bool {
			return isArtFile(a) && a.Kind.Previewable() && a.HasUsableThumbnail()
		},
		func(a *models.Asset) bool {
			return a.Kind.Previewable() && a.HasUsableThumbnail()
		},
		func(a *models.Asset) bool {
			return a.HasUsableThumbnail()
		},
		func(a *models.Asset) bool {
			return isArtFile(a) && a.Kind.Previewable() && a.ThumbnailError == nil
		},
		func(a *models.Asset) bool {
			return isArtFile(a) && a.Kind.Previewable()
		},
		func(a *models.Asset) bool {
			return a.Kind.Previewable()
		},
		func(a *models.Asset) bool {
			return true
		},
	}

	for _, match := range rungs {
		var best *models.Asset
		for _, m := range members {
			if !match(m) {
				continue
			}
			if best == nil || earlier(m, best) {
				best = m
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// earlier orders by file creation time, falling back to id so the
// choice is stable under input reordering.
func earlier(a, b *models.Asset) bool {
	if !a.FileCreatedAt.Equal(b.FileCreatedAt) {
		return a.FileCreatedAt.Before(b.FileCreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func isArtFile(a *models.Asset) bool {
	return strings.Contains(strings.ToLower(a.Filename), "art")
}

// Aggregates are the cached rollup columns of a style group
type Aggregates struct {
	MemberCount  int
	Primary      *models.Asset
	BestStatus   models.WorkflowStatus
	LatestFileAt *time.Time
}

// Aggregate recomputes a group's rollups from its full live member
// set. Idempotent and safe to call redundantly after any
// membership-affecting event.
func Aggregate(members []*models.Asset) Aggregates {
	agg := Aggregates{
		MemberCount: len(members),
		Primary:     ChoosePrimary(members),
		BestStatus:  models.StatusOther,
	}

	for _, want := range models.StatusPriority {
		for _, m := range members {
			if m.Status == want {
				agg.BestStatus = want
				break
			}
		}
		if agg.BestStatus != models.StatusOther {
			break
		}
	}

	for _, m := range members {
		t := m.FileModifiedAt
		if m.FileCreatedAt.After(t) {
			t = m.FileCreatedAt
		}
		if agg.LatestFileAt == nil || t.After(*agg.LatestFileAt) {
			latest := t
			agg.LatestFileAt = &latest
		}
	}

	return agg
}
