package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codehaven/codehaven/pkg/metrics"
)

// maxSlugAttempts bounds the probe loop; past it the allocator gives up
// instead of spinning on a pathologically crowded namespace.
const maxSlugAttempts = 100

var ErrSlugExhausted = errors.New("no free slug after maximum attempts")

// SlugChecker answers whether a candidate slug is free for a user.
type SlugChecker interface {
	IsSlugAvailable(ctx context.Context, userID uuid.UUID, slug string) (bool, error)
}

// SlugAllocator picks a unique URL-safe identifier within a user's
// namespace. Probing is check-then-act; callers serialize per user through
// the store lock when allocation races with inserts.
type SlugAllocator struct {
	checker SlugChecker
}

func NewSlugAllocator(checker SlugChecker) *SlugAllocator {
	return &SlugAllocator{checker: checker}
}

// Generate normalizes baseName and probes slug, slug-1, slug-2, ... until a
// free candidate is found.
func (a *SlugAllocator) Generate(ctx context.Context, userID uuid.UUID, baseName string) (string, error) {
	base := Normalize(baseName)

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		free, err := a.checker.IsSlugAvailable(ctx, userID, candidate)
		if err != nil {
			return "", err
		}
		if free {
			metrics.SlugProbeAttempts.Observe(float64(attempt + 1))
			return candidate, nil
		}
	}

	return "", ErrSlugExhausted
}

// Normalize lowercases baseName, collapses runs of non-alphanumerics into
// single hyphens and trims leading/trailing hyphens. An empty result falls
// back to "sandbox".
func Normalize(baseName string) string {
	var b strings.Builder
	lastHyphen := true // swallow leading separators
	for _, r := range strings.ToLower(baseName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "sandbox"
	}
	return slug
}
