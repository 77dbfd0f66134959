package download

import (
	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// AcceptancePolicy decides whether bytes on disk are a complete file. The
// server sometimes answers 200 with a short error page, so small results
// are treated as broken.
type AcceptancePolicy struct {
	// LargeFileFloor: an existing file above this size is taken as complete,
	// and a download without Content-Length above it is accepted.
	LargeFileFloor int64
	// MinUnknownSize is the weaker floor for downloads without Content-Length.
	MinUnknownSize int64
	// MinRatio is the share of the expected size that must be present.
	MinRatio float64
}

// DefaultAcceptance returns the built-in thresholds.
func DefaultAcceptance() AcceptancePolicy {
	return AcceptanceFromConfig(config.DefaultAcceptance())
}

// AcceptanceFromConfig converts the config representation.
func AcceptanceFromConfig(a config.Acceptance) AcceptancePolicy {
	return AcceptancePolicy{
		LargeFileFloor: a.LargeFileFloor,
		MinUnknownSize: a.MinUnknownSize,
		MinRatio:       a.MinRatio,
	}
}

func (p AcceptancePolicy) meetsRatio(size, expected int64) bool {
	return float64(size) >= p.MinRatio*float64(expected)
}

// Accept validates a finished download of size bytes. contentLength is the
// server-reported length, or a value <= 0 when unknown.
func (p AcceptancePolicy) Accept(size, contentLength int64) bool {
	if contentLength > 0 {
		return p.meetsRatio(size, contentLength)
	}
	if size > p.LargeFileFloor {
		return true
	}
	return size > p.MinUnknownSize
}

// Complete reports whether a file already at the destination can be kept.
// expected is the size recorded by the scan, 0 when unknown.
func (p AcceptancePolicy) Complete(size, expected int64) bool {
	if size > p.LargeFileFloor {
		return true
	}
	return expected > 0 && p.meetsRatio(size, expected)
}

// AcceptanceSet maps categories to policies, with a default for the rest.
type AcceptanceSet struct {
	Default    AcceptancePolicy
	ByCategory map[models.Category]AcceptancePolicy
}

// AcceptanceSetFromConfig builds the set from the [acceptance] sections.
func AcceptanceSetFromConfig(cfg *config.Config) AcceptanceSet {
	set := AcceptanceSet{
		Default:    AcceptanceFromConfig(cfg.Acceptance),
		ByCategory: make(map[models.Category]AcceptancePolicy),
	}
	for _, c := range models.Categories {
		set.ByCategory[c] = AcceptanceFromConfig(cfg.AcceptanceFor(string(c)))
	}
	return set
}

// For returns the policy of category c.
func (s AcceptanceSet) For(c models.Category) AcceptancePolicy {
	if p, ok := s.ByCategory[c]; ok {
		return p
	}
	return s.Default
}
