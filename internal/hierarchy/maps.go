package hierarchy

import (
	"context"
	"fmt"

	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// MapSource lists the episode and sequence structure of a project.
type MapSource interface {
	ListEpisodes(ctx context.Context, projectID string) ([]models.Episode, error)
	ListEpisodeSequences(ctx context.Context, episodeID string) ([]models.Sequence, error)
	ListProjectSequences(ctx context.Context, projectID string) ([]models.Sequence, error)
}

// Maps holds the id to name lookups for one project. They are filled once
// by BuildMaps and only read afterwards.
type Maps struct {
	Sequences        map[string]string // sequence id -> name
	Episodes         map[string]string // episode id -> name
	SequenceEpisodes map[string]string // sequence id -> episode id
}

// NewMaps returns empty maps.
func NewMaps() *Maps {
	return &Maps{
		Sequences:        make(map[string]string),
		Episodes:         make(map[string]string),
		SequenceEpisodes: make(map[string]string),
	}
}

// BuildMaps walks episodes, their sequences and the sequences attached
// directly to the project. Listing errors do not stop the walk: whatever
// could be read is returned together with the errors encountered.
// Episode names discovered here are seeded into names.
func BuildMaps(ctx context.Context, src MapSource, projectID string, names *NameCache, logger *logging.Logger) (*Maps, []error) {
	logger = logging.OrNop(logger)
	m := NewMaps()
	var errs []error

	episodes, err := src.ListEpisodes(ctx, projectID)
	if err != nil {
		errs = append(errs, fmt.Errorf("list episodes: %w", err))
	}
	for _, ep := range episodes {
		m.Episodes[ep.ID] = ep.Name
		if names != nil {
			names.Seed(ep.ID, ep.Name)
		}
		seqs, err := src.ListEpisodeSequences(ctx, ep.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list sequences of episode %s: %w", ep.ID, err))
			continue
		}
		for _, s := range seqs {
			m.Sequences[s.ID] = s.Name
			m.SequenceEpisodes[s.ID] = ep.ID
		}
	}

	seqs, err := src.ListProjectSequences(ctx, projectID)
	if err != nil {
		errs = append(errs, fmt.Errorf("list project sequences: %w", err))
	}
	for _, s := range seqs {
		m.Sequences[s.ID] = s.Name
		epID := s.EpisodeRef()
		if epID == "" {
			continue
		}
		m.SequenceEpisodes[s.ID] = epID
		if _, ok := m.Episodes[epID]; !ok && names != nil {
			m.Episodes[epID] = names.Resolve(ctx, epID)
		}
	}

	logger.Debug().
		Int("episodes", len(m.Episodes)).
		Int("sequences", len(m.Sequences)).
		Int("errors", len(errs)).
		Msg("hierarchy maps built")
	return m, errs
}
