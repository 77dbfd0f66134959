package hierarchy

import (
	"context"

	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/models"
	"github.com/studiopipe/kitsu-fetch/internal/util/sanitize"
)

// Resolver turns a shot's linkage fields into episode and sequence folder
// names using the project maps and the parent name cache.
type Resolver struct {
	maps  *Maps
	names *NameCache
}

// NewResolver creates a resolver. A nil maps value behaves as empty maps.
func NewResolver(maps *Maps, names *NameCache) *Resolver {
	if maps == nil {
		maps = NewMaps()
	}
	return &Resolver{maps: maps, names: names}
}

// SequenceName returns the raw (unsanitized) sequence name for e.
//
// Priority: embedded sequence_name, the sequence map by sequence_id, the
// sequence map by parent_id, a direct lookup of parent_id, No_Sequence.
func (r *Resolver) SequenceName(ctx context.Context, e models.Entity) string {
	if e.SequenceName != "" {
		return e.SequenceName
	}
	if e.SequenceID != "" {
		if name, ok := r.maps.Sequences[e.SequenceID]; ok {
			return name
		}
	}
	if e.ParentID != "" {
		if name, ok := r.maps.Sequences[e.ParentID]; ok {
			return name
		}
		if r.names != nil {
			return r.names.Resolve(ctx, e.ParentID)
		}
		return FallbackName(e.ParentID)
	}
	return constants.NoSequence
}

// EpisodeAndSequence returns the sanitized episode and sequence folder
// names for e.
func (r *Resolver) EpisodeAndSequence(ctx context.Context, e models.Entity) (string, string) {
	seq := sanitize.Name(r.SequenceName(ctx, e))

	epID := e.EpisodeID
	if epID == "" {
		if key := e.SequenceKey(); key != "" {
			epID = r.maps.SequenceEpisodes[key]
		}
	}

	var ep string
	switch {
	case epID == "":
		ep = constants.NoEpisode
	default:
		if name, ok := r.maps.Episodes[epID]; ok {
			ep = name
		} else if r.names != nil {
			ep = r.names.Resolve(ctx, epID)
		} else {
			ep = FallbackName(epID)
		}
	}
	return sanitize.Name(ep), seq
}
