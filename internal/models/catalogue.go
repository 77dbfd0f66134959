// Package models holds the catalogue records read from the tracking service
// and the download queue items derived from them.
package models

// Project is an open production on the tracking service.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NamedRecord is the generic shape returned by the entity-by-id endpoint.
// The category of the record is not known in advance.
type NamedRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Episode groups sequences.
type Episode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Sequence groups shots. Depending on the server version the owning episode
// is exposed either as episode_id or as the generic parent_id.
type Sequence struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	EpisodeID string `json:"episode_id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
}

// EpisodeRef returns the id of the episode this sequence belongs to, or "".
func (s Sequence) EpisodeRef() string {
	if s.EpisodeID != "" {
		return s.EpisodeID
	}
	return s.ParentID
}

// EntityKind distinguishes the two entity variants.
type EntityKind int

const (
	KindShot EntityKind = iota
	KindAsset
)

func (k EntityKind) String() string {
	switch k {
	case KindShot:
		return "Shot"
	case KindAsset:
		return "Asset"
	default:
		return "Unknown"
	}
}

// Entity is a Shot or an Asset. Optional fields are empty strings when the
// server omitted them or sent null. Fields only meaningful for one variant
// are grouped below.
type Entity struct {
	Kind          EntityKind `json:"-"`
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	PreviewFileID string     `json:"preview_file_id,omitempty"`

	// Shot linkage
	SequenceID   string `json:"sequence_id,omitempty"`
	ParentID     string `json:"parent_id,omitempty"`
	EpisodeID    string `json:"episode_id,omitempty"`
	SequenceName string `json:"sequence_name,omitempty"`

	// Asset type
	AssetTypeName string `json:"asset_type_name,omitempty"`
	EntityTypeID  string `json:"entity_type_id,omitempty"`
}

// NewShot and NewAsset tag a decoded record with its variant.
func NewShot(e Entity) Entity {
	e.Kind = KindShot
	return e
}

func NewAsset(e Entity) Entity {
	e.Kind = KindAsset
	return e
}

// SequenceKey is the id used to look the entity's sequence up in the
// hierarchy maps: sequence_id when present, otherwise parent_id.
func (e Entity) SequenceKey() string {
	if e.SequenceID != "" {
		return e.SequenceID
	}
	return e.ParentID
}

// Task belongs to exactly one entity.
type Task struct {
	ID            string `json:"id"`
	EntityID      string `json:"entity_id,omitempty"`
	TaskTypeName  string `json:"task_type_name,omitempty"`
	TaskTypeID    string `json:"task_type_id,omitempty"`
	PreviewFileID string `json:"preview_file_id,omitempty"`
}
