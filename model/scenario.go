package model

import (
	"time"

	"github.com/paulmach/orb"
)

// Evidence modes recorded with every route.
const (
	ModeTagsMultiWells     = "tags_multi_wells"
	ModeTagsAnyWell        = "tags_any_well"
	ModeRealCablesFallback = "real_cables_fallback"
	ModeUnknown            = "unknown"
)

// OwnerCandidate is one scored owner for a route.
type OwnerCandidate struct {
	OwnerID int64 `json:"owner_id"`
	Score   int   `json:"score"`
	Hits    int   `json:"hits"`
}

// OwnerEvidence is the outcome of owner inference for a single route.
type OwnerEvidence struct {
	OwnerID    *int64
	Confidence float64
	Mode       string
	WellIDs    []int64
	Candidates []OwnerCandidate
}

// RouteEvidence is the audit payload persisted next to a route.
type RouteEvidence struct {
	Mode            string           `json:"mode"`
	DirectionIDs    []int64          `json:"direction_ids"`
	StartWellID     int64            `json:"start_well_id"`
	EndWellID       int64            `json:"end_well_id"`
	WellIDs         []int64          `json:"well_ids"`
	OwnerCandidates []OwnerCandidate `json:"owner_candidates"`
}

// RouteDirection is one step of a route's ordered direction breakdown.
type RouteDirection struct {
	Seq         int
	DirectionID int64
	LengthM     float64
}

// Route is a synthesized cable route ready for persistence.
type Route struct {
	ID          int64
	ScenarioID  int64
	OwnerID     *int64
	Confidence  float64
	StartWellID int64
	EndWellID   int64
	LengthM     float64

	// Geometry is nil when fewer than two points could be stitched.
	Geometry orb.LineString

	Evidence   RouteEvidence
	Directions []RouteDirection
}

// ScenarioStats are the aggregate statistics of one scenario.
type ScenarioStats struct {
	TotalUnaccounted int     `json:"total_unaccounted"`
	RoutesTotal      int     `json:"routes_total"`
	OwnersAssigned   int     `json:"owners_assigned"`
	OwnersUnknown    int     `json:"owners_unknown"`
	TotalLengthM     float64 `json:"total_length_m"`
	TotalEdgeUnits   int     `json:"total_edge_units"`
}

// Scenario is the persisted result of one variant of one rebuild.
type Scenario struct {
	ID        int64
	VariantNo int
	BuildID   string
	BuiltAt   time.Time
	BuiltBy   *int64
	Params    map[string]any
	Stats     ScenarioStats
}

// RouteView is a persisted route joined with display metadata.
type RouteView struct {
	Route

	OwnerName        string
	OwnerColor       string
	StartWellNumber  string
	EndWellNumber    string
	DirectionNumbers []string
}

// AuditEntry is a single audit log record.
type AuditEntry struct {
	UserID    *int64
	Action    string
	TableName string
	RecordID  *int64
	NewValues map[string]any
	CreatedAt time.Time
}
