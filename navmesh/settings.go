package navmesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// UpAxis names which axis of the input geometry points up. The pipeline
// works in y-up space; other axes are swizzled on the way in.
type UpAxis uint8

const (
	UpY UpAxis = iota
	UpX
	UpZ
)

// ToYUp rotates a vector from the given up-axis convention into y-up. The
// mappings are proper rotations, so winding is preserved.
func (u UpAxis) ToYUp(v mgl32.Vec3) mgl32.Vec3 {
	switch u {
	case UpZ:
		return mgl32.Vec3{v[0], v[2], -v[1]}
	case UpX:
		return mgl32.Vec3{v[1], v[0], -v[2]}
	default:
		return v
	}
}

// AABB is an axis-aligned bounding box in world units.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NavmeshSettings configures a generation run. Distances are world units;
// voxel sizes are expressed as fractions of the agent dimensions so meshes
// stay comparable across differently sized agents.
type NavmeshSettings struct {
	// CellSizeFraction sizes the xz voxel as a fraction of AgentRadius.
	CellSizeFraction float32
	// CellHeightFraction sizes the vertical voxel as a fraction of
	// AgentHeight.
	CellHeightFraction float32
	AgentHeight        float32
	AgentRadius        float32
	// WalkableClimb is the maximum step height an agent can climb.
	WalkableClimb float32
	// WalkableSlopeAngle is the maximum walkable tilt in radians, clamped
	// to [0, pi/2).
	WalkableSlopeAngle float32
	// MinRegionSize removes regions smaller than its square in spans.
	MinRegionSize int
	// MergeRegionSize merges regions smaller than its square into
	// neighbours where possible.
	MergeRegionSize int
	// EdgeMaxLenFactor caps contour edge length as a multiple of
	// AgentRadius. Zero disables edge splitting.
	EdgeMaxLenFactor       float32
	MaxSimplificationError float32
	// MaxVerticesPerPolygon must be at least 3.
	MaxVerticesPerPolygon int
	// DetailSampleDist sets detail sampling in cell-size multiples; values
	// below 0.9 disable extra sampling.
	DetailSampleDist     float32
	DetailSampleMaxError float32
	TileSize             int
	// Bounds overrides the generated area; nil derives it from the input
	// geometry.
	Bounds       *AABB
	ContourFlags ContourFlags
	// Tiling reserves a border of cells around the grid for seamless tile
	// stitching.
	Tiling      bool
	AreaVolumes []ConvexVolume
	Up          UpAxis
}

// DefaultSettings returns settings tuned for a human-scaled agent.
func DefaultSettings() NavmeshSettings {
	return NavmeshSettings{
		CellSizeFraction:       0.5,
		CellHeightFraction:     0.1,
		AgentHeight:            2.0,
		AgentRadius:            0.6,
		WalkableClimb:          0.4,
		WalkableSlopeAngle:     float32(45 * math.Pi / 180),
		MinRegionSize:          8,
		MergeRegionSize:        20,
		EdgeMaxLenFactor:       20,
		MaxSimplificationError: 1.3,
		MaxVerticesPerPolygon:  6,
		DetailSampleDist:       6,
		DetailSampleMaxError:   1,
		ContourFlags:           TessWallEdges,
		Up:                     UpY,
	}
}

// Validate checks structural constraints that cannot be clamped away.
func (s *NavmeshSettings) Validate() error {
	switch {
	case s.AgentHeight <= 0:
		return &SettingsError{Field: "AgentHeight", Detail: "must be positive"}
	case s.AgentRadius <= 0:
		return &SettingsError{Field: "AgentRadius", Detail: "must be positive"}
	case s.CellSizeFraction <= 0:
		return &SettingsError{Field: "CellSizeFraction", Detail: "must be positive"}
	case s.CellHeightFraction <= 0:
		return &SettingsError{Field: "CellHeightFraction", Detail: "must be positive"}
	case s.WalkableClimb < 0:
		return &SettingsError{Field: "WalkableClimb", Detail: "must not be negative"}
	case s.MaxVerticesPerPolygon < 3:
		return &SettingsError{Field: "MaxVerticesPerPolygon", Detail: "must be at least 3"}
	case s.MinRegionSize < 0:
		return &SettingsError{Field: "MinRegionSize", Detail: "must not be negative"}
	case s.MergeRegionSize < 0:
		return &SettingsError{Field: "MergeRegionSize", Detail: "must not be negative"}
	}
	return nil
}

// clampSlope confines a slope angle to [0, pi/2).
func clampSlope(slope float32) float32 {
	if slope < 0 {
		return 0
	}
	if limit := float32(math.Pi/2) - 1e-4; slope > limit {
		return limit
	}
	return slope
}

// buildConfig is the voxel-space lowering of NavmeshSettings for one run.
type buildConfig struct {
	width, height          int
	cellSize               float32
	cellHeight             float32
	bmin, bmax             mgl32.Vec3
	walkableSlopeAngle     float32
	walkableHeight         int
	walkableClimb          int
	walkableRadius         int
	maxEdgeLen             int
	maxSimplificationError float32
	minRegionArea          int
	mergeRegionArea        int
	maxVertsPerPoly        int
	detailSampleDist       float32
	detailSampleMaxError   float32
	borderSize             int
}

// config lowers the settings against the given world bounds.
func (s *NavmeshSettings) config(bmin, bmax mgl32.Vec3) buildConfig {
	cs := s.CellSizeFraction * s.AgentRadius
	ch := s.CellHeightFraction * s.AgentHeight

	slope := clampSlope(s.WalkableSlopeAngle)

	cfg := buildConfig{
		cellSize:               cs,
		cellHeight:             ch,
		walkableSlopeAngle:     slope,
		walkableHeight:         int(math.Ceil(float64(s.AgentHeight / ch))),
		walkableClimb:          int(math.Floor(float64(s.WalkableClimb / ch))),
		walkableRadius:         int(math.Ceil(float64(s.AgentRadius / cs))),
		maxEdgeLen:             int(s.EdgeMaxLenFactor * s.AgentRadius / cs),
		maxSimplificationError: s.MaxSimplificationError,
		minRegionArea:          s.MinRegionSize * s.MinRegionSize,
		mergeRegionArea:        s.MergeRegionSize * s.MergeRegionSize,
		maxVertsPerPoly:        s.MaxVerticesPerPolygon,
		detailSampleMaxError:   ch * s.DetailSampleMaxError,
	}
	if s.DetailSampleDist >= 0.9 {
		cfg.detailSampleDist = cs * s.DetailSampleDist
	}
	if s.Tiling {
		cfg.borderSize = cfg.walkableRadius + 3
	}

	cfg.width, cfg.height = CalcGridSize(bmin, bmax, cs)
	cfg.width += cfg.borderSize * 2
	cfg.height += cfg.borderSize * 2

	pad := float32(cfg.borderSize) * cs
	cfg.bmin = bmin.Sub(mgl32.Vec3{pad, 0, pad})
	cfg.bmax = bmax.Add(mgl32.Vec3{pad, 0, pad})
	return cfg
}
