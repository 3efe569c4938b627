package navmesh

import "fmt"

// RasterizationError reports a structural fault while stamping triangles
// into the heightfield. It should never occur for well-formed triangle
// input.
type RasterizationError struct {
	Op     string
	Detail string
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("rasterization: %s: %s", e.Op, e.Detail)
}

// CompactHeightfieldError reports that a column exceeded the packed
// neighbour-link encoding during compaction.
type CompactHeightfieldError struct {
	Layers    int
	MaxLayers int
}

func (e *CompactHeightfieldError) Error() string {
	return fmt.Sprintf("compact heightfield: too many layers %d (max %d)", e.Layers, e.MaxLayers)
}

// SettingsError reports a NavmeshSettings field that fails validation.
type SettingsError struct {
	Field  string
	Detail string
}

func (e *SettingsError) Error() string {
	return "settings: " + e.Field + " " + e.Detail
}

// RegionError reports a failure during watershed region building.
type RegionError struct {
	Detail string
}

func (e *RegionError) Error() string {
	return "region build: " + e.Detail
}

// MeshError reports a structural failure while building the polygon or
// detail navmesh.
type MeshError struct {
	Stage  string
	Detail string
}

func (e *MeshError) Error() string {
	return e.Stage + ": " + e.Detail
}
