// Package navmesh turns arbitrary triangle soup into a walkable polygon mesh
// suitable for pathfinding. The pipeline voxelizes the input into a
// heightfield, filters unwalkable spans, partitions the open space into
// regions with a watershed over a distance field, traces and simplifies
// region contours, and triangulates them into a convex polygon mesh plus a
// height-accurate detail mesh.
package navmesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"navgen/common"
)

// AreaType tags a triangle or span with a walkability class. Zero means
// unwalkable, 255 is the default walkable area, other values are
// user-defined cost classes.
type AreaType uint8

const (
	// NullArea marks unwalkable geometry.
	NullArea AreaType = 0
	// WalkableArea is the default walkable tag.
	WalkableArea AreaType = 255
)

// Walkable reports whether the tag allows standing on the surface.
func (a AreaType) Walkable() bool {
	return a != NullArea
}

// mergeArea combines the tags of two merged spans. Higher values win.
func mergeArea(a, b AreaType) AreaType {
	return max(a, b)
}

// TriMesh is the immutable input geometry: a triangle list with one area tag
// per triangle. len(AreaTypes) must equal len(Indices).
type TriMesh struct {
	Vertices  []mgl32.Vec3
	Indices   [][3]uint32
	AreaTypes []AreaType
}

// Extend appends other to m, re-basing other's indices onto m's vertex pool.
func (m *TriMesh) Extend(other *TriMesh) {
	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, tri := range other.Indices {
		m.Indices = append(m.Indices, [3]uint32{tri[0] + base, tri[1] + base, tri[2] + base})
	}
	m.AreaTypes = append(m.AreaTypes, other.AreaTypes...)
}

// ComputeAABB returns the bounding box of the vertices. ok is false when the
// mesh has no vertices.
func (m *TriMesh) ComputeAABB() (bmin, bmax mgl32.Vec3, ok bool) {
	if len(m.Vertices) == 0 {
		return bmin, bmax, false
	}
	bmin = m.Vertices[0]
	bmax = m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		bmin = common.Vmin(bmin, v)
		bmax = common.Vmax(bmax, v)
	}
	return bmin, bmax, true
}

func triNormal(v0, v1, v2 mgl32.Vec3) mgl32.Vec3 {
	e0 := v1.Sub(v0)
	e1 := v2.Sub(v0)
	n := e0.Cross(e1)
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	}
	return n
}

// MarkWalkableTriangles tags every triangle whose slope from the up axis is
// within walkableSlopeAngle (radians) as walkable. Steeper triangles keep
// their current tag.
func (m *TriMesh) MarkWalkableTriangles(walkableSlopeAngle float32) {
	walkableThr := float32(math.Cos(float64(walkableSlopeAngle)))
	for i, tri := range m.Indices {
		n := triNormal(m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]])
		if n.Y() > walkableThr {
			m.AreaTypes[i] = WalkableArea
		}
	}
}

// ClearUnwalkableTriangles resets the tag of every triangle steeper than
// walkableSlopeAngle (radians) to NullArea, leaving walkable tags intact.
func (m *TriMesh) ClearUnwalkableTriangles(walkableSlopeAngle float32) {
	walkableThr := float32(math.Cos(float64(walkableSlopeAngle)))
	for i, tri := range m.Indices {
		n := triNormal(m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]])
		if n.Y() <= walkableThr {
			m.AreaTypes[i] = NullArea
		}
	}
}

// CalcGridSize returns the heightfield dimensions covering the given bounds
// at the given cell size.
func CalcGridSize(bmin, bmax mgl32.Vec3, cellSize float32) (width, height int) {
	width = int((bmax[0]-bmin[0])/cellSize + 0.5)
	height = int((bmax[2]-bmin[2])/cellSize + 0.5)
	return width, height
}
