package navmesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

func TestBuildDetailMeshFlatSquare(t *testing.T) {
	chf, pmesh := flatPolyMesh(t, 8)
	dmesh, err := BuildDetailMesh(pmesh, chf, 0, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("detail mesh: %v", err)
	}

	if len(dmesh.Meshes) != pmesh.PolygonCount {
		t.Fatalf("one submesh per polygon: got %d, want %d", len(dmesh.Meshes), pmesh.PolygonCount)
	}
	for _, sub := range dmesh.Meshes {
		baseVert, nverts := int(sub[0]), int(sub[1])
		baseTri, ntris := int(sub[2]), int(sub[3])
		assertTrue(t, nverts >= 3, "submesh has a surface")
		assertTrue(t, ntris >= 1, "submesh has triangles")
		assertTrue(t, baseVert+nverts <= len(dmesh.Vertices), "vertex range is in bounds")
		assertTrue(t, baseTri+ntris <= len(dmesh.Triangles), "triangle range is in bounds")
		for _, tri := range dmesh.Triangles[baseTri : baseTri+ntris] {
			for k := 0; k < 3; k++ {
				assertTrue(t, int(tri[k]) < nverts, "triangle indices stay inside the submesh")
			}
		}
	}

	// A flat floor stays flat: all detail vertices share one height.
	if len(dmesh.Vertices) > 0 {
		y := dmesh.Vertices[0][1]
		for _, v := range dmesh.Vertices {
			assertTrue(t, absf(v[1]-y) < 1e-3, "flat input yields a flat detail mesh")
		}
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestBuildDetailMeshSampled(t *testing.T) {
	chf, pmesh := flatPolyMesh(t, 8)
	dmesh, err := BuildDetailMesh(pmesh, chf, 1.0, 0.1, zap.NewNop())
	if err != nil {
		t.Fatalf("detail mesh: %v", err)
	}
	assertTrue(t, len(dmesh.Meshes) == pmesh.PolygonCount, "one submesh per polygon")
	for _, sub := range dmesh.Meshes {
		assertTrue(t, int(sub[1]) <= detailMaxVerts, "vertex budget per submesh")
		assertTrue(t, int(sub[3]) <= detailMaxTris, "triangle budget per submesh")
	}
}

func TestBuildDetailMeshEmpty(t *testing.T) {
	empty := &PolygonNavmesh{NVP: 6}
	dmesh, err := BuildDetailMesh(empty, &CompactHeightfield{}, 0, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("detail mesh: %v", err)
	}
	assertTrue(t, len(dmesh.Meshes) == 0, "empty input yields an empty detail mesh")
}

func TestPolyMinExtent(t *testing.T) {
	square := []mgl32.Vec3{
		{0, 0, 0},
		{2, 0, 0},
		{2, 0, 2},
		{0, 0, 2},
	}
	got := polyMinExtent(square)
	assertTrue(t, absf(got-2) < 1e-4, "square extent is its side length")

	sliver := []mgl32.Vec3{
		{0, 0, 0},
		{4, 0, 0},
		{4, 0, 0.1},
		{0, 0, 0.1},
	}
	got = polyMinExtent(sliver)
	assertTrue(t, got < 0.2, "sliver extent is its thickness")
}

func TestCircumCircle(t *testing.T) {
	c, r, ok := circumCircle(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{2, 0, 0}, mgl32.Vec3{0, 0, 2})
	assertTrue(t, ok, "non-degenerate triangle has a circumcircle")
	assertTrue(t, absf(c[0]-1) < 1e-3 && absf(c[2]-1) < 1e-3, "circumcentre of a right triangle")
	assertTrue(t, absf(r-float32(1.41421356)) < 1e-2, "circumradius of a right triangle")

	_, _, ok = circumCircle(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{2, 0, 0})
	assertTrue(t, !ok, "collinear points have no circumcircle")
}
