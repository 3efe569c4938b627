package navmesh

import (
	"testing"

	"go.uber.org/zap"
)

func flatPolyMesh(t *testing.T, size float32) (*CompactHeightfield, *PolygonNavmesh) {
	t.Helper()
	chf, cset := flatContours(t, size)
	pmesh, err := BuildPolyMesh(cset, 6, zap.NewNop())
	if err != nil {
		t.Fatalf("poly mesh: %v", err)
	}
	return chf, pmesh
}

func TestBuildPolyMeshFlatSquare(t *testing.T) {
	_, pmesh := flatPolyMesh(t, 8)

	if pmesh.PolygonCount != 1 {
		t.Fatalf("flat square merges into 1 polygon, got %d", pmesh.PolygonCount)
	}
	assertTrue(t, pmesh.VertexCount == 4, "square has 4 vertices")
	assertTrue(t, pmesh.NVP == 6, "vertex budget is carried")

	poly := pmesh.polygon(0)
	assertTrue(t, countPolyVerts(poly, pmesh.NVP) == 4, "polygon uses all 4 corners")
	for i := 0; i < 4; i++ {
		assertTrue(t, int(poly[i]) < pmesh.VertexCount, "vertex indices are in range")
	}
	for i := 4; i < pmesh.NVP; i++ {
		assertTrue(t, poly[i] == NullIndex, "unused slots hold the null index")
	}
	// No neighbours and no portals: the adjacency half stays null.
	for i := pmesh.NVP; i < pmesh.NVP*2; i++ {
		assertTrue(t, poly[i] == NullIndex, "single polygon has no adjacency")
	}

	assertTrue(t, pmesh.Regions[0] != NoRegion, "polygon keeps its region")
	assertTrue(t, pmesh.Areas[0] == WalkableArea, "polygon keeps its area")
	assertTrue(t, len(pmesh.Flags) == pmesh.PolygonCount, "flags are allocated per polygon")
}

func TestBuildPolyMeshAdjacency(t *testing.T) {
	// Tessellated edges force several polygons that must share edges.
	chf := flatCompact(t, 8)
	chf.BuildDistanceField()
	if err := chf.BuildRegions(0, 4, 8, zap.NewNop()); err != nil {
		t.Fatalf("regions: %v", err)
	}
	cset, err := chf.BuildContours(1.0, 4, TessWallEdges)
	if err != nil {
		t.Fatalf("contours: %v", err)
	}
	pmesh, err := BuildPolyMesh(cset, 6, zap.NewNop())
	if err != nil {
		t.Fatalf("poly mesh: %v", err)
	}
	if pmesh.PolygonCount < 2 {
		t.Fatalf("tessellated square yields several polygons, got %d", pmesh.PolygonCount)
	}

	shared := 0
	for i := 0; i < pmesh.PolygonCount; i++ {
		poly := pmesh.polygon(i)
		for j := 0; j < pmesh.NVP; j++ {
			if poly[j] == NullIndex {
				break
			}
			assertTrue(t, int(poly[j]) < pmesh.VertexCount, "vertex indices are in range")
			if adj := poly[pmesh.NVP+j]; adj != NullIndex {
				assertTrue(t, int(adj) < pmesh.PolygonCount, "adjacency points at a real polygon")
				shared++
			}
		}
	}
	assertTrue(t, shared >= 2, "interior edges are linked both ways")
}

func TestTriangulateSquare(t *testing.T) {
	verts := []ContourVertex{
		{0, 0, 0, 0},
		{4, 0, 0, 0},
		{4, 0, 4, 0},
		{0, 0, 4, 0},
	}
	indices := []uint32{3, 2, 1, 0}
	var tris []uint32
	n := triangulate(verts, indices, &tris)
	if n != 2 {
		t.Fatalf("square triangulates into 2 triangles, got %d", n)
	}
	used := map[uint32]bool{}
	for _, idx := range tris[:n*3] {
		assertTrue(t, idx < 4, "triangulation uses input vertices")
		used[idx] = true
	}
	assertTrue(t, len(used) == 4, "all corners appear in the triangulation")
}

func TestCountPolyVerts(t *testing.T) {
	poly := []uint16{0, 1, 2, NullIndex, NullIndex, NullIndex}
	if countPolyVerts(poly, 6) != 3 {
		t.Errorf("counts up to the first null index")
	}
}

func TestVertexHashSize(t *testing.T) {
	cases := map[int]int{0: 16, 4: 16, 16: 16, 17: 32, 1000: 1024, 1 << 16: maxVertexBuckets}
	for in, want := range cases {
		if got := vertexHashSize(in); got != want {
			t.Errorf("vertexHashSize(%d) = %d, want %d", in, got, want)
		}
	}
}
