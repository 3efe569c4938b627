package navmesh

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func flatTri() *TriMesh {
	return &TriMesh{
		Vertices: []mgl32.Vec3{
			{0, 0, 0},
			{1, 0, 0},
			{0, 0, -1},
		},
		Indices:   [][3]uint32{{0, 1, 2}},
		AreaTypes: []AreaType{NullArea},
	}
}

func TestMarkWalkableTriangles(t *testing.T) {
	slope := float32(45 * math.Pi / 180)

	m := flatTri()
	m.MarkWalkableTriangles(slope)
	if m.AreaTypes[0] != WalkableArea {
		t.Errorf("One walkable triangle")
	}

	m = flatTri()
	m.Indices[0] = [3]uint32{0, 2, 1}
	m.MarkWalkableTriangles(slope)
	if m.AreaTypes[0] != NullArea {
		t.Errorf("One non-walkable triangle")
	}

	m = flatTri()
	m.Indices[0] = [3]uint32{0, 2, 1}
	m.AreaTypes[0] = 42
	m.MarkWalkableTriangles(slope)
	if m.AreaTypes[0] != 42 {
		t.Errorf("Non-walkable triangle area id's are not modified")
	}

	m = flatTri()
	m.MarkWalkableTriangles(0)
	if m.AreaTypes[0] != NullArea {
		t.Errorf("Slopes equal to the max slope are considered unwalkable.")
	}
}

func TestClearUnwalkableTriangles(t *testing.T) {
	slope := float32(45 * math.Pi / 180)

	m := flatTri()
	m.Indices[0] = [3]uint32{0, 2, 1}
	m.AreaTypes[0] = 42
	m.ClearUnwalkableTriangles(slope)
	if m.AreaTypes[0] != NullArea {
		t.Errorf("Sets area ID of unwalkable triangle to the null area")
	}

	m = flatTri()
	m.AreaTypes[0] = 42
	m.ClearUnwalkableTriangles(slope)
	if m.AreaTypes[0] != 42 {
		t.Errorf("Does not modify walkable triangle area ID's")
	}

	m = flatTri()
	m.AreaTypes[0] = 42
	m.ClearUnwalkableTriangles(0)
	if m.AreaTypes[0] != NullArea {
		t.Errorf("Slopes equal to the max slope are cleared")
	}
}

func TestCalcGridSize(t *testing.T) {
	bmin := mgl32.Vec3{0, 2, 3}
	bmax := mgl32.Vec3{1, 2, 6}
	width, height := CalcGridSize(bmin, bmax, 1.5)
	if width != 1 {
		t.Errorf("computes the size of an x axis grid")
	}
	if height != 2 {
		t.Errorf("computes the size of a z axis grid")
	}
}

func TestComputeAABB(t *testing.T) {
	m := &TriMesh{Vertices: []mgl32.Vec3{{1, 2, 3}, {0, 2, 5}}}
	bmin, bmax, ok := m.ComputeAABB()
	assertTrue(t, ok, "bounds of two vectors")
	assertTrue(t, bmin == mgl32.Vec3{0, 2, 3}, "bounds of two vectors")
	assertTrue(t, bmax == mgl32.Vec3{1, 2, 5}, "bounds of two vectors")

	empty := &TriMesh{}
	_, _, ok = empty.ComputeAABB()
	assertTrue(t, !ok, "empty mesh has no bounds")
}

func TestExtend(t *testing.T) {
	a := flatTri()
	b := flatTri()
	a.Extend(b)
	if len(a.Vertices) != 6 || len(a.Indices) != 2 || len(a.AreaTypes) != 2 {
		t.Fatalf("extend appends geometry")
	}
	if a.Indices[1] != [3]uint32{3, 4, 5} {
		t.Errorf("extend re-bases indices")
	}
}
