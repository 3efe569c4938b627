package navmesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func span(hf *Heightfield, x, z int) *Span {
	k := hf.ColumnHead(x, z)
	if k == NoSpan {
		return nil
	}
	return hf.Span(k)
}

func TestRasterizeTriangle(t *testing.T) {
	mesh := &TriMesh{
		Vertices: []mgl32.Vec3{
			{0, 0, 0},
			{1, 0, 0},
			{0, 0, -1},
		},
		Indices:   [][3]uint32{{0, 1, 2}},
		AreaTypes: []AreaType{42},
	}
	bmin, bmax, _ := mesh.ComputeAABB()
	width, height := CalcGridSize(bmin, bmax, 0.5)
	hf := NewHeightfield(width, height, bmin, bmax, 0.5, 0.5)

	msg := "Rasterize a triangle"
	if err := RasterizeTriangles(hf, mesh, 1); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}

	assertTrue(t, span(hf, 0, 0) != nil, msg)
	assertTrue(t, span(hf, 1, 0) == nil, msg)
	assertTrue(t, span(hf, 0, 1) != nil, msg)
	assertTrue(t, span(hf, 1, 1) != nil, msg)

	for _, at := range [][2]int{{0, 0}, {0, 1}, {1, 1}} {
		s := span(hf, at[0], at[1])
		assertTrue(t, s.Min == 0, msg)
		assertTrue(t, s.Max == 1, msg)
		assertTrue(t, s.Area == 42, msg)
		assertTrue(t, s.Next == NoSpan, msg)
	}
}

func TestRasterizeTriangleOutsideBounds(t *testing.T) {
	// A triangle whose bounding box overlaps the heightfield but whose
	// surface lies outside it must leave the field untouched.
	bmin := mgl32.Vec3{0, 0, 0}
	bmax := mgl32.Vec3{10, 10, 10}
	hf := NewHeightfield(10, 10, bmin, bmax, 1, 1)

	mesh := &TriMesh{
		Vertices: []mgl32.Vec3{
			{-10, 5.5, -10},
			{-10, 5.5, 3},
			{3, 5.5, -10},
		},
		Indices:   [][3]uint32{{0, 1, 2}},
		AreaTypes: []AreaType{42},
	}
	if err := RasterizeTriangles(hf, mesh, 1); err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	for z := 0; z < 10; z++ {
		for x := 0; x < 10; x++ {
			assertTrue(t, span(hf, x, z) == nil, "no spans for a non-overlapping triangle")
		}
	}
}

func TestRasterizeSkinnyTriangles(t *testing.T) {
	// Nearly degenerate slivers along either axis must clip without error.
	for _, verts := range [][]mgl32.Vec3{
		{
			{5, 0, 0.005}, {5, 0, -0.005}, {-5, 0, 0.005},
			{-5, 0, 0.005}, {5, 0, -0.005}, {-5, 0, -0.005},
		},
		{
			{0.005, 0, 5}, {-0.005, 0, 5}, {0.005, 0, -5},
			{0.005, 0, -5}, {-0.005, 0, 5}, {-0.005, 0, -5},
		},
	} {
		mesh := &TriMesh{
			Vertices:  verts,
			Indices:   [][3]uint32{{0, 1, 2}, {3, 4, 5}},
			AreaTypes: []AreaType{42, 42},
		}
		bmin, bmax, _ := mesh.ComputeAABB()
		width, height := CalcGridSize(bmin, bmax, 1)
		hf := NewHeightfield(width, height, bmin, bmax, 1, 1)
		if err := RasterizeTriangles(hf, mesh, 1); err != nil {
			t.Fatalf("skinny triangle: %v", err)
		}
	}
}

func TestRasterizeAreaMerge(t *testing.T) {
	// Two coplanar triangles with different areas covering the same cells:
	// the higher area tag wins when tops are within the merge threshold.
	mesh := &TriMesh{
		Vertices: []mgl32.Vec3{
			{0, 0, 0},
			{1, 0, 0},
			{1, 0, 1},
			{0, 0, 1},
		},
		Indices:   [][3]uint32{{0, 2, 1}, {0, 3, 2}},
		AreaTypes: []AreaType{1, 2},
	}
	bmin, bmax, _ := mesh.ComputeAABB()
	width, height := CalcGridSize(bmin, bmax, 0.5)
	hf := NewHeightfield(width, height, bmin, bmax, 0.5, 0.5)
	if err := RasterizeTriangles(hf, mesh, 1); err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	found := false
	for z := 0; z < height; z++ {
		for x := 0; x < width; x++ {
			if s := span(hf, x, z); s != nil && s.Area == 2 {
				found = true
			}
		}
	}
	assertTrue(t, found, "merged spans keep the max area tag")
}
