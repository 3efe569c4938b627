package navmesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestErodeWalkableArea(t *testing.T) {
	hf := flatField(t, 5)
	chf, err := BuildCompactHeightfield(2, 1, hf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	chf.ErodeWalkableArea(1)

	cellArea := func(x, z int) AreaType {
		start, _ := chf.cellSpans(x, z)
		return chf.Areas[start]
	}
	assertTrue(t, cellArea(0, 0) == NullArea, "rim is eroded")
	assertTrue(t, cellArea(4, 2) == NullArea, "rim is eroded")
	assertTrue(t, cellArea(2, 2) == WalkableArea, "interior survives")
	assertTrue(t, cellArea(1, 1) == WalkableArea, "cells at the erosion limit survive")
}

func TestErodeWalkableAreaMonotonic(t *testing.T) {
	// Eroding with a larger radius never keeps a span the smaller radius
	// removed.
	build := func(radius int) *CompactHeightfield {
		chf, err := BuildCompactHeightfield(2, 1, flatField(t, 9))
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		chf.ErodeWalkableArea(radius)
		return chf
	}
	narrow := build(1)
	wide := build(2)

	for i := range wide.Areas {
		if wide.Areas[i] != NullArea {
			assertTrue(t, narrow.Areas[i] != NullArea, "larger radius keeps a subset of spans")
		}
	}
}

func TestMarkBoxArea(t *testing.T) {
	hf := flatField(t, 4)
	chf, err := BuildCompactHeightfield(2, 1, hf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Cover the lower-left 2x2 cells only.
	chf.MarkBoxArea(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1.9, 2, 1.9}, 5)

	cellArea := func(x, z int) AreaType {
		start, _ := chf.cellSpans(x, z)
		return chf.Areas[start]
	}
	assertTrue(t, cellArea(0, 0) == 5, "box interior is re-tagged")
	assertTrue(t, cellArea(1, 1) == 5, "box interior is re-tagged")
	assertTrue(t, cellArea(3, 3) == WalkableArea, "outside the box is untouched")
}

func TestMarkCylinderArea(t *testing.T) {
	hf := flatField(t, 5)
	chf, err := BuildCompactHeightfield(2, 1, hf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	chf.MarkCylinderArea(mgl32.Vec3{2.5, 0, 2.5}, 1, 3, 9)

	cellArea := func(x, z int) AreaType {
		start, _ := chf.cellSpans(x, z)
		return chf.Areas[start]
	}
	assertTrue(t, cellArea(2, 2) == 9, "cylinder centre is re-tagged")
	assertTrue(t, cellArea(0, 0) == WalkableArea, "outside the cylinder is untouched")
}

func TestMarkConvexPolyArea(t *testing.T) {
	hf := flatField(t, 5)
	chf, err := BuildCompactHeightfield(2, 1, hf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	vol := &ConvexVolume{
		Vertices: []mgl32.Vec3{
			{1, 0, 1},
			{4, 0, 1},
			{4, 0, 4},
			{1, 0, 4},
		},
		MinY: 0,
		MaxY: 2,
		Area: 7,
	}
	chf.MarkConvexPolyArea(vol)

	cellArea := func(x, z int) AreaType {
		start, _ := chf.cellSpans(x, z)
		return chf.Areas[start]
	}
	assertTrue(t, cellArea(2, 2) == 7, "polygon interior is re-tagged")
	assertTrue(t, cellArea(0, 0) == WalkableArea, "outside the polygon is untouched")
}

func TestMedianFilterWalkableArea(t *testing.T) {
	hf := flatField(t, 5)
	chf, err := BuildCompactHeightfield(2, 1, hf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// A single differing tag in a uniform neighbourhood is voted away.
	start, _ := chf.cellSpans(2, 2)
	chf.Areas[start] = 7
	chf.MedianFilterWalkableArea()
	assertTrue(t, chf.Areas[start] == WalkableArea, "median filter removes the outlier")
}

func TestOffsetPoly(t *testing.T) {
	square := []mgl32.Vec3{
		{0, 0, 0},
		{2, 0, 0},
		{2, 0, 2},
		{0, 0, 2},
	}
	out := OffsetPoly(square, 0.5, 16)
	assertTrue(t, len(out) >= 4, "offset polygon keeps its corners")

	minX, maxX := out[0][0], out[0][0]
	minZ, maxZ := out[0][2], out[0][2]
	for _, v := range out {
		minX = min(minX, v[0])
		maxX = max(maxX, v[0])
		minZ = min(minZ, v[2])
		maxZ = max(maxZ, v[2])
	}
	assertTrue(t, minX < 0 && minZ < 0 && maxX > 2 && maxZ > 2, "positive offset inflates the outline")

	assertTrue(t, OffsetPoly(square, 0.5, 2) == nil, "overflowing maxOutVerts returns nil")
}
