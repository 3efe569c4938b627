package navmesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func assertTrue(t *testing.T, value bool, msg string) {
	t.Helper()
	if !value {
		t.Errorf(msg)
	}
}

func TestNewHeightfield(t *testing.T) {
	bmin := mgl32.Vec3{0, 2, 3}
	bmax := mgl32.Vec3{1, 2, 6}
	width, height := CalcGridSize(bmin, bmax, 1.5)
	hf := NewHeightfield(width, height, bmin, bmax, 1.5, 2)

	msg := "create a heightfield"
	assertTrue(t, hf.Width == width, msg)
	assertTrue(t, hf.Height == height, msg)
	assertTrue(t, hf.Min == bmin, msg)
	assertTrue(t, hf.Max == bmax, msg)
	assertTrue(t, hf.CellSize == 1.5, msg)
	assertTrue(t, hf.CellHeight == 2, msg)
	for z := 0; z < height; z++ {
		for x := 0; x < width; x++ {
			assertTrue(t, hf.ColumnHead(x, z) == NoSpan, msg)
		}
	}
}

func TestAddSpan(t *testing.T) {
	newField := func() *Heightfield {
		return NewHeightfield(1, 1, mgl32.Vec3{}, mgl32.Vec3{1.5, 4, 1.5}, 1.5, 2)
	}
	area := AreaType(42)

	hf := newField()
	msg := "Add a span to an empty heightfield."
	if err := hf.AddSpan(0, 0, 0, 1, area, 1); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
	k := hf.ColumnHead(0, 0)
	assertTrue(t, k != NoSpan, msg)
	assertTrue(t, hf.Span(k).Min == 0, msg)
	assertTrue(t, hf.Span(k).Max == 1, msg)
	assertTrue(t, hf.Span(k).Area == area, msg)

	msg = "Add a span that gets merged with an existing span."
	if err := hf.AddSpan(0, 0, 0, 1, area, 1); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
	k = hf.ColumnHead(0, 0)
	assertTrue(t, hf.Span(k).Min == 0, msg)
	assertTrue(t, hf.Span(k).Max == 1, msg)
	assertTrue(t, hf.Span(k).Area == area, msg)

	if err := hf.AddSpan(0, 0, 1, 2, area, 1); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
	k = hf.ColumnHead(0, 0)
	assertTrue(t, hf.Span(k).Min == 0, msg)
	assertTrue(t, hf.Span(k).Max == 2, msg)
	assertTrue(t, hf.Span(k).Next == NoSpan, msg)

	msg = "Add a span that merges with two spans above and below."
	hf = newField()
	if err := hf.AddSpan(0, 0, 0, 1, area, 1); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
	if err := hf.AddSpan(0, 0, 3, 4, area, 1); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
	k = hf.ColumnHead(0, 0)
	assertTrue(t, hf.Span(k).Max == 1, msg)
	assertTrue(t, hf.Span(k).Next != NoSpan, msg)
	upper := hf.Span(hf.Span(k).Next)
	assertTrue(t, upper.Min == 3, msg)
	assertTrue(t, upper.Max == 4, msg)

	if err := hf.AddSpan(0, 0, 1, 3, area, 1); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
	k = hf.ColumnHead(0, 0)
	assertTrue(t, hf.Span(k).Min == 0, msg)
	assertTrue(t, hf.Span(k).Max == 4, msg)
	assertTrue(t, hf.Span(k).Next == NoSpan, msg)
}

func TestAddSpanOutOfBounds(t *testing.T) {
	hf := NewHeightfield(1, 1, mgl32.Vec3{}, mgl32.Vec3{1.5, 4, 1.5}, 1.5, 2)
	if err := hf.AddSpan(1, 0, 0, 1, WalkableArea, 1); err == nil {
		t.Errorf("out of bounds column must be rejected")
	}
}

func TestWalkableSpanCount(t *testing.T) {
	hf := NewHeightfield(2, 1, mgl32.Vec3{}, mgl32.Vec3{3, 4, 1.5}, 1.5, 2)
	_ = hf.AddSpan(0, 0, 0, 1, WalkableArea, 1)
	_ = hf.AddSpan(0, 0, 3, 4, NullArea, 1)
	_ = hf.AddSpan(1, 0, 0, 1, AreaType(7), 1)
	if got := hf.WalkableSpanCount(); got != 2 {
		t.Errorf("WalkableSpanCount() = %d, want 2", got)
	}
}
