package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestClamp(t *testing.T) {
	if Clamp(2, 0, 1) != 1 {
		t.Errorf("Higher than range error")
	}
	if Clamp(1, 0, 2) != 1 {
		t.Errorf("Within range error")
	}
	if Clamp(0, 1, 2) != 1 {
		t.Errorf("Lower than range error")
	}
	if Clamp(float32(0.25), 0, 1) != 0.25 {
		t.Errorf("Float within range error")
	}
}

func TestSqr(t *testing.T) {
	if Sqr(2) != 4 {
		t.Errorf("Sqr squares a number")
	}
	if Sqr(-4) != 16 {
		t.Errorf("Sqr squares a number")
	}
	if Sqr(0) != 0 {
		t.Errorf("Sqr squares a number")
	}
}

func TestAbs(t *testing.T) {
	if Abs(-3) != 3 {
		t.Errorf("Abs of negative")
	}
	if Abs(3) != 3 {
		t.Errorf("Abs of positive")
	}
	if Abs(float32(-1.5)) != 1.5 {
		t.Errorf("Abs of negative float")
	}
}

func TestVminVmax(t *testing.T) {
	a := mgl32.Vec3{1, 5, 3}
	b := mgl32.Vec3{2, 4, 0}
	lo := Vmin(a, b)
	hi := Vmax(a, b)
	if lo != (mgl32.Vec3{1, 4, 0}) {
		t.Errorf("component-wise min")
	}
	if hi != (mgl32.Vec3{2, 5, 3}) {
		t.Errorf("component-wise max")
	}
}

func TestOverlapBounds(t *testing.T) {
	aMin := mgl32.Vec3{0, 0, 0}
	aMax := mgl32.Vec3{1, 1, 1}
	if !OverlapBounds(aMin, aMax, mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{2, 2, 2}) {
		t.Errorf("intersecting boxes overlap")
	}
	if !OverlapBounds(aMin, aMax, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{2, 1, 1}) {
		t.Errorf("touching boxes overlap")
	}
	if OverlapBounds(aMin, aMax, mgl32.Vec3{1.5, 0, 0}, mgl32.Vec3{2, 1, 1}) {
		t.Errorf("disjoint boxes do not overlap")
	}
}

func TestDirOffsets(t *testing.T) {
	seen := map[[2]int]bool{}
	for dir := 0; dir < 4; dir++ {
		x := DirOffsetX(dir)
		z := DirOffsetZ(dir)
		if Abs(x)+Abs(z) != 1 {
			t.Errorf("direction %d is not a unit cardinal step", dir)
		}
		seen[[2]int{x, z}] = true
		if DirForOffset(x, z) != dir {
			t.Errorf("DirForOffset does not invert DirOffset for %d", dir)
		}
	}
	if len(seen) != 4 {
		t.Errorf("directions are not distinct")
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[uint32]uint32{1: 1, 2: 2, 3: 4, 5: 8, 16: 16, 17: 32}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Errorf("NextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
