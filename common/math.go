package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Numeric covers the scalar types the grid math runs on.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~float32 | ~float64
}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp[T Numeric](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Abs returns the absolute value.
func Abs[T ~int | ~int16 | ~int32 | ~int64 | ~float32 | ~float64](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// Sqr returns a*a.
func Sqr[T Numeric](a T) T {
	return a * a
}

// Vmin returns the component-wise minimum of two vectors.
func Vmin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

// Vmax returns the component-wise maximum of two vectors.
func Vmax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
}

// OverlapBounds reports whether two axis-aligned boxes intersect.
func OverlapBounds(aMin, aMax, bMin, bMax mgl32.Vec3) bool {
	return aMin[0] <= bMax[0] && aMax[0] >= bMin[0] &&
		aMin[1] <= bMax[1] && aMax[1] >= bMin[1] &&
		aMin[2] <= bMax[2] && aMax[2] >= bMin[2]
}

// Grid neighbour directions are indexed 0..3: (-1,0), (0,1), (1,0), (0,-1).
var (
	dirOffsetX = [4]int{-1, 0, 1, 0}
	dirOffsetZ = [4]int{0, 1, 0, -1}
)

// DirOffsetX returns the x offset of the given cardinal direction.
func DirOffsetX(dir int) int {
	return dirOffsetX[dir&0x3]
}

// DirOffsetZ returns the z offset of the given cardinal direction.
func DirOffsetZ(dir int) int {
	return dirOffsetZ[dir&0x3]
}

var offsetDirs = [5]int{3, 0, -1, 2, 1}

// DirForOffset is the inverse of DirOffsetX/DirOffsetZ for unit offsets.
func DirForOffset(x, z int) int {
	return offsetDirs[((z+1)<<1)+x]
}

// NextPow2 rounds v up to the next power of two.
func NextPow2(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
