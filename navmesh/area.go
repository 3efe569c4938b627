package navmesh

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"navgen/common"
)

const epsilon = 1e-6

// ConvexVolume carves a custom area tag into the walkable surface: a 2D
// convex polygon on the xz plane extruded over [MinY, MaxY].
type ConvexVolume struct {
	Vertices []mgl32.Vec3
	MinY     float32
	MaxY     float32
	Area     AreaType
}

// ErodeWalkableArea shrinks the walkable surface inward by radius cells so
// agents do not clip through nearby obstacles. Boundary distance is relaxed
// with a two-pass chamfer propagation (cost 2 cardinal, 3 diagonal); spans
// closer than 2*radius to a boundary become unwalkable.
func (chf *CompactHeightfield) ErodeWalkableArea(radius int) {
	dist := make([]uint8, chf.SpanCount)
	for i := range dist {
		dist[i] = 0xff
	}

	// Seed: unwalkable spans and spans missing a connected walkable
	// neighbour in any direction are boundary.
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				if !chf.Areas[i].Walkable() {
					dist[i] = 0
					continue
				}
				span := &chf.Spans[i]
				neighborCount := 0
				for dir := 0; dir < 4; dir++ {
					con := span.Con(dir)
					if con == notConnected {
						break
					}
					if !chf.Areas[chf.conIndex(x, z, dir, con)].Walkable() {
						break
					}
					neighborCount++
				}
				if neighborCount != 4 {
					dist[i] = 0
				}
			}
		}
	}

	relax := func(i int, d uint8) {
		if d < dist[i] {
			dist[i] = d
		}
	}

	// Pass 1: top-left to bottom-right, propagating from (-1,0), (-1,-1),
	// (0,-1), (1,-1).
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				if con := span.Con(0); con != notConnected {
					ai := chf.conIndex(x, z, 0, con)
					relax(i, uint8(min(int(dist[ai])+2, 255)))
					aSpan := &chf.Spans[ai]
					if dcon := aSpan.Con(3); dcon != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(0), z+common.DirOffsetZ(0), 3, dcon)
						relax(i, uint8(min(int(dist[bi])+3, 255)))
					}
				}
				if con := span.Con(3); con != notConnected {
					ai := chf.conIndex(x, z, 3, con)
					relax(i, uint8(min(int(dist[ai])+2, 255)))
					aSpan := &chf.Spans[ai]
					if dcon := aSpan.Con(2); dcon != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(3), z+common.DirOffsetZ(3), 2, dcon)
						relax(i, uint8(min(int(dist[bi])+3, 255)))
					}
				}
			}
		}
	}

	// Pass 2: bottom-right to top-left, propagating from (1,0), (1,1),
	// (0,1), (-1,1).
	for z := chf.Height - 1; z >= 0; z-- {
		for x := chf.Width - 1; x >= 0; x-- {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				if con := span.Con(2); con != notConnected {
					ai := chf.conIndex(x, z, 2, con)
					relax(i, uint8(min(int(dist[ai])+2, 255)))
					aSpan := &chf.Spans[ai]
					if dcon := aSpan.Con(1); dcon != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(2), z+common.DirOffsetZ(2), 1, dcon)
						relax(i, uint8(min(int(dist[bi])+3, 255)))
					}
				}
				if con := span.Con(1); con != notConnected {
					ai := chf.conIndex(x, z, 1, con)
					relax(i, uint8(min(int(dist[ai])+2, 255)))
					aSpan := &chf.Spans[ai]
					if dcon := aSpan.Con(0); dcon != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(1), z+common.DirOffsetZ(1), 0, dcon)
						relax(i, uint8(min(int(dist[bi])+3, 255)))
					}
				}
			}
		}
	}

	minBoundaryDistance := uint8(common.Clamp(radius*2, 0, 255))
	for i := 0; i < chf.SpanCount; i++ {
		if dist[i] < minBoundaryDistance {
			chf.Areas[i] = NullArea
		}
	}
}

// MedianFilterWalkableArea smooths area tags with a 3x3 median over
// connected neighbours, removing single-span noise.
func (chf *CompactHeightfield) MedianFilterWalkableArea() {
	areas := make([]AreaType, chf.SpanCount)

	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				if !chf.Areas[i].Walkable() {
					areas[i] = chf.Areas[i]
					continue
				}
				span := &chf.Spans[i]

				var neighborAreas [9]AreaType
				for n := range neighborAreas {
					neighborAreas[n] = chf.Areas[i]
				}
				for dir := 0; dir < 4; dir++ {
					con := span.Con(dir)
					if con == notConnected {
						continue
					}
					ai := chf.conIndex(x, z, dir, con)
					if chf.Areas[ai].Walkable() {
						neighborAreas[dir*2] = chf.Areas[ai]
					}
					aSpan := &chf.Spans[ai]
					dir2 := (dir + 1) & 0x3
					if con2 := aSpan.Con(dir2); con2 != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(dir), z+common.DirOffsetZ(dir), dir2, con2)
						if chf.Areas[bi].Walkable() {
							neighborAreas[dir*2+1] = chf.Areas[bi]
						}
					}
				}
				sort.Slice(neighborAreas[:], func(a, b int) bool {
					return neighborAreas[a] < neighborAreas[b]
				})
				areas[i] = neighborAreas[4]
			}
		}
	}
	chf.Areas = areas
}

// footprint clamps a world-space box to the grid, returning false when the
// box lies entirely outside.
func (chf *CompactHeightfield) footprint(bmin, bmax mgl32.Vec3) (minX, minY, minZ, maxX, maxY, maxZ int, ok bool) {
	minX = int((bmin[0] - chf.Min[0]) / chf.CellSize)
	minY = int((bmin[1] - chf.Min[1]) / chf.CellHeight)
	minZ = int((bmin[2] - chf.Min[2]) / chf.CellSize)
	maxX = int((bmax[0] - chf.Min[0]) / chf.CellSize)
	maxY = int((bmax[1] - chf.Min[1]) / chf.CellHeight)
	maxZ = int((bmax[2] - chf.Min[2]) / chf.CellSize)

	if maxX < 0 || minX >= chf.Width || maxZ < 0 || minZ >= chf.Height {
		return 0, 0, 0, 0, 0, 0, false
	}
	minX = max(minX, 0)
	maxX = min(maxX, chf.Width-1)
	minZ = max(minZ, 0)
	maxZ = min(maxZ, chf.Height-1)
	return minX, minY, minZ, maxX, maxY, maxZ, true
}

// MarkBoxArea overwrites the area tag of every walkable span whose floor
// lies inside the world-space box.
func (chf *CompactHeightfield) MarkBoxArea(bmin, bmax mgl32.Vec3, area AreaType) {
	minX, minY, minZ, maxX, maxY, maxZ, ok := chf.footprint(bmin, bmax)
	if !ok {
		return
	}
	for z := minZ; z <= maxZ; z++ {
		for x := minX; x <= maxX; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				if int(span.Y) < minY || int(span.Y) > maxY {
					continue
				}
				if !chf.Areas[i].Walkable() {
					continue
				}
				chf.Areas[i] = area
			}
		}
	}
}

// pointInPoly tests the point against the polygon's xz outline with the
// even-odd rule.
func pointInPoly(verts []mgl32.Vec3, point mgl32.Vec3) bool {
	inside := false
	j := len(verts) - 1
	for i := 0; i < len(verts); i++ {
		vi := verts[i]
		vj := verts[j]
		if (vi[2] > point[2]) != (vj[2] > point[2]) &&
			point[0] < (vj[0]-vi[0])*(point[2]-vi[2])/(vj[2]-vi[2])+vi[0] {
			inside = !inside
		}
		j = i
	}
	return inside
}

// MarkConvexPolyArea overwrites the area tag of every walkable span whose
// cell center lies inside the volume's polygon and whose floor overlaps the
// volume's vertical extent. An empty volume is a no-op.
func (chf *CompactHeightfield) MarkConvexPolyArea(volume *ConvexVolume) {
	if len(volume.Vertices) == 0 {
		return
	}
	bmin := volume.Vertices[0]
	bmax := volume.Vertices[0]
	for _, v := range volume.Vertices[1:] {
		bmin = common.Vmin(bmin, v)
		bmax = common.Vmax(bmax, v)
	}
	bmin[1] = volume.MinY
	bmax[1] = volume.MaxY

	minX, minY, minZ, maxX, maxY, maxZ, ok := chf.footprint(bmin, bmax)
	if !ok {
		return
	}
	for z := minZ; z <= maxZ; z++ {
		for x := minX; x <= maxX; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				if !chf.Areas[i].Walkable() {
					continue
				}
				if int(span.Y) < minY || int(span.Y) > maxY {
					continue
				}
				point := mgl32.Vec3{
					chf.Min[0] + (float32(x)+0.5)*chf.CellSize,
					0,
					chf.Min[2] + (float32(z)+0.5)*chf.CellSize,
				}
				if pointInPoly(volume.Vertices, point) {
					chf.Areas[i] = volume.Area
				}
			}
		}
	}
}

// MarkCylinderArea overwrites the area tag of every walkable span whose
// cell center falls inside the vertical cylinder.
func (chf *CompactHeightfield) MarkCylinderArea(position mgl32.Vec3, radius, height float32, area AreaType) {
	bmin := mgl32.Vec3{position[0] - radius, position[1], position[2] - radius}
	bmax := mgl32.Vec3{position[0] + radius, position[1] + height, position[2] + radius}

	minX, minY, minZ, maxX, maxY, maxZ, ok := chf.footprint(bmin, bmax)
	if !ok {
		return
	}
	radiusSq := radius * radius
	for z := minZ; z <= maxZ; z++ {
		for x := minX; x <= maxX; x++ {
			cellX := chf.Min[0] + (float32(x)+0.5)*chf.CellSize
			cellZ := chf.Min[2] + (float32(z)+0.5)*chf.CellSize
			deltaX := cellX - position[0]
			deltaZ := cellZ - position[2]
			if common.Sqr(deltaX)+common.Sqr(deltaZ) >= radiusSq {
				continue
			}
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				if !chf.Areas[i].Walkable() {
					continue
				}
				if int(span.Y) >= minY && int(span.Y) <= maxY {
					chf.Areas[i] = area
				}
			}
		}
	}
}

func safeNormalize2D(x, z float32) (float32, float32) {
	sqMag := common.Sqr(x) + common.Sqr(z)
	if sqMag > epsilon {
		inv := 1 / float32(math.Sqrt(float64(sqMag)))
		return x * inv, z * inv
	}
	return x, z
}

// OffsetPoly inflates a convex outline on the xz plane by offset, mitering
// corners and beveling ones sharper than the miter limit. It returns nil
// when the result would exceed maxOutVerts.
func OffsetPoly(verts []mgl32.Vec3, offset float32, maxOutVerts int) []mgl32.Vec3 {
	// Matches stroke-miterlimit behavior: corners sharper than this bevel.
	const miterLimit = 1.20

	n := len(verts)
	out := make([]mgl32.Vec3, 0, n)
	for i := 0; i < n; i++ {
		vertA := verts[(i+n-1)%n]
		vertB := verts[i]
		vertC := verts[(i+1)%n]

		prevDirX, prevDirZ := safeNormalize2D(vertB[0]-vertA[0], vertB[2]-vertA[2])
		currDirX, currDirZ := safeNormalize2D(vertC[0]-vertB[0], vertC[2]-vertB[2])

		cross := currDirX*prevDirZ - prevDirX*currDirZ

		prevNormX, prevNormZ := -prevDirZ, prevDirX
		currNormX, currNormZ := -currDirZ, currDirX

		cornerMiterX := (prevNormX + currNormX) * 0.5
		cornerMiterZ := (prevNormZ + currNormZ) * 0.5
		cornerMiterSqMag := common.Sqr(cornerMiterX) + common.Sqr(cornerMiterZ)

		bevel := cornerMiterSqMag*miterLimit*miterLimit < 1.0
		if cornerMiterSqMag > epsilon {
			scale := 1.0 / cornerMiterSqMag
			cornerMiterX *= scale
			cornerMiterZ *= scale
		}

		if bevel && cross < 0 {
			if len(out)+2 > maxOutVerts {
				return nil
			}
			d := 1.0 - (prevDirX*currDirX+prevDirZ*currDirZ)*0.5
			out = append(out,
				mgl32.Vec3{
					vertB[0] + (-prevNormX+prevDirX*d)*offset,
					vertB[1],
					vertB[2] + (-prevNormZ+prevDirZ*d)*offset,
				},
				mgl32.Vec3{
					vertB[0] + (-currNormX-currDirX*d)*offset,
					vertB[1],
					vertB[2] + (-currNormZ-currDirZ*d)*offset,
				})
		} else {
			if len(out)+1 > maxOutVerts {
				return nil
			}
			out = append(out, mgl32.Vec3{
				vertB[0] - cornerMiterX*offset,
				vertB[1],
				vertB[2] - cornerMiterZ*offset,
			})
		}
	}
	return out
}
