package navmesh

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"navgen/common"
)

// Flag bits stored in the fourth component of a contour vertex alongside
// the neighbour region id.
const (
	// borderVertexFlag marks vertices sitting on the tile border.
	borderVertexFlag = 0x10000
	// areaBorderFlag marks vertices on an edge between two area types.
	areaBorderFlag = 0x20000
	// contourRegMask extracts the neighbour region id.
	contourRegMask = 0xffff
)

// ContourFlags select which contour edges get tessellated to respect the
// maximum edge length.
type ContourFlags uint8

const (
	// TessWallEdges splits long outer wall edges.
	TessWallEdges ContourFlags = 0x01
	// TessAreaEdges splits long edges between area types.
	TessAreaEdges ContourFlags = 0x02
)

// ContourVertex is one voxel-space contour point: x, y, z and the packed
// neighbour region plus flag bits.
type ContourVertex [4]int32

// Contour is the simplified closed outline of one region, with the raw
// traced outline kept for detail-preserving consumers.
type Contour struct {
	Vertices    []ContourVertex
	RawVertices []ContourVertex
	Region      RegionId
	Area        AreaType
}

// ContourSet holds the simplified outlines of all regions.
type ContourSet struct {
	Contours   []*Contour
	Min        mgl32.Vec3
	Max        mgl32.Vec3
	CellSize   float32
	CellHeight float32
	Width      int
	Height     int
	BorderSize int
	MaxError   float32
}

// getCornerHeight samples the highest floor around the corner at (x, z)
// toward dir and reports whether the corner is a removable border vertex.
func (chf *CompactHeightfield) getCornerHeight(x, z, i, dir int) (height int, isBorderVertex bool) {
	span := &chf.Spans[i]
	ch := int(span.Y)
	dirp := (dir + 1) & 0x3

	// Combined region and area codes, so border vertices between two areas
	// are not removed.
	var regs [4]uint32
	regs[0] = uint32(span.Region) | uint32(chf.Areas[i])<<16

	if con := span.Con(dir); con != notConnected {
		ax := x + common.DirOffsetX(dir)
		az := z + common.DirOffsetZ(dir)
		ai := int(chf.Cells[ax+az*chf.Width].Index) + con
		aSpan := &chf.Spans[ai]
		ch = max(ch, int(aSpan.Y))
		regs[1] = uint32(aSpan.Region) | uint32(chf.Areas[ai])<<16
		if con2 := aSpan.Con(dirp); con2 != notConnected {
			ax2 := ax + common.DirOffsetX(dirp)
			az2 := az + common.DirOffsetZ(dirp)
			ai2 := int(chf.Cells[ax2+az2*chf.Width].Index) + con2
			bSpan := &chf.Spans[ai2]
			ch = max(ch, int(bSpan.Y))
			regs[2] = uint32(bSpan.Region) | uint32(chf.Areas[ai2])<<16
		}
	}
	if con := span.Con(dirp); con != notConnected {
		ax := x + common.DirOffsetX(dirp)
		az := z + common.DirOffsetZ(dirp)
		ai := int(chf.Cells[ax+az*chf.Width].Index) + con
		aSpan := &chf.Spans[ai]
		ch = max(ch, int(aSpan.Y))
		regs[3] = uint32(aSpan.Region) | uint32(chf.Areas[ai])<<16
		if con2 := aSpan.Con(dir); con2 != notConnected {
			ax2 := ax + common.DirOffsetX(dir)
			az2 := az + common.DirOffsetZ(dir)
			ai2 := int(chf.Cells[ax2+az2*chf.Width].Index) + con2
			bSpan := &chf.Spans[ai2]
			ch = max(ch, int(bSpan.Y))
			regs[2] = uint32(bSpan.Region) | uint32(chf.Areas[ai2])<<16
		}
	}

	// The vertex is a border vertex when two same exterior cells in a row
	// are followed by two interior cells and none of the regions is zero.
	for j := 0; j < 4; j++ {
		a := j
		b := (j + 1) & 0x3
		c := (j + 2) & 0x3
		d := (j + 3) & 0x3
		twoSameExts := regs[a]&regs[b]&uint32(BorderRegion) != 0 && regs[a] == regs[b]
		twoInts := (regs[c]|regs[d])&uint32(BorderRegion) == 0
		intsSameArea := regs[c]>>16 == regs[d]>>16
		noZeros := regs[a] != 0 && regs[b] != 0 && regs[c] != 0 && regs[d] != 0
		if twoSameExts && twoInts && intsSameArea && noZeros {
			isBorderVertex = true
			break
		}
	}
	return ch, isBorderVertex
}

// walkContour traces the raw boundary of a region starting from span i,
// consuming the boundary-edge flags as it goes.
func (chf *CompactHeightfield) walkContour(x, z, i int, flags []uint8, points *[]ContourVertex) {
	// Choose the first non-connected edge.
	dir := 0
	for flags[i]&(1<<uint(dir)) == 0 {
		dir++
	}
	startDir := dir
	startI := i
	area := chf.Areas[i]

	for iter := 0; iter < 40000; iter++ {
		if flags[i]&(1<<uint(dir)) != 0 {
			// Emit the edge corner.
			py, isBorderVertex := chf.getCornerHeight(x, z, i, dir)
			isAreaBorder := false
			px := x
			pz := z
			switch dir {
			case 0:
				pz++
			case 1:
				px++
				pz++
			case 2:
				px++
			}
			r := uint32(0)
			span := &chf.Spans[i]
			if con := span.Con(dir); con != notConnected {
				ai := chf.conIndex(x, z, dir, con)
				r = uint32(chf.Spans[ai].Region)
				if area != chf.Areas[ai] {
					isAreaBorder = true
				}
			}
			if isBorderVertex {
				r |= borderVertexFlag
			}
			if isAreaBorder {
				r |= areaBorderFlag
			}
			*points = append(*points, ContourVertex{int32(px), int32(py), int32(pz), int32(r)})

			flags[i] &^= 1 << uint(dir) // Remove visited edge
			dir = (dir + 1) & 0x3       // Rotate CW
		} else {
			span := &chf.Spans[i]
			con := span.Con(dir)
			if con == notConnected {
				// Should not happen.
				return
			}
			x += common.DirOffsetX(dir)
			z += common.DirOffsetZ(dir)
			i = int(chf.Cells[x+z*chf.Width].Index) + con
			dir = (dir + 3) & 0x3 // Rotate CCW
		}

		if startI == i && startDir == dir {
			break
		}
	}
}

// distancePtSegSq is the squared distance from (x, z) to segment
// (px,pz)-(qx,qz) in voxel units.
func distancePtSegSq(x, z, px, pz, qx, qz int32) float64 {
	pqx := float64(qx - px)
	pqz := float64(qz - pz)
	dx := float64(x - px)
	dz := float64(z - pz)
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)
	dx = float64(px) + t*pqx - float64(x)
	dz = float64(pz) + t*pqz - float64(z)
	return dx*dx + dz*dz
}

// simplifyContour reduces the raw outline with a deviation-bounded
// Douglas-Peucker pass, keeping mandatory portal vertices, then splits
// edges longer than maxEdgeLen when flags ask for it.
func simplifyContour(points []ContourVertex, maxError float32, maxEdgeLen int, buildFlags ContourFlags) []ContourVertex {
	var simplified []ContourVertex

	// Mandatory points: one wherever the neighbour region changes.
	hasConnections := false
	for _, p := range points {
		if p[3]&contourRegMask != 0 {
			hasConnections = true
			break
		}
	}
	if hasConnections {
		pn := len(points)
		for i := 0; i < pn; i++ {
			ii := (i + 1) % pn
			differentRegs := points[i][3]&contourRegMask != points[ii][3]&contourRegMask
			areaBorders := points[i][3]&areaBorderFlag != points[ii][3]&areaBorderFlag
			if differentRegs || areaBorders {
				simplified = append(simplified, ContourVertex{points[i][0], points[i][1], points[i][2], int32(i)})
			}
		}
	}

	if len(simplified) == 0 {
		// No portals: seed with the lower-left and upper-right vertices.
		llx, lly, llz, lli := points[0][0], points[0][1], points[0][2], 0
		urx, ury, urz, uri := points[0][0], points[0][1], points[0][2], 0
		for i, p := range points {
			x, y, z := p[0], p[1], p[2]
			if x < llx || (x == llx && z < llz) {
				llx, lly, llz, lli = x, y, z, i
			}
			if x > urx || (x == urx && z > urz) {
				urx, ury, urz, uri = x, y, z, i
			}
		}
		simplified = append(simplified,
			ContourVertex{llx, lly, llz, int32(lli)},
			ContourVertex{urx, ury, urz, int32(uri)})
	}

	// Add points until all raw points are within the error tolerance of
	// the simplified shape.
	pn := len(points)
	for i := 0; i < len(simplified); {
		ii := (i + 1) % len(simplified)

		ax, az, ai := simplified[i][0], simplified[i][2], int(simplified[i][3])
		bx, bz, bi := simplified[ii][0], simplified[ii][2], int(simplified[ii][3])

		maxd := float64(0)
		maxi := -1
		var ci, cinc, endi int

		// Traverse the segment in lexicographic order so opposite segments
		// compute the same deviation.
		if bx > ax || (bx == ax && bz > az) {
			cinc = 1
			ci = (ai + cinc) % pn
			endi = bi
		} else {
			cinc = pn - 1
			ci = (bi + cinc) % pn
			endi = ai
			ax, bx = bx, ax
			az, bz = bz, az
		}

		// Tessellate only outer edges or edges between areas.
		if points[ci][3]&contourRegMask == 0 || points[ci][3]&areaBorderFlag != 0 {
			for ci != endi {
				d := distancePtSegSq(points[ci][0], points[ci][2], ax, az, bx, bz)
				if d > maxd {
					maxd = d
					maxi = ci
				}
				ci = (ci + cinc) % pn
			}
		}

		if maxi != -1 && maxd > float64(maxError)*float64(maxError) {
			ins := ContourVertex{points[maxi][0], points[maxi][1], points[maxi][2], int32(maxi)}
			simplified = append(simplified[:i+1], append([]ContourVertex{ins}, simplified[i+1:]...)...)
		} else {
			i++
		}
	}

	// Split too long edges.
	if maxEdgeLen > 0 && buildFlags&(TessWallEdges|TessAreaEdges) != 0 {
		for i := 0; i < len(simplified); {
			ii := (i + 1) % len(simplified)

			ax, az, ai := simplified[i][0], simplified[i][2], int(simplified[i][3])
			bx, bz, bi := simplified[ii][0], simplified[ii][2], int(simplified[ii][3])

			maxi := -1
			ci := (ai + 1) % pn

			tess := false
			if buildFlags&TessWallEdges != 0 && points[ci][3]&contourRegMask == 0 {
				tess = true
			}
			if buildFlags&TessAreaEdges != 0 && points[ci][3]&areaBorderFlag != 0 {
				tess = true
			}

			if tess {
				dx := int(bx - ax)
				dz := int(bz - az)
				if dx*dx+dz*dz > maxEdgeLen*maxEdgeLen {
					// Round consistently regardless of traversal direction.
					n := bi - ai
					if bi < ai {
						n = bi + pn - ai
					}
					if n > 1 {
						if bx > ax || (bx == ax && bz > az) {
							maxi = (ai + n/2) % pn
						} else {
							maxi = (ai + (n+1)/2) % pn
						}
					}
				}
			}

			if maxi != -1 {
				ins := ContourVertex{points[maxi][0], points[maxi][1], points[maxi][2], int32(maxi)}
				simplified = append(simplified[:i+1], append([]ContourVertex{ins}, simplified[i+1:]...)...)
			} else {
				i++
			}
		}
	}

	for i := range simplified {
		// The edge vertex flag comes from the current raw point, the
		// neighbour region from the next raw point.
		ai := (int(simplified[i][3]) + 1) % pn
		bi := int(simplified[i][3])
		simplified[i][3] = points[ai][3]&(contourRegMask|areaBorderFlag) | points[bi][3]&borderVertexFlag
	}
	return simplified
}

// removeDegenerateSegments drops adjacent vertices equal on the xz plane,
// which would confuse the triangulator.
func removeDegenerateSegments(simplified []ContourVertex) []ContourVertex {
	for i := 0; i < len(simplified); {
		ni := (i + 1) % len(simplified)
		if simplified[i][0] == simplified[ni][0] && simplified[i][2] == simplified[ni][2] {
			simplified = append(simplified[:i], simplified[i+1:]...)
		} else {
			i++
		}
	}
	return simplified
}

// calcAreaOfPolygon2D is the doubled signed area on the xz plane, halved.
// Negative means the outline winds backwards, i.e. a hole.
func calcAreaOfPolygon2D(verts []ContourVertex) int {
	area := 0
	j := len(verts) - 1
	for i := 0; i < len(verts); i++ {
		vi := verts[i]
		vj := verts[j]
		area += int(vi[0])*int(vj[2]) - int(vj[0])*int(vi[2])
		j = i
	}
	return (area + 1) / 2
}

// mergeContours splices contour b into a across the diagonal (ia, ib).
func mergeContours(a, b *Contour, ia, ib int) {
	nv := make([]ContourVertex, 0, len(a.Vertices)+len(b.Vertices)+2)
	for i := 0; i <= len(a.Vertices); i++ {
		nv = append(nv, a.Vertices[(ia+i)%len(a.Vertices)])
	}
	for i := 0; i <= len(b.Vertices); i++ {
		nv = append(nv, b.Vertices[(ib+i)%len(b.Vertices)])
	}
	a.Vertices = nv
	b.Vertices = nil
}

type contourHole struct {
	contour    *Contour
	minx, minz int32
	leftmost   int
}

type contourRegion struct {
	outline *Contour
	holes   []*contourHole
}

type potentialDiagonal struct {
	vert int
	dist int
}

// findLeftMostVertex locates the lowest, leftmost vertex of a contour.
func findLeftMostVertex(contour *Contour) (minx, minz int32, leftmost int) {
	minx = contour.Vertices[0][0]
	minz = contour.Vertices[0][2]
	for i := 1; i < len(contour.Vertices); i++ {
		x := contour.Vertices[i][0]
		z := contour.Vertices[i][2]
		if x < minx || (x == minx && z < minz) {
			minx = x
			minz = z
			leftmost = i
		}
	}
	return minx, minz, leftmost
}

func contourInCone(i int, verts []ContourVertex, pj ContourVertex) bool {
	n := len(verts)
	pi := verts[i]
	pi1 := verts[(i+1)%n]
	pin1 := verts[(i+n-1)%n]

	if leftOnVert(pin1, pi, pi1) {
		return leftOnVert(pi, pj, pin1) && leftOnVert(pj, pi, pi1)
	}
	return !(leftOnVert(pi, pj, pi1) && leftOnVert(pj, pi, pin1))
}

func area2Vert(a, b, c ContourVertex) int32 {
	return (b[0]-a[0])*(c[2]-a[2]) - (c[0]-a[0])*(b[2]-a[2])
}

func leftVert(a, b, c ContourVertex) bool {
	return area2Vert(a, b, c) < 0
}

func leftOnVert(a, b, c ContourVertex) bool {
	return area2Vert(a, b, c) <= 0
}

func intersectSegContour(d0, d1 ContourVertex, i int, verts []ContourVertex) bool {
	n := len(verts)
	for k := 0; k < n; k++ {
		k1 := (k + 1) % n
		if i == k || i == k1 {
			continue
		}
		p0 := verts[k]
		p1 := verts[k1]
		if (d0[0] == p0[0] && d0[2] == p0[2]) || (d1[0] == p0[0] && d1[2] == p0[2]) ||
			(d0[0] == p1[0] && d0[2] == p1[2]) || (d1[0] == p1[0] && d1[2] == p1[2]) {
			continue
		}
		if intersectVert(d0, d1, p0, p1) {
			return true
		}
	}
	return false
}

func collinearVert(a, b, c ContourVertex) bool {
	return area2Vert(a, b, c) == 0
}

func intersectPropVert(a, b, c, d ContourVertex) bool {
	if collinearVert(a, b, c) || collinearVert(a, b, d) ||
		collinearVert(c, d, a) || collinearVert(c, d, b) {
		return false
	}
	return (leftVert(a, b, c) != leftVert(a, b, d)) && (leftVert(c, d, a) != leftVert(c, d, b))
}

func betweenVert(a, b, c ContourVertex) bool {
	if !collinearVert(a, b, c) {
		return false
	}
	if a[0] != b[0] {
		return (a[0] <= c[0] && c[0] <= b[0]) || (a[0] >= c[0] && c[0] >= b[0])
	}
	return (a[2] <= c[2] && c[2] <= b[2]) || (a[2] >= c[2] && c[2] >= b[2])
}

func intersectVert(a, b, c, d ContourVertex) bool {
	if intersectPropVert(a, b, c, d) {
		return true
	}
	return betweenVert(a, b, c) || betweenVert(a, b, d) ||
		betweenVert(c, d, a) || betweenVert(c, d, b)
}

// mergeRegionHoles stitches every hole of a region into its outline along
// the shortest non-intersecting diagonal.
func mergeRegionHoles(region *contourRegion) {
	for _, h := range region.holes {
		h.minx, h.minz, h.leftmost = findLeftMostVertex(h.contour)
	}
	sort.Slice(region.holes, func(i, j int) bool {
		a, b := region.holes[i], region.holes[j]
		if a.minx == b.minx {
			return a.minz < b.minz
		}
		return a.minx < b.minx
	})

	outline := region.outline
	for holeIdx, h := range region.holes {
		hole := h.contour
		index := -1
		bestVertex := h.leftmost
		for iter := 0; iter < len(hole.Vertices); iter++ {
			// Collect candidate diagonals: the best vertex must be in the
			// cone of an outline vertex.
			var diags []potentialDiagonal
			corner := hole.Vertices[bestVertex]
			for j := range outline.Vertices {
				if contourInCone(j, outline.Vertices, corner) {
					dx := int(outline.Vertices[j][0] - corner[0])
					dz := int(outline.Vertices[j][2] - corner[2])
					diags = append(diags, potentialDiagonal{vert: j, dist: dx*dx + dz*dz})
				}
			}
			// Shortest connection first.
			sort.Slice(diags, func(a, b int) bool {
				return diags[a].dist < diags[b].dist
			})

			// Pick the first diagonal that does not cross the outline or
			// any remaining hole.
			index = -1
			for _, diag := range diags {
				pt := outline.Vertices[diag.vert]
				intersects := intersectSegContour(pt, corner, diag.vert, outline.Vertices)
				for k := holeIdx; k < len(region.holes) && !intersects; k++ {
					if intersectSegContour(pt, corner, -1, region.holes[k].contour.Vertices) {
						intersects = true
					}
				}
				if !intersects {
					index = diag.vert
					break
				}
			}
			if index != -1 {
				break
			}
			// All diagonals for this vertex intersect, try the next one.
			bestVertex = (bestVertex + 1) % len(hole.Vertices)
		}

		if index == -1 {
			continue
		}
		mergeContours(outline, hole, index, bestVertex)
	}
}

// BuildContours traces the boundary of every region into a simplified
// polygon outline. maxError (voxels) bounds the deviation from the raw
// outline; maxEdgeLen caps edge length for the selected edge classes.
func (chf *CompactHeightfield) BuildContours(maxError float32, maxEdgeLen int, buildFlags ContourFlags) (*ContourSet, error) {
	w := chf.Width
	h := chf.Height
	borderSize := chf.BorderSize

	cset := &ContourSet{
		Min:        chf.Min,
		Max:        chf.Max,
		CellSize:   chf.CellSize,
		CellHeight: chf.CellHeight,
		Width:      w - borderSize*2,
		Height:     h - borderSize*2,
		BorderSize: borderSize,
		MaxError:   maxError,
	}
	if borderSize > 0 {
		// Remove the border offset from the bounds.
		pad := float32(borderSize) * chf.CellSize
		cset.Min[0] += pad
		cset.Min[2] += pad
		cset.Max[0] -= pad
		cset.Max[2] -= pad
	}

	// Mark boundary edges: bit per direction where the neighbour belongs
	// to another region.
	flags := make([]uint8, chf.SpanCount)
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				if span.Region == NoRegion || span.Region.IsBorder() {
					flags[i] = 0
					continue
				}
				res := uint8(0)
				for dir := 0; dir < 4; dir++ {
					r := NoRegion
					if con := span.Con(dir); con != notConnected {
						r = chf.Spans[chf.conIndex(x, z, dir, con)].Region
					}
					if r == span.Region {
						res |= 1 << uint(dir)
					}
				}
				flags[i] = res ^ 0xf // Mark non-connected edges.
			}
		}
	}

	rawVerts := make([]ContourVertex, 0, 256)
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				if flags[i] == 0 || flags[i] == 0xf {
					flags[i] = 0
					continue
				}
				reg := chf.Spans[i].Region
				if reg == NoRegion || reg.IsBorder() {
					continue
				}
				area := chf.Areas[i]

				rawVerts = rawVerts[:0]
				chf.walkContour(x, z, i, flags, &rawVerts)

				simplified := simplifyContour(rawVerts, maxError, maxEdgeLen, buildFlags)
				simplified = removeDegenerateSegments(simplified)

				if len(simplified) < 3 {
					continue
				}
				cont := &Contour{
					Vertices:    simplified,
					RawVertices: append([]ContourVertex(nil), rawVerts...),
					Region:      reg,
					Area:        area,
				}
				if borderSize > 0 {
					// Remove the border offset from vertex coordinates.
					for j := range cont.Vertices {
						cont.Vertices[j][0] -= int32(borderSize)
						cont.Vertices[j][2] -= int32(borderSize)
					}
					for j := range cont.RawVertices {
						cont.RawVertices[j][0] -= int32(borderSize)
						cont.RawVertices[j][2] -= int32(borderSize)
					}
				}
				cset.Contours = append(cset.Contours, cont)
			}
		}
	}

	// Merge holes.
	if len(cset.Contours) > 0 {
		winding := make([]int, len(cset.Contours))
		nholes := 0
		for i, cont := range cset.Contours {
			// A contour wound backwards is a hole.
			winding[i] = 1
			if calcAreaOfPolygon2D(cont.Vertices) < 0 {
				winding[i] = -1
				nholes++
			}
		}

		if nholes > 0 {
			// One outline plus any number of holes per region.
			nregions := int(chf.MaxRegion) + 1
			regions := make([]contourRegion, nregions)
			for i, cont := range cset.Contours {
				if winding[i] > 0 {
					if regions[cont.Region].outline == nil {
						regions[cont.Region].outline = cont
					}
				} else {
					regions[cont.Region].holes = append(regions[cont.Region].holes, &contourHole{contour: cont})
				}
			}
			for i := range regions {
				reg := &regions[i]
				if len(reg.holes) == 0 {
					continue
				}
				if reg.outline != nil {
					mergeRegionHoles(reg)
				}
				// A region without an outline can happen when the contour
				// becomes self-overlapping due to aggressive simplification.
			}

			// Drop the now-empty hole contours.
			kept := cset.Contours[:0]
			for _, cont := range cset.Contours {
				if len(cont.Vertices) > 0 {
					kept = append(kept, cont)
				}
			}
			cset.Contours = kept
		}
	}

	return cset, nil
}
