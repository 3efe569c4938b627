package navmesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"navgen/common"
)

const (
	unsetHeight = 0xffff

	// Limits imposed by the uint8 triangle indices of a detail submesh.
	detailMaxVerts    = 127
	detailMaxTris     = 255
	maxVertsPerEdge   = 32
	queueRetractSize  = 256
	evUndef           = -1
	evHull            = -2
	maxFloat          = float32(math.MaxFloat32)
	degenerateSegThr  = 1e-12
	multipleRegions   = NoRegion
	edgeSampleEpsilon = 1e-6
)

// DetailNavmesh carries per-polygon triangle meshes that follow the ground
// height closely. Meshes rows are (vertex base, vertex count, triangle base,
// triangle count); triangle rows are three local vertex indices plus edge
// flags.
type DetailNavmesh struct {
	Meshes    [][4]uint32
	Vertices  []mgl32.Vec3
	Triangles [][4]uint8
}

// heightPatch caches span floor heights for the cells under one polygon.
type heightPatch struct {
	data                      []uint16
	xmin, ymin, width, height int
}

func vdot2(a, b mgl32.Vec3) float32 {
	return a[0]*b[0] + a[2]*b[2]
}

func vdistSq2(p, q mgl32.Vec3) float32 {
	dx := q[0] - p[0]
	dz := q[2] - p[2]
	return dx*dx + dz*dz
}

func vdist2(p, q mgl32.Vec3) float32 {
	return float32(math.Sqrt(float64(vdistSq2(p, q))))
}

func vcross2(p1, p2, p3 mgl32.Vec3) float32 {
	u1 := p2[0] - p1[0]
	v1 := p2[2] - p1[2]
	u2 := p3[0] - p1[0]
	v2 := p3[2] - p1[2]
	return u1*v2 - v1*u2
}

// circumCircle computes the circle through three points on the xz plane,
// relative to p1 to dodge precision loss on large coordinates.
func circumCircle(p1, p2, p3 mgl32.Vec3) (c mgl32.Vec3, r float32, ok bool) {
	const eps = 1e-6
	v1 := mgl32.Vec3{}
	v2 := p2.Sub(p1)
	v3 := p3.Sub(p1)

	cp := vcross2(v1, v2, v3)
	if float32(math.Abs(float64(cp))) > eps {
		v1Sq := vdot2(v1, v1)
		v2Sq := vdot2(v2, v2)
		v3Sq := vdot2(v3, v3)
		c[0] = (v1Sq*(v2[2]-v3[2]) + v2Sq*(v3[2]-v1[2]) + v3Sq*(v1[2]-v2[2])) / (2 * cp)
		c[1] = 0
		c[2] = (v1Sq*(v3[0]-v2[0]) + v2Sq*(v1[0]-v3[0]) + v3Sq*(v2[0]-v1[0])) / (2 * cp)
		r = vdist2(c, v1)
		c = c.Add(p1)
		return c, r, true
	}
	return p1, 0, false
}

// distPtTri returns the vertical distance from p to the triangle when its
// xz projection falls inside, or maxFloat.
func distPtTri(p, a, b, c mgl32.Vec3) float32 {
	v0 := c.Sub(a)
	v1 := b.Sub(a)
	v2 := p.Sub(a)

	dot00 := vdot2(v0, v0)
	dot01 := vdot2(v0, v1)
	dot02 := vdot2(v0, v2)
	dot11 := vdot2(v1, v1)
	dot12 := vdot2(v1, v2)

	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	const eps = 1e-4
	if u >= -eps && v >= -eps && (u+v) <= 1+eps {
		y := a[1] + v0[1]*u + v1[1]*v
		return float32(math.Abs(float64(y - p[1])))
	}
	return maxFloat
}

func polyMinExtent(verts []mgl32.Vec3) float32 {
	minDist := maxFloat
	n := len(verts)
	for i := 0; i < n; i++ {
		ni := (i + 1) % n
		p1 := verts[i]
		p2 := verts[ni]
		maxEdgeDist := float32(0)
		for j := 0; j < n; j++ {
			if j == i || j == ni {
				continue
			}
			d := distPtSeg2dNoLog(verts[j], p1, p2)
			maxEdgeDist = float32(math.Max(float64(maxEdgeDist), float64(d)))
		}
		minDist = float32(math.Min(float64(minDist), float64(maxEdgeDist)))
	}
	return float32(math.Sqrt(float64(minDist)))
}

func distPtSeg2dNoLog(pt, p, q mgl32.Vec3) float32 {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz
}

func getJitterX(i int) float32 {
	return (float32((i*0x8da6b343)&0xffff)/65535.0)*2.0 - 1.0
}

func getJitterY(i int) float32 {
	return (float32((i*0xd8163841)&0xffff)/65535.0)*2.0 - 1.0
}

// detailEdge is one edge of the incremental Delaunay triangulation with the
// face index on each side.
type detailEdge struct {
	s, t, l, r int
}

// detailBuilder holds the per-build scratch state of the detail pass.
type detailBuilder struct {
	chf            *CompactHeightfield
	hp             heightPatch
	logger         *zap.Logger
	sampleDist     float32
	sampleMaxError float32
	searchRadius   int
	degenerateSegs int
}

// distPtSeg is the squared 3D point-segment distance. A zero-length segment
// still yields a valid clamped distance; it is counted for the build report.
func (d *detailBuilder) distPtSeg(pt, p, q mgl32.Vec3) float32 {
	pq := q.Sub(p)
	dv := pt.Sub(p)
	den := pq.Dot(pq)
	t := pq.Dot(dv)
	if den > degenerateSegThr {
		t /= den
	} else {
		d.degenerateSegs++
	}
	t = common.Clamp(t, 0, 1)
	diff := p.Add(pq.Mul(t)).Sub(pt)
	return diff.Dot(diff)
}

func (d *detailBuilder) distPtSeg2d(pt, p, q mgl32.Vec3) float32 {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	den := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if den > degenerateSegThr {
		t /= den
	} else {
		d.degenerateSegs++
	}
	t = common.Clamp(t, 0, 1)
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz
}

func (d *detailBuilder) distToTriMesh(p mgl32.Vec3, verts []mgl32.Vec3, tris [][4]int) float32 {
	dmin := maxFloat
	for _, t := range tris {
		dist := distPtTri(p, verts[t[0]], verts[t[1]], verts[t[2]])
		if dist < dmin {
			dmin = dist
		}
	}
	if dmin == maxFloat {
		return -1
	}
	return dmin
}

// distToPoly is negative when p lies inside the polygon; the magnitude is
// the distance to the closest edge.
func (d *detailBuilder) distToPoly(verts []mgl32.Vec3, p mgl32.Vec3) float32 {
	dmin := maxFloat
	inside := false
	n := len(verts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi := verts[i]
		vj := verts[j]
		if (vi[2] > p[2]) != (vj[2] > p[2]) &&
			p[0] < (vj[0]-vi[0])*(p[2]-vi[2])/(vj[2]-vi[2])+vi[0] {
			inside = !inside
		}
		dmin = float32(math.Min(float64(dmin), float64(d.distPtSeg2d(p, vj, vi))))
	}
	if inside {
		return -dmin
	}
	return dmin
}

// patchHeight samples the height patch at a world position, spiraling
// outward up to the search radius when the cell under the point is unset.
func (d *detailBuilder) patchHeight(fx, fy, fz, ics, ch float32) uint16 {
	hp := &d.hp
	ix := int(math.Floor(float64(fx*ics + 0.01)))
	iz := int(math.Floor(float64(fz*ics + 0.01)))
	ix = common.Clamp(ix-hp.xmin, 0, hp.width-1)
	iz = common.Clamp(iz-hp.ymin, 0, hp.height-1)
	h := hp.data[ix+iz*hp.width]
	if h != unsetHeight {
		return h
	}

	// The point can land on a cell the height pass never reached; find the
	// closest valid height ring by ring.
	x, z, dx, dz := 1, 0, 1, 0
	maxSize := d.searchRadius*2 + 1
	maxIter := maxSize*maxSize - 1

	nextRingIterStart := 8
	nextRingIters := 16

	dmin := maxFloat
	for i := 0; i < maxIter; i++ {
		nx := ix + x
		nz := iz + z
		if nx >= 0 && nz >= 0 && nx < hp.width && nz < hp.height {
			nh := hp.data[nx+nz*hp.width]
			if nh != unsetHeight {
				dist := float32(math.Abs(float64(float32(nh)*ch - fy)))
				if dist < dmin {
					h = nh
					dmin = dist
				}
			}
		}
		// Each ring adds 8 cells. Once a ring produced a height, the best
		// candidate of that ring wins; expanding further only gets farther
		// from the query cell.
		if i+1 == nextRingIterStart {
			if h != unsetHeight {
				break
			}
			nextRingIterStart += nextRingIters
			nextRingIters += 8
		}
		if x == z || (x < 0 && x == -z) || (x > 0 && x == 1-z) {
			dx, dz = -dz, dx
		}
		x += dx
		z += dz
	}
	return h
}

func findDetailEdge(edges []detailEdge, s, t int) int {
	for i := range edges {
		e := &edges[i]
		if (e.s == s && e.t == t) || (e.s == t && e.t == s) {
			return i
		}
	}
	return evUndef
}

func addDetailEdge(edges []detailEdge, maxEdges, s, t, l, r int) ([]detailEdge, error) {
	if len(edges) >= maxEdges {
		return edges, &MeshError{Stage: "detailmesh", Detail: "triangulation edge budget exceeded"}
	}
	if findDetailEdge(edges, s, t) == evUndef {
		edges = append(edges, detailEdge{s: s, t: t, l: l, r: r})
	}
	return edges, nil
}

func updateLeftFace(e *detailEdge, s, t, f int) {
	if e.s == s && e.t == t && e.l == evUndef {
		e.l = f
	} else if e.t == s && e.s == t && e.r == evUndef {
		e.r = f
	}
}

func overlapSegSeg2d(a, b, c, d mgl32.Vec3) bool {
	a1 := vcross2(a, b, d)
	a2 := vcross2(a, b, c)
	if a1*a2 < 0 {
		a3 := vcross2(c, d, a)
		a4 := a3 + a2 - a1
		if a3*a4 < 0 {
			return true
		}
	}
	return false
}

func overlapEdges(pts []mgl32.Vec3, edges []detailEdge, s1, t1 int) bool {
	for i := range edges {
		s0 := edges[i].s
		t0 := edges[i].t
		if s0 == s1 || s0 == t1 || t0 == s1 || t0 == t1 {
			continue
		}
		if overlapSegSeg2d(pts[s0], pts[t0], pts[s1], pts[t1]) {
			return true
		}
	}
	return false
}

// completeFacet grows the triangulation from an open edge by the Delaunay
// in-circle rule.
func completeFacet(pts []mgl32.Vec3, edges []detailEdge, maxEdges, nfaces, e int) ([]detailEdge, int, error) {
	const eps = 1e-5

	var s, t int
	switch {
	case edges[e].l == evUndef:
		s, t = edges[e].s, edges[e].t
	case edges[e].r == evUndef:
		s, t = edges[e].t, edges[e].s
	default:
		return edges, nfaces, nil
	}

	npts := len(pts)
	pt := npts
	var c mgl32.Vec3
	r := float32(-1)
	for u := 0; u < npts; u++ {
		if u == s || u == t {
			continue
		}
		if vcross2(pts[s], pts[t], pts[u]) <= eps {
			continue
		}
		if r < 0 {
			pt = u
			c, r, _ = circumCircle(pts[s], pts[t], pts[u])
			continue
		}
		d := vdist2(c, pts[u])
		const tol = 0.001
		if d > r*(1+tol) {
			continue
		}
		if d < r*(1-tol) {
			pt = u
			c, r, _ = circumCircle(pts[s], pts[t], pts[u])
			continue
		}
		// Inside the epsilon ring of the circle; accept only if the new
		// edges would not cross existing ones.
		if overlapEdges(pts, edges, s, u) || overlapEdges(pts, edges, t, u) {
			continue
		}
		pt = u
		c, r, _ = circumCircle(pts[s], pts[t], pts[u])
	}

	if pt >= npts {
		updateLeftFace(&edges[e], s, t, evHull)
		return edges, nfaces, nil
	}

	updateLeftFace(&edges[e], s, t, nfaces)

	var err error
	if i := findDetailEdge(edges, pt, s); i == evUndef {
		edges, err = addDetailEdge(edges, maxEdges, pt, s, nfaces, evUndef)
		if err != nil {
			return edges, nfaces, err
		}
	} else {
		updateLeftFace(&edges[i], pt, s, nfaces)
	}
	if i := findDetailEdge(edges, t, pt); i == evUndef {
		edges, err = addDetailEdge(edges, maxEdges, t, pt, nfaces, evUndef)
		if err != nil {
			return edges, nfaces, err
		}
	} else {
		updateLeftFace(&edges[i], t, pt, nfaces)
	}
	return edges, nfaces + 1, nil
}

func (d *detailBuilder) delaunayHull(pts []mgl32.Vec3, hull []int) ([][4]int, error) {
	nfaces := 0
	maxEdges := len(pts) * 10
	edges := make([]detailEdge, 0, maxEdges)

	var err error
	for i, j := 0, len(hull)-1; i < len(hull); j, i = i, i+1 {
		edges, err = addDetailEdge(edges, maxEdges, hull[j], hull[i], evHull, evUndef)
		if err != nil {
			return nil, err
		}
	}

	for currentEdge := 0; currentEdge < len(edges); currentEdge++ {
		if edges[currentEdge].l == evUndef {
			edges, nfaces, err = completeFacet(pts, edges, maxEdges, nfaces, currentEdge)
			if err != nil {
				return nil, err
			}
		}
		if edges[currentEdge].r == evUndef {
			edges, nfaces, err = completeFacet(pts, edges, maxEdges, nfaces, currentEdge)
			if err != nil {
				return nil, err
			}
		}
	}

	tris := make([][4]int, nfaces)
	for i := range tris {
		tris[i] = [4]int{-1, -1, -1, -1}
	}
	for i := range edges {
		e := &edges[i]
		if e.r >= 0 {
			t := &tris[e.r]
			if t[0] == -1 {
				t[0] = e.s
				t[1] = e.t
			} else if t[0] == e.t {
				t[2] = e.s
			} else if t[1] == e.s {
				t[2] = e.t
			}
		}
		if e.l >= 0 {
			t := &tris[e.l]
			if t[0] == -1 {
				t[0] = e.t
				t[1] = e.s
			} else if t[0] == e.s {
				t[2] = e.t
			} else if t[1] == e.t {
				t[2] = e.s
			}
		}
	}

	for i := 0; i < len(tris); i++ {
		t := tris[i]
		if t[0] == -1 || t[1] == -1 || t[2] == -1 {
			d.logger.Warn("removing dangling face from detail triangulation",
				zap.Ints("face", []int{t[0], t[1], t[2]}))
			tris[i] = tris[len(tris)-1]
			tris = tris[:len(tris)-1]
			i--
		}
	}
	return tris, nil
}

// triangulateHull fans out triangles between the two hull walks, always
// advancing the side that forms the shorter perimeter. It behaves well on
// the long thin triangles the edge tessellation produces.
func triangulateHull(verts []mgl32.Vec3, hull []int, nin int, tris *[][4]int) {
	nhull := len(hull)
	start, left, right := 0, 1, nhull-1

	// Start from the ear with the shortest perimeter. Only original
	// polygon corners qualify; tessellation points sit on straight edges.
	dmin := maxFloat
	for i := 0; i < nhull; i++ {
		if hull[i] >= nin {
			continue
		}
		pi := prevIndex(i, nhull)
		ni := nextIndex(i, nhull)
		pv := verts[hull[pi]]
		cv := verts[hull[i]]
		nv := verts[hull[ni]]
		d := vdist2(pv, cv) + vdist2(cv, nv) + vdist2(nv, pv)
		if d < dmin {
			start = i
			left = ni
			right = pi
			dmin = d
		}
	}

	*tris = append(*tris, [4]int{hull[start], hull[left], hull[right], 0})

	for nextIndex(left, nhull) != right {
		nleft := nextIndex(left, nhull)
		nright := prevIndex(right, nhull)

		cvleft := verts[hull[left]]
		nvleft := verts[hull[nleft]]
		cvright := verts[hull[right]]
		nvright := verts[hull[nright]]
		dleft := vdist2(cvleft, nvleft) + vdist2(nvleft, cvright)
		dright := vdist2(cvright, nvright) + vdist2(cvleft, nvright)

		if dleft < dright {
			*tris = append(*tris, [4]int{hull[left], hull[nleft], hull[right], 0})
			left = nleft
		} else {
			*tris = append(*tris, [4]int{hull[left], hull[nright], hull[right], 0})
			right = nright
		}
	}
}

// buildPolyDetail tessellates one polygon outline against the height patch
// and fills the interior with samples until the surface error is within
// bounds.
func (d *detailBuilder) buildPolyDetail(in []mgl32.Vec3, tris *[][4]int) ([]mgl32.Vec3, error) {
	nin := len(in)
	verts := make([]mgl32.Vec3, nin, detailMaxVerts)
	copy(verts, in)
	hull := make([]int, 0, detailMaxVerts)
	*tris = (*tris)[:0]

	cs := d.chf.CellSize
	ics := 1.0 / cs
	ch := d.chf.CellHeight

	minExtent := polyMinExtent(verts)

	// Tessellate outlines first, in a fixed lexicographic direction per
	// edge, so shared polygon borders sample identical heights.
	if d.sampleDist > 0 {
		var edge [maxVertsPerEdge + 1]mgl32.Vec3
		var idx [maxVertsPerEdge]int
		for i, j := 0, nin-1; i < nin; j, i = i, i+1 {
			vj := in[j]
			vi := in[i]
			swapped := false
			if float32(math.Abs(float64(vj[0]-vi[0]))) < edgeSampleEpsilon {
				if vj[2] > vi[2] {
					vj, vi = vi, vj
					swapped = true
				}
			} else if vj[0] > vi[0] {
				vj, vi = vi, vj
				swapped = true
			}

			delta := vi.Sub(vj)
			dist := float32(math.Sqrt(float64(delta[0]*delta[0] + delta[2]*delta[2])))
			nn := 1 + int(math.Floor(float64(dist/d.sampleDist)))
			if nn >= maxVertsPerEdge {
				nn = maxVertsPerEdge - 1
			}
			if len(verts)+nn >= detailMaxVerts {
				nn = detailMaxVerts - 1 - len(verts)
			}
			for k := 0; k <= nn; k++ {
				u := float32(k) / float32(nn)
				pos := vj.Add(delta.Mul(u))
				pos[1] = float32(d.patchHeight(pos[0], pos[1], pos[2], ics, ch)) * ch
				edge[k] = pos
			}

			// Keep only the samples that deviate from the straight edge.
			idx[0] = 0
			idx[1] = nn
			nidx := 2
			for k := 0; k < nidx-1; {
				a := idx[k]
				b := idx[k+1]
				maxd := float32(0)
				maxi := -1
				for m := a + 1; m < b; m++ {
					dev := d.distPtSeg(edge[m], edge[a], edge[b])
					if dev > maxd {
						maxd = dev
						maxi = m
					}
				}
				if maxi != -1 && maxd > d.sampleMaxError*d.sampleMaxError {
					copy(idx[k+2:nidx+1], idx[k+1:nidx])
					idx[k+1] = maxi
					nidx++
				} else {
					k++
				}
			}

			hull = append(hull, j)
			if swapped {
				for k := nidx - 2; k > 0; k-- {
					hull = append(hull, len(verts))
					verts = append(verts, edge[idx[k]])
				}
			} else {
				for k := 1; k < nidx-1; k++ {
					hull = append(hull, len(verts))
					verts = append(verts, edge[idx[k]])
				}
			}
		}
	} else {
		for j := 0; j < nin; j++ {
			hull = append(hull, j)
		}
	}

	// Slivers get no interior points; sampling them mostly produces
	// degenerate triangles.
	if minExtent < d.sampleDist*2 {
		triangulateHull(verts, hull, nin, tris)
		return verts, nil
	}

	triangulateHull(verts, hull, nin, tris)
	if len(*tris) == 0 {
		d.logger.Warn("could not triangulate polygon outline",
			zap.Int("vertices", len(verts)))
		return verts, nil
	}

	if d.sampleDist > 0 {
		// Sample the interior on a grid.
		bmin := in[0]
		bmax := in[0]
		for i := 1; i < nin; i++ {
			bmin = common.Vmin(bmin, in[i])
			bmax = common.Vmax(bmax, in[i])
		}
		x0 := int(math.Floor(float64(bmin[0] / d.sampleDist)))
		x1 := int(math.Ceil(float64(bmax[0] / d.sampleDist)))
		z0 := int(math.Floor(float64(bmin[2] / d.sampleDist)))
		z1 := int(math.Ceil(float64(bmax[2] / d.sampleDist)))

		type sample struct {
			x, y, z int
			added   bool
		}
		var samples []sample
		for z := z0; z < z1; z++ {
			for x := x0; x < x1; x++ {
				pt := mgl32.Vec3{
					float32(x) * d.sampleDist,
					(bmax[1] + bmin[1]) * 0.5,
					float32(z) * d.sampleDist,
				}
				// Samples too close to the edges add slivers.
				if d.distToPoly(in, pt) > -d.sampleDist/2 {
					continue
				}
				samples = append(samples, sample{
					x: x,
					y: int(d.patchHeight(pt[0], pt[1], pt[2], ics, ch)),
					z: z,
				})
			}
		}

		// Add samples worst-error first until the surface is within
		// tolerance.
		for iter := 0; iter < len(samples); iter++ {
			if len(verts) >= detailMaxVerts {
				break
			}
			var bestpt mgl32.Vec3
			bestd := float32(0)
			besti := -1
			for i := range samples {
				s := &samples[i]
				if s.added {
					continue
				}
				// Jitter the sample off the grid; symmetric input makes
				// for unstable triangulations.
				pt := mgl32.Vec3{
					float32(s.x)*d.sampleDist + getJitterX(i)*cs*0.1,
					float32(s.y) * ch,
					float32(s.z)*d.sampleDist + getJitterY(i)*cs*0.1,
				}
				dist := d.distToTriMesh(pt, verts, *tris)
				if dist < 0 {
					continue
				}
				if dist > bestd {
					bestd = dist
					besti = i
					bestpt = pt
				}
			}
			if bestd <= d.sampleMaxError || besti == -1 {
				break
			}
			samples[besti].added = true
			verts = append(verts, bestpt)

			// Full rebuild; incremental insertion is not worth the
			// bookkeeping at these vertex counts.
			newTris, err := d.delaunayHull(verts, hull)
			if err != nil {
				return nil, err
			}
			*tris = newTris
		}
	}

	if len(*tris) > detailMaxTris {
		*tris = (*tris)[:detailMaxTris]
		d.logger.Warn("capping detail triangle count",
			zap.Int("max", detailMaxTris))
	}
	return verts, nil
}

// getHeightData fills the height patch for one polygon, preferring spans of
// the polygon's own region and flood-filling outward from its borders.
func (d *detailBuilder) getHeightData(poly []uint16, npoly int, meshVerts []uint16, bs int, region RegionId) {
	chf := d.chf
	hp := &d.hp
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = unsetHeight
	}

	type queueEntry struct {
		x, z, i int
	}
	var queue []queueEntry
	empty := true

	// Polygons merged across regions may overlap other polygons of those
	// regions; their heights cannot be trusted and seeding falls through
	// to the polygon center walk.
	if region != multipleRegions {
		for hz := 0; hz < hp.height; hz++ {
			z := hp.ymin + hz + bs
			for hx := 0; hx < hp.width; hx++ {
				x := hp.xmin + hx + bs
				start, end := chf.cellSpans(x, z)
				for i := start; i < end; i++ {
					s := &chf.Spans[i]
					if s.Region != region {
						continue
					}
					hp.data[hx+hz*hp.width] = s.Y
					empty = false

					border := false
					for dir := 0; dir < 4; dir++ {
						if con := s.Con(dir); con != notConnected {
							ai := chf.conIndex(x, z, dir, con)
							if chf.Spans[ai].Region != region {
								border = true
								break
							}
						}
					}
					if border {
						queue = append(queue, queueEntry{x, z, i})
					}
					break
				}
			}
		}
	}

	if empty {
		x, z, i := d.seedWithPolyCenter(poly, npoly, meshVerts, bs)
		queue = append(queue[:0], queueEntry{x, z, i})
	}

	// BFS outward from the seeds. Starting centered in the polygon keeps
	// the fill from crossing onto overlapping polygons.
	head := 0
	for head < len(queue) {
		e := queue[head]
		head++
		if head >= queueRetractSize {
			head = 0
			queue = append(queue[:0], queue[queueRetractSize:]...)
		}

		cs := &chf.Spans[e.i]
		for dir := 0; dir < 4; dir++ {
			con := cs.Con(dir)
			if con == notConnected {
				continue
			}
			ax := e.x + common.DirOffsetX(dir)
			az := e.z + common.DirOffsetZ(dir)
			hx := ax - hp.xmin - bs
			hz := az - hp.ymin - bs
			if hx < 0 || hx >= hp.width || hz < 0 || hz >= hp.height {
				continue
			}
			if hp.data[hx+hz*hp.width] != unsetHeight {
				continue
			}
			ai := int(chf.Cells[ax+az*chf.Width].Index) + con
			hp.data[hx+hz*hp.width] = chf.Spans[ai].Y
			queue = append(queue, queueEntry{ax, az, ai})
		}
	}
}

// seedWithPolyCenter walks from the span closest to a polygon vertex toward
// the polygon center and returns the landing cell as the height-fill seed,
// in border-offset coordinates.
func (d *detailBuilder) seedWithPolyCenter(poly []uint16, npoly int, meshVerts []uint16, bs int) (int, int, int) {
	chf := d.chf
	hp := &d.hp
	offset := [9 * 2]int{0, 0, -1, -1, 0, -1, 1, -1, 1, 0, 1, 1, 0, 1, -1, 1, -1, 0}

	startCellX, startCellZ, startSpanIndex := 0, 0, -1
	dmin := unsetHeight
	for j := 0; j < npoly && dmin > 0; j++ {
		for k := 0; k < 9 && dmin > 0; k++ {
			v := int(poly[j]) * 3
			ax := int(meshVerts[v]) + offset[k*2]
			ay := int(meshVerts[v+1])
			az := int(meshVerts[v+2]) + offset[k*2+1]
			if ax < hp.xmin || ax >= hp.xmin+hp.width || az < hp.ymin || az >= hp.ymin+hp.height {
				continue
			}
			start, end := chf.cellSpans(ax+bs, az+bs)
			for i := start; i < end && dmin > 0; i++ {
				dist := absInt(ay - int(chf.Spans[i].Y))
				if dist < dmin {
					startCellX = ax
					startCellZ = az
					startSpanIndex = i
					dmin = dist
				}
			}
		}
	}

	pcx, pcz := 0, 0
	for j := 0; j < npoly; j++ {
		v := int(poly[j]) * 3
		pcx += int(meshVerts[v])
		pcz += int(meshVerts[v+2])
	}
	pcx /= npoly
	pcz /= npoly

	type stackEntry struct {
		x, z, i int
	}
	stack := []stackEntry{{startCellX, startCellZ, startSpanIndex}}
	dirs := [4]int{0, 1, 2, 3}
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = 0
	}

	// DFS toward the center. The walk records visited cells: with heavy
	// contour simplification a straight march can get stuck.
	cx, cz, ci := -1, -1, -1
	for {
		if len(stack) == 0 {
			d.logger.Warn("walk toward polygon center did not reach it")
			break
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cz, ci = top.x, top.z, top.i

		if cx == pcx && cz == pcz {
			break
		}

		// Prefer the direction straight toward the center; push it last so
		// the stack pops it first.
		var directDir int
		if cx == pcx {
			step := -1
			if pcz > cz {
				step = 1
			}
			directDir = common.DirForOffset(0, step)
		} else {
			step := -1
			if pcx > cx {
				step = 1
			}
			directDir = common.DirForOffset(step, 0)
		}
		dirs[3], dirs[directDir] = dirs[directDir], dirs[3]

		cs := &chf.Spans[ci]
		for i := 0; i < 4; i++ {
			dir := dirs[i]
			con := cs.Con(dir)
			if con == notConnected {
				continue
			}
			newX := cx + common.DirOffsetX(dir)
			newZ := cz + common.DirOffsetZ(dir)
			hpx := newX - hp.xmin
			hpz := newZ - hp.ymin
			if hpx < 0 || hpx >= hp.width || hpz < 0 || hpz >= hp.height {
				continue
			}
			if hp.data[hpx+hpz*hp.width] != 0 {
				continue
			}
			hp.data[hpx+hpz*hp.width] = 1
			stack = append(stack, stackEntry{
				newX, newZ,
				int(chf.Cells[(newX+bs)+(newZ+bs)*chf.Width].Index) + con,
			})
		}
		dirs[3], dirs[directDir] = dirs[directDir], dirs[3]
	}

	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = unsetHeight
	}
	hp.data[cx-hp.xmin+(cz-hp.ymin)*hp.width] = chf.Spans[ci].Y
	return cx + bs, cz + bs, ci
}

func (d *detailBuilder) edgeFlag(va, vb mgl32.Vec3, vpoly []mgl32.Vec3) uint8 {
	const thrSqr = 0.001 * 0.001
	n := len(vpoly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if d.distPtSeg2d(va, vpoly[j], vpoly[i]) < thrSqr &&
			d.distPtSeg2d(vb, vpoly[j], vpoly[i]) < thrSqr {
			return 1
		}
	}
	return 0
}

// triFlags marks which triangle edges lie on the polygon boundary.
func (d *detailBuilder) triFlags(va, vb, vc mgl32.Vec3, vpoly []mgl32.Vec3) uint8 {
	var flags uint8
	flags |= d.edgeFlag(va, vb, vpoly) << 0
	flags |= d.edgeFlag(vb, vc, vpoly) << 2
	flags |= d.edgeFlag(vc, va, vpoly) << 4
	return flags
}

// BuildDetailMesh builds per-polygon height detail for the polygon mesh.
// sampleDist and sampleMaxError are in world units.
func BuildDetailMesh(pmesh *PolygonNavmesh, chf *CompactHeightfield, sampleDist, sampleMaxError float32, logger *zap.Logger) (*DetailNavmesh, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dmesh := &DetailNavmesh{}
	if pmesh.VertexCount == 0 || pmesh.PolygonCount == 0 {
		return dmesh, nil
	}

	nvp := pmesh.NVP
	cs := pmesh.CellSize
	ch := pmesh.CellHeight
	orig := pmesh.Min
	borderSize := pmesh.BorderSize

	b := &detailBuilder{
		chf:            chf,
		logger:         logger,
		sampleDist:     sampleDist,
		sampleMaxError: sampleMaxError,
		searchRadius:   max(1, int(math.Ceil(float64(pmesh.MaxEdgeError)))),
	}

	// Per-polygon cell bounds, padded one cell, clamped to the grid.
	bounds := make([][4]int, pmesh.PolygonCount)
	maxhw, maxhh := 0, 0
	for i := 0; i < pmesh.PolygonCount; i++ {
		p := pmesh.polygon(i)
		xmin, xmax := chf.Width, 0
		zmin, zmax := chf.Height, 0
		for j := 0; j < nvp; j++ {
			if p[j] == NullIndex {
				break
			}
			v := int(p[j]) * 3
			xmin = min(xmin, int(pmesh.Vertices[v]))
			xmax = max(xmax, int(pmesh.Vertices[v]))
			zmin = min(zmin, int(pmesh.Vertices[v+2]))
			zmax = max(zmax, int(pmesh.Vertices[v+2]))
		}
		xmin = max(0, xmin-1)
		xmax = min(chf.Width, xmax+1)
		zmin = max(0, zmin-1)
		zmax = min(chf.Height, zmax+1)
		bounds[i] = [4]int{xmin, xmax, zmin, zmax}
		if xmin >= xmax || zmin >= zmax {
			continue
		}
		maxhw = max(maxhw, xmax-xmin)
		maxhh = max(maxhh, zmax-zmin)
	}
	b.hp.data = make([]uint16, maxhw*maxhh)

	dmesh.Meshes = make([][4]uint32, pmesh.PolygonCount)

	poly := make([]mgl32.Vec3, nvp)
	var tris [][4]int
	for i := 0; i < pmesh.PolygonCount; i++ {
		p := pmesh.polygon(i)

		npoly := 0
		for j := 0; j < nvp; j++ {
			if p[j] == NullIndex {
				break
			}
			v := int(p[j]) * 3
			poly[j] = mgl32.Vec3{
				float32(pmesh.Vertices[v]) * cs,
				float32(pmesh.Vertices[v+1]) * ch,
				float32(pmesh.Vertices[v+2]) * cs,
			}
			npoly++
		}

		b.hp.xmin = bounds[i][0]
		b.hp.ymin = bounds[i][2]
		b.hp.width = bounds[i][1] - bounds[i][0]
		b.hp.height = bounds[i][3] - bounds[i][2]
		b.getHeightData(p, npoly, pmesh.Vertices, borderSize, pmesh.Regions[i])

		verts, err := b.buildPolyDetail(poly[:npoly], &tris)
		if err != nil {
			return nil, err
		}

		// To world space. The extra cell of height compensates for the
		// span floor sitting under the walkable surface.
		for j := range verts {
			verts[j] = verts[j].Add(mgl32.Vec3{orig[0], orig[1] + ch, orig[2]})
		}
		polyWorld := make([]mgl32.Vec3, npoly)
		for j := 0; j < npoly; j++ {
			polyWorld[j] = poly[j].Add(orig)
		}

		dmesh.Meshes[i] = [4]uint32{
			uint32(len(dmesh.Vertices)),
			uint32(len(verts)),
			uint32(len(dmesh.Triangles)),
			uint32(len(tris)),
		}
		dmesh.Vertices = append(dmesh.Vertices, verts...)
		for _, t := range tris {
			dmesh.Triangles = append(dmesh.Triangles, [4]uint8{
				uint8(t[0]), uint8(t[1]), uint8(t[2]),
				b.triFlags(verts[t[0]], verts[t[1]], verts[t[2]], polyWorld),
			})
		}
	}

	if b.degenerateSegs > 0 {
		logger.Warn("distance checks hit zero-length segments",
			zap.Int("count", b.degenerateSegs))
	}
	return dmesh, nil
}
