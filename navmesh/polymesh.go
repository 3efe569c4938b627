package navmesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"navgen/common"
)

// NullIndex is the sentinel for an unused polygon vertex slot or a missing
// polygon neighbour.
const NullIndex = 0xffff

const maxVertexBuckets = 1 << 12

// vertexHashSize sizes the welding table to the next power of two above
// the vertex estimate, capped at maxVertexBuckets.
func vertexHashSize(nverts int) int {
	if nverts < 16 {
		nverts = 16
	}
	n := int(common.NextPow2(uint32(nverts)))
	if n > maxVertexBuckets {
		n = maxVertexBuckets
	}
	return n
}

// PolygonNavmesh is the convex polygon mesh built from region contours.
// Vertices are voxel-space triplets; each polygon occupies 2*NVP entries in
// Polygons: NVP vertex indices followed by NVP neighbour polygon indices,
// both padded with NullIndex.
type PolygonNavmesh struct {
	Vertices     []uint16
	Polygons     []uint16
	Regions      []RegionId
	Flags        []uint16
	Areas        []AreaType
	VertexCount  int
	PolygonCount int
	NVP          int
	Min          mgl32.Vec3
	Max          mgl32.Vec3
	CellSize     float32
	CellHeight   float32
	BorderSize   int
	MaxEdgeError float32
}

// polygon returns the 2*NVP slice for polygon i.
func (m *PolygonNavmesh) polygon(i int) []uint16 {
	return m.Polygons[i*m.NVP*2 : (i+1)*m.NVP*2]
}

func countPolyVerts(p []uint16, nvp int) int {
	for i := 0; i < nvp; i++ {
		if p[i] == NullIndex {
			return i
		}
	}
	return nvp
}

func uleft(a, b, c []uint16) bool {
	return (int32(b[0])-int32(a[0]))*(int32(c[2])-int32(a[2]))-
		(int32(c[0])-int32(a[0]))*(int32(b[2])-int32(a[2])) < 0
}

func computeVertexHash(x, y, z int32, mask int) int {
	const (
		h1 = 0x8da6b343
		h2 = 0xd8163841
		h3 = 0xcb1ab31f
	)
	n := uint32(h1)*uint32(x) + uint32(h2)*uint32(y) + uint32(h3)*uint32(z)
	return int(n) & mask
}

// addVertex dedupes vertices through a spatial hash. Vertices on the same
// xz cell within two height units collapse to one.
func addVertex(x, y, z uint16, verts []uint16, firstVert, nextVert []int32, nv *int) (uint16, []uint16) {
	bucket := computeVertexHash(int32(x), 0, int32(z), len(firstVert)-1)
	for i := firstVert[bucket]; i != -1; i = nextVert[i] {
		v := verts[i*3 : i*3+3]
		if v[0] == x && v[2] == z && absInt(int(v[1])-int(y)) <= 2 {
			return uint16(i), verts
		}
	}
	i := *nv
	*nv++
	verts = append(verts, x, y, z)
	nextVert[i] = firstVert[bucket]
	firstVert[bucket] = int32(i)
	return uint16(i), verts
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func prevIndex(i, n int) int {
	if i-1 >= 0 {
		return i - 1
	}
	return n - 1
}

func nextIndex(i, n int) int {
	if i+1 < n {
		return i + 1
	}
	return 0
}

func vequalVert(a, b ContourVertex) bool {
	return a[0] == b[0] && a[2] == b[2]
}

const earFlag = 0x80000000

// diagonalie reports whether (i, j) is a proper internal or external
// diagonal of the polygon, ignoring edges incident to i or j.
func diagonalie(i, j, n int, verts []ContourVertex, indices []uint32) bool {
	d0 := verts[indices[i]&^earFlag]
	d1 := verts[indices[j]&^earFlag]
	for k := 0; k < n; k++ {
		k1 := nextIndex(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := verts[indices[k]&^earFlag]
		p1 := verts[indices[k1]&^earFlag]
		if vequalVert(d0, p0) || vequalVert(d1, p0) || vequalVert(d0, p1) || vequalVert(d1, p1) {
			continue
		}
		if intersectVert(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

func inConeIdx(i, j, n int, verts []ContourVertex, indices []uint32) bool {
	pi := verts[indices[i]&^earFlag]
	pj := verts[indices[j]&^earFlag]
	pi1 := verts[indices[nextIndex(i, n)]&^earFlag]
	pin1 := verts[indices[prevIndex(i, n)]&^earFlag]

	if leftOnVert(pin1, pi, pi1) {
		return leftVert(pi, pj, pin1) && leftVert(pj, pi, pi1)
	}
	return !(leftOnVert(pi, pj, pi1) && leftOnVert(pj, pi, pin1))
}

func diagonalIdx(i, j, n int, verts []ContourVertex, indices []uint32) bool {
	return inConeIdx(i, j, n, verts, indices) && diagonalie(i, j, n, verts, indices)
}

// Loose variants accept collinear and touching cases, used to salvage
// triangulations the strict test rejects.
func diagonalieLoose(i, j, n int, verts []ContourVertex, indices []uint32) bool {
	d0 := verts[indices[i]&^earFlag]
	d1 := verts[indices[j]&^earFlag]
	for k := 0; k < n; k++ {
		k1 := nextIndex(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := verts[indices[k]&^earFlag]
		p1 := verts[indices[k1]&^earFlag]
		if vequalVert(d0, p0) || vequalVert(d1, p0) || vequalVert(d0, p1) || vequalVert(d1, p1) {
			continue
		}
		if intersectPropVert(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

func inConeLoose(i, j, n int, verts []ContourVertex, indices []uint32) bool {
	pi := verts[indices[i]&^earFlag]
	pj := verts[indices[j]&^earFlag]
	pi1 := verts[indices[nextIndex(i, n)]&^earFlag]
	pin1 := verts[indices[prevIndex(i, n)]&^earFlag]

	if leftOnVert(pin1, pi, pi1) {
		return leftOnVert(pi, pj, pin1) && leftOnVert(pj, pi, pi1)
	}
	return !(leftOnVert(pi, pj, pi1) && leftOnVert(pj, pi, pin1))
}

func diagonalLoose(i, j, n int, verts []ContourVertex, indices []uint32) bool {
	return inConeLoose(i, j, n, verts, indices) && diagonalieLoose(i, j, n, verts, indices)
}

// triangulate ear-clips the polygon described by indices into tris. A
// negative return means the polygon was not fully consumed and abs(n)
// triangles were still produced on a best-effort basis.
func triangulate(verts []ContourVertex, indices []uint32, tris *[]uint32) int {
	n := len(indices)
	// Pre-mark removable ears.
	for i := 0; i < n; i++ {
		i1 := nextIndex(i, n)
		i2 := nextIndex(i1, n)
		if diagonalIdx(i, i2, n, verts, indices) {
			indices[i1] |= earFlag
		}
	}

	ntris := 0
	for n > 3 {
		minLen := -1
		mini := -1
		for i := 0; i < n; i++ {
			i1 := nextIndex(i, n)
			if indices[i1]&earFlag != 0 {
				p0 := verts[indices[i]&^earFlag]
				p2 := verts[indices[nextIndex(i1, n)]&^earFlag]
				dx := int(p2[0] - p0[0])
				dz := int(p2[2] - p0[2])
				l := dx*dx + dz*dz
				if minLen < 0 || l < minLen {
					minLen = l
					mini = i
				}
			}
		}

		if mini == -1 {
			// The contour is messed up; try the looser diagonal test.
			for i := 0; i < n; i++ {
				i1 := nextIndex(i, n)
				i2 := nextIndex(i1, n)
				if diagonalLoose(i, i2, n, verts, indices) {
					p0 := verts[indices[i]&^earFlag]
					p2 := verts[indices[i2]&^earFlag]
					dx := int(p2[0] - p0[0])
					dz := int(p2[2] - p0[2])
					l := dx*dx + dz*dz
					if minLen < 0 || l < minLen {
						minLen = l
						mini = i
					}
				}
			}
			if mini == -1 {
				return -ntris
			}
		}

		i := mini
		i1 := nextIndex(i, n)
		i2 := nextIndex(i1, n)

		*tris = append(*tris, indices[i]&^earFlag, indices[i1]&^earFlag, indices[i2]&^earFlag)
		ntris++

		// Remove the clipped vertex.
		n--
		for k := i1; k < n; k++ {
			indices[k] = indices[k+1]
		}
		if i1 >= n {
			i1 = 0
		}
		i = prevIndex(i1, n)
		if diagonalIdx(prevIndex(i, n), i1, n, verts, indices) {
			indices[i] |= earFlag
		} else {
			indices[i] &^= earFlag
		}
		if diagonalIdx(i, nextIndex(i1, n), n, verts, indices) {
			indices[i1] |= earFlag
		} else {
			indices[i1] &^= earFlag
		}
	}

	*tris = append(*tris, indices[0]&^earFlag, indices[1]&^earFlag, indices[2]&^earFlag)
	ntris++
	return ntris
}

// getPolyMergeValue returns the squared length of the shared edge when pa
// and pb can merge into one convex polygon within nvp vertices, or -1.
func getPolyMergeValue(pa, pb []uint16, verts []uint16, nvp int) (ea, eb, value int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	if na+nb-2 > nvp {
		return 0, 0, -1
	}

	ea, eb = -1, -1
	for i := 0; i < na; i++ {
		va0 := pa[i]
		va1 := pa[(i+1)%na]
		if va0 > va1 {
			va0, va1 = va1, va0
		}
		for j := 0; j < nb; j++ {
			vb0 := pb[j]
			vb1 := pb[(j+1)%nb]
			if vb0 > vb1 {
				vb0, vb1 = vb1, vb0
			}
			if va0 == vb0 && va1 == vb1 {
				ea = i
				eb = j
				break
			}
		}
	}
	if ea == -1 || eb == -1 {
		return 0, 0, -1
	}

	// The merged polygon must stay convex around both junction corners.
	va := pa[(ea+na-1)%na]
	vb := pa[ea]
	vc := pb[(eb+2)%nb]
	if !uleft(verts[va*3:va*3+3], verts[vb*3:vb*3+3], verts[vc*3:vc*3+3]) {
		return 0, 0, -1
	}
	va = pb[(eb+nb-1)%nb]
	vb = pb[eb]
	vc = pa[(ea+2)%na]
	if !uleft(verts[va*3:va*3+3], verts[vb*3:vb*3+3], verts[vc*3:vc*3+3]) {
		return 0, 0, -1
	}

	va = pa[ea]
	vb = pa[(ea+1)%na]
	dx := int(verts[va*3]) - int(verts[vb*3])
	dz := int(verts[va*3+2]) - int(verts[vb*3+2])
	return ea, eb, dx*dx + dz*dz
}

func mergePolyVerts(pa, pb []uint16, ea, eb int, tmp []uint16, nvp int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	for i := range tmp[:nvp] {
		tmp[i] = NullIndex
	}
	n := 0
	for i := 0; i < na-1; i++ {
		tmp[n] = pa[(ea+1+i)%na]
		n++
	}
	for i := 0; i < nb-1; i++ {
		tmp[n] = pb[(eb+1+i)%nb]
		n++
	}
	copy(pa[:nvp], tmp[:nvp])
}

type meshEdge struct {
	vert     [2]uint16
	polyEdge [2]uint16
	poly     [2]uint16
}

// buildMeshAdjacency fills the neighbour half of every polygon from shared
// edges.
func buildMeshAdjacency(polys []uint16, npolys, nverts, vertsPerPoly int) {
	maxEdgeCount := npolys * vertsPerPoly
	firstEdge := make([]uint16, nverts)
	nextEdge := make([]uint16, maxEdgeCount)
	for i := range firstEdge {
		firstEdge[i] = NullIndex
	}
	edges := make([]meshEdge, 0, maxEdgeCount)

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == NullIndex {
				break
			}
			v0 := t[j]
			v1 := t[0]
			if j+1 < vertsPerPoly && t[j+1] != NullIndex {
				v1 = t[j+1]
			}
			if v0 < v1 {
				edges = append(edges, meshEdge{
					vert:     [2]uint16{v0, v1},
					poly:     [2]uint16{uint16(i), uint16(i)},
					polyEdge: [2]uint16{uint16(j), 0},
				})
				nextEdge[len(edges)-1] = firstEdge[v0]
				firstEdge[v0] = uint16(len(edges) - 1)
			}
		}
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == NullIndex {
				break
			}
			v0 := t[j]
			v1 := t[0]
			if j+1 < vertsPerPoly && t[j+1] != NullIndex {
				v1 = t[j+1]
			}
			if v0 > v1 {
				for e := firstEdge[v1]; e != NullIndex; e = nextEdge[e] {
					edge := &edges[e]
					if edge.vert[1] == v0 && edge.poly[0] == edge.poly[1] {
						edge.poly[1] = uint16(i)
						edge.polyEdge[1] = uint16(j)
						break
					}
				}
			}
		}
	}

	for i := range edges {
		e := &edges[i]
		if e.poly[0] != e.poly[1] {
			p0 := polys[int(e.poly[0])*vertsPerPoly*2:]
			p1 := polys[int(e.poly[1])*vertsPerPoly*2:]
			p0[vertsPerPoly+int(e.polyEdge[0])] = e.poly[1]
			p1[vertsPerPoly+int(e.polyEdge[1])] = e.poly[0]
		}
	}
}

// canRemoveVertex checks that collapsing rem leaves a hole the
// triangulator can close: at most two open edges around it.
func (m *PolygonNavmesh) canRemoveVertex(rem uint16) bool {
	nvp := m.NVP

	numRemainingEdges := 0
	for i := 0; i < m.PolygonCount; i++ {
		p := m.polygon(i)
		nv := countPolyVerts(p, nvp)
		numRemoved := 0
		numVerts := 0
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				numRemoved++
			}
			numVerts++
		}
		if numRemoved > 0 {
			numRemainingEdges += numVerts - (numRemoved + 1)
		}
	}
	if numRemainingEdges <= 2 {
		// There would be too few edges remaining to create a polygon.
		return false
	}

	// Count how many shared edges each neighbouring vertex has with rem.
	type edgeCount struct {
		a, b  uint16
		count int
	}
	var edges []edgeCount
	for i := 0; i < m.PolygonCount; i++ {
		p := m.polygon(i)
		nv := countPolyVerts(p, nvp)
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				continue
			}
			a, b := p[j], p[k]
			if b == rem {
				a, b = b, a
			}
			exists := false
			for e := range edges {
				if edges[e].b == b {
					edges[e].count++
					exists = true
				}
			}
			if !exists {
				edges = append(edges, edgeCount{a: a, b: b, count: 1})
			}
		}
	}

	// A vertex on more than two open edges cannot be removed without
	// tearing the mesh.
	numOpenEdges := 0
	for _, e := range edges {
		if e.count < 2 {
			numOpenEdges++
		}
	}
	return numOpenEdges <= 2
}

// removeVertex collapses vertex rem, retriangulates the resulting hole and
// merges the new triangles back into polygons.
func (m *PolygonNavmesh) removeVertex(rem uint16, maxPolys int, logger *zap.Logger) error {
	nvp := m.NVP

	// Collect the boundary edges of the hole, then drop the polygons that
	// use the vertex.
	type holeEdge struct {
		a, b uint16
		reg  RegionId
		area AreaType
	}
	var edges []holeEdge
	for i := 0; i < m.PolygonCount; i++ {
		p := m.polygon(i)
		nv := countPolyVerts(p, nvp)
		uses := false
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				uses = true
				break
			}
		}
		if !uses {
			continue
		}
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				edges = append(edges, holeEdge{a: p[k], b: p[j], reg: m.Regions[i], area: m.Areas[i]})
			}
		}
		// Swap-remove the polygon.
		last := m.polygon(m.PolygonCount - 1)
		copy(p, last)
		m.Regions[i] = m.Regions[m.PolygonCount-1]
		m.Areas[i] = m.Areas[m.PolygonCount-1]
		m.PolygonCount--
		i--
	}

	// Remove the vertex and shift indices above it.
	copy(m.Vertices[int(rem)*3:], m.Vertices[(int(rem)+1)*3:])
	m.Vertices = m.Vertices[:len(m.Vertices)-3]
	m.VertexCount--
	for i := 0; i < m.PolygonCount; i++ {
		p := m.polygon(i)
		nv := countPolyVerts(p, nvp)
		for j := 0; j < nv; j++ {
			if p[j] > rem {
				p[j]--
			}
		}
	}
	for i := range edges {
		if edges[i].a > rem {
			edges[i].a--
		}
		if edges[i].b > rem {
			edges[i].b--
		}
	}

	if len(edges) == 0 {
		return nil
	}

	// Chain the edges into a closed hole loop.
	hole := []uint16{edges[0].a, edges[0].b}
	hreg := []RegionId{edges[0].reg, edges[0].reg}
	harea := []AreaType{edges[0].area, edges[0].area}
	edges = edges[1:]
	for len(edges) > 0 {
		match := false
		for i := 0; i < len(edges); i++ {
			e := edges[i]
			add := false
			if hole[0] == e.b {
				hole = append([]uint16{e.a}, hole...)
				hreg = append([]RegionId{e.reg}, hreg...)
				harea = append([]AreaType{e.area}, harea...)
				add = true
			} else if hole[len(hole)-1] == e.a {
				hole = append(hole, e.b)
				hreg = append(hreg, e.reg)
				harea = append(harea, e.area)
				add = true
			}
			if add {
				edges = append(edges[:i], edges[i+1:]...)
				match = true
				i--
			}
		}
		if !match {
			break
		}
	}
	// The loop stores each vertex once; the duplicated closing vertex is
	// implicit.
	if len(hole) > 1 && hole[0] == hole[len(hole)-1] {
		hole = hole[:len(hole)-1]
		hreg = hreg[:len(hreg)-1]
		harea = harea[:len(harea)-1]
	}
	if len(hole) < 3 {
		return nil
	}

	tverts := make([]ContourVertex, len(hole))
	thole := make([]uint32, len(hole))
	for i, v := range hole {
		tverts[i] = ContourVertex{
			int32(m.Vertices[int(v)*3]),
			int32(m.Vertices[int(v)*3+1]),
			int32(m.Vertices[int(v)*3+2]),
			0,
		}
		thole[i] = uint32(i)
	}

	var tris []uint32
	ntris := triangulate(tverts, thole, &tris)
	if ntris < 0 {
		ntris = -ntris
		logger.Warn("hole triangulation left a partial result",
			zap.Int("vertex", int(rem)))
	}

	// Merge the hole triangles into polygons, same as the main pass.
	polys := make([]uint16, ntris*nvp)
	pregs := make([]RegionId, ntris)
	pareas := make([]AreaType, ntris)
	for i := range polys {
		polys[i] = NullIndex
	}
	npolys := 0
	for t := 0; t < ntris; t++ {
		a, b, c := tris[t*3], tris[t*3+1], tris[t*3+2]
		if a != b && a != c && b != c {
			polys[npolys*nvp] = hole[a]
			polys[npolys*nvp+1] = hole[b]
			polys[npolys*nvp+2] = hole[c]
			pregs[npolys] = hreg[a]
			pareas[npolys] = harea[a]
			npolys++
		}
	}
	if npolys == 0 {
		return nil
	}

	if nvp > 3 {
		for {
			bestValue := 0
			bestPa, bestPb, bestEa, bestEb := 0, 0, 0, 0
			for j := 0; j < npolys-1; j++ {
				pj := polys[j*nvp:]
				for k := j + 1; k < npolys; k++ {
					pk := polys[k*nvp:]
					ea, eb, v := getPolyMergeValue(pj, pk, m.Vertices, nvp)
					if v > bestValue {
						bestValue = v
						bestPa, bestPb, bestEa, bestEb = j, k, ea, eb
					}
				}
			}
			if bestValue <= 0 {
				break
			}
			tmp := make([]uint16, nvp)
			mergePolyVerts(polys[bestPa*nvp:], polys[bestPb*nvp:], bestEa, bestEb, tmp, nvp)
			if pregs[bestPa] != pregs[bestPb] {
				pregs[bestPa] = NoRegion
			}
			copy(polys[bestPb*nvp:], polys[(npolys-1)*nvp:npolys*nvp])
			pregs[bestPb] = pregs[npolys-1]
			pareas[bestPb] = pareas[npolys-1]
			npolys--
		}
	}

	for i := 0; i < npolys; i++ {
		if m.PolygonCount >= maxPolys {
			return &MeshError{Stage: "polymesh", Detail: "too many polygons after vertex removal"}
		}
		m.Polygons = append(m.Polygons, make([]uint16, nvp*2)...)
		p := m.polygon(m.PolygonCount)
		for j := range p {
			p[j] = NullIndex
		}
		copy(p[:nvp], polys[i*nvp:(i+1)*nvp])
		m.Regions = append(m.Regions[:m.PolygonCount], pregs[i])
		m.Areas = append(m.Areas[:m.PolygonCount], pareas[i])
		m.PolygonCount++
	}
	return nil
}

// BuildPolyMesh converts the contour set into a mesh of convex polygons
// with up to nvp vertices each.
func BuildPolyMesh(cset *ContourSet, nvp int, logger *zap.Logger) (*PolygonNavmesh, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxVertices := 0
	maxTris := 0
	maxVertsPerCont := 0
	for _, cont := range cset.Contours {
		n := len(cont.Vertices)
		if n < 3 {
			continue
		}
		maxVertices += n
		maxTris += n - 2
		maxVertsPerCont = max(maxVertsPerCont, n)
	}
	if maxVertices >= 0xfffe {
		return nil, &MeshError{Stage: "polymesh", Detail: "too many vertices"}
	}

	mesh := &PolygonNavmesh{
		NVP:          nvp,
		Min:          cset.Min,
		Max:          cset.Max,
		CellSize:     cset.CellSize,
		CellHeight:   cset.CellHeight,
		BorderSize:   cset.BorderSize,
		MaxEdgeError: cset.MaxError,
		Vertices:     make([]uint16, 0, maxVertices*3),
		Polygons:     make([]uint16, 0, maxTris*nvp*2),
		Regions:      make([]RegionId, maxTris),
		Areas:        make([]AreaType, maxTris),
	}

	vflags := make([]uint8, maxVertices)
	firstVert := make([]int32, vertexHashSize(maxVertices))
	for i := range firstVert {
		firstVert[i] = -1
	}
	nextVert := make([]int32, maxVertices)
	indices := make([]uint32, maxVertsPerCont)
	polys := make([]uint16, (maxVertsPerCont+1)*nvp)
	tmpPoly := make([]uint16, nvp)

	for _, cont := range cset.Contours {
		n := len(cont.Vertices)
		if n < 3 {
			continue
		}

		indices = indices[:n]
		for j := range indices {
			indices[j] = uint32(j)
		}
		var tris []uint32
		ntris := triangulate(cont.Vertices, indices, &tris)
		if ntris <= 0 {
			// Keep whatever triangles came out; losing the region entirely
			// would punch a hole in the mesh.
			logger.Warn("contour triangulation left a partial result",
				zap.Uint16("region", uint16(cont.Region)))
			ntris = -ntris
		}

		// Add and merge vertices.
		for j := 0; j < n; j++ {
			v := cont.Vertices[j]
			var idx uint16
			idx, mesh.Vertices = addVertex(uint16(v[0]), uint16(v[1]), uint16(v[2]),
				mesh.Vertices, firstVert, nextVert, &mesh.VertexCount)
			indices[j] = uint32(idx)
			if v[3]&borderVertexFlag != 0 {
				// The vertex only exists to split a tile border edge and
				// can go once adjacency is resolvable without it.
				vflags[idx] = 1
			}
		}

		// Build initial polygons from the triangles.
		npolys := 0
		for i := range polys {
			polys[i] = NullIndex
		}
		for t := 0; t < ntris; t++ {
			a, b, c := tris[t*3], tris[t*3+1], tris[t*3+2]
			if a != b && a != c && b != c {
				polys[npolys*nvp] = uint16(indices[a])
				polys[npolys*nvp+1] = uint16(indices[b])
				polys[npolys*nvp+2] = uint16(indices[c])
				npolys++
			}
		}
		if npolys == 0 {
			continue
		}

		// Greedily merge along the longest shared edge.
		if nvp > 3 {
			for {
				bestValue := 0
				bestPa, bestPb, bestEa, bestEb := 0, 0, 0, 0
				for j := 0; j < npolys-1; j++ {
					pj := polys[j*nvp:]
					for k := j + 1; k < npolys; k++ {
						pk := polys[k*nvp:]
						ea, eb, v := getPolyMergeValue(pj, pk, mesh.Vertices, nvp)
						if v > bestValue {
							bestValue = v
							bestPa, bestPb, bestEa, bestEb = j, k, ea, eb
						}
					}
				}
				if bestValue <= 0 {
					break
				}
				mergePolyVerts(polys[bestPa*nvp:], polys[bestPb*nvp:], bestEa, bestEb, tmpPoly, nvp)
				copy(polys[bestPb*nvp:], polys[(npolys-1)*nvp:npolys*nvp])
				npolys--
			}
		}

		for i := 0; i < npolys; i++ {
			if mesh.PolygonCount >= maxTris {
				return nil, &MeshError{Stage: "polymesh", Detail: "too many polygons"}
			}
			mesh.Polygons = append(mesh.Polygons, make([]uint16, nvp*2)...)
			p := mesh.polygon(mesh.PolygonCount)
			for j := range p {
				p[j] = NullIndex
			}
			copy(p[:nvp], polys[i*nvp:(i+1)*nvp])
			mesh.Regions[mesh.PolygonCount] = cont.Region
			mesh.Areas[mesh.PolygonCount] = cont.Area
			mesh.PolygonCount++
		}
	}

	// Remove the border-split vertices.
	for i := 0; i < mesh.VertexCount; i++ {
		if vflags[i] == 0 {
			continue
		}
		if !mesh.canRemoveVertex(uint16(i)) {
			continue
		}
		if err := mesh.removeVertex(uint16(i), maxTris, logger); err != nil {
			return nil, err
		}
		// Vertex removal shifts the flags down with the vertices.
		copy(vflags[i:], vflags[i+1:mesh.VertexCount+1])
		i--
	}

	mesh.Regions = mesh.Regions[:mesh.PolygonCount]
	mesh.Areas = mesh.Areas[:mesh.PolygonCount]
	mesh.Flags = make([]uint16, mesh.PolygonCount)

	buildMeshAdjacency(mesh.Polygons, mesh.PolygonCount, mesh.VertexCount, nvp)

	// Mark portal edges on the tile border.
	if mesh.BorderSize > 0 {
		w := uint16(cset.Width)
		h := uint16(cset.Height)
		for i := 0; i < mesh.PolygonCount; i++ {
			p := mesh.polygon(i)
			for j := 0; j < nvp; j++ {
				if p[j] == NullIndex {
					break
				}
				if p[nvp+j] != NullIndex {
					continue
				}
				nj := j + 1
				if nj >= nvp || p[nj] == NullIndex {
					nj = 0
				}
				va := mesh.Vertices[int(p[j])*3 : int(p[j])*3+3]
				vb := mesh.Vertices[int(p[nj])*3 : int(p[nj])*3+3]
				switch {
				case va[0] == 0 && vb[0] == 0:
					p[nvp+j] = 0x8000
				case va[2] == h && vb[2] == h:
					p[nvp+j] = 0x8000 | 1
				case va[0] == w && vb[0] == w:
					p[nvp+j] = 0x8000 | 2
				case va[2] == 0 && vb[2] == 0:
					p[nvp+j] = 0x8000 | 3
				}
			}
		}
	}

	if mesh.VertexCount > NullIndex {
		return nil, &MeshError{Stage: "polymesh", Detail: "vertex count exceeds index range"}
	}
	if mesh.PolygonCount > NullIndex {
		return nil, &MeshError{Stage: "polymesh", Detail: "polygon count exceeds index range"}
	}
	return mesh, nil
}
