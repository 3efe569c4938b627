package navmesh

import (
	"go.uber.org/zap"

	"navgen/common"
)

// calculateDistanceField computes the raw chamfer distance to the nearest
// area or region boundary for every span.
func (chf *CompactHeightfield) calculateDistanceField(src []uint16) uint16 {
	for i := range src {
		src[i] = 0xffff
	}

	// Mark boundary cells: spans with a missing neighbour or a neighbour of
	// a different area.
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				area := chf.Areas[i]
				neighborCount := 0
				for dir := 0; dir < 4; dir++ {
					if con := span.Con(dir); con != notConnected {
						ai := chf.conIndex(x, z, dir, con)
						if area == chf.Areas[ai] {
							neighborCount++
						}
					}
				}
				if neighborCount != 4 {
					src[i] = 0
				}
			}
		}
	}

	relax := func(i int, d uint16) {
		if d < src[i] {
			src[i] = d
		}
	}

	// Pass 1
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				if con := span.Con(0); con != notConnected {
					// (-1,0)
					ai := chf.conIndex(x, z, 0, con)
					relax(i, src[ai]+2)
					// (-1,-1)
					aSpan := &chf.Spans[ai]
					if dcon := aSpan.Con(3); dcon != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(0), z+common.DirOffsetZ(0), 3, dcon)
						relax(i, src[bi]+3)
					}
				}
				if con := span.Con(3); con != notConnected {
					// (0,-1)
					ai := chf.conIndex(x, z, 3, con)
					relax(i, src[ai]+2)
					// (1,-1)
					aSpan := &chf.Spans[ai]
					if dcon := aSpan.Con(2); dcon != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(3), z+common.DirOffsetZ(3), 2, dcon)
						relax(i, src[bi]+3)
					}
				}
			}
		}
	}

	// Pass 2
	for z := chf.Height - 1; z >= 0; z-- {
		for x := chf.Width - 1; x >= 0; x-- {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				if con := span.Con(2); con != notConnected {
					// (1,0)
					ai := chf.conIndex(x, z, 2, con)
					relax(i, src[ai]+2)
					// (1,1)
					aSpan := &chf.Spans[ai]
					if dcon := aSpan.Con(1); dcon != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(2), z+common.DirOffsetZ(2), 1, dcon)
						relax(i, src[bi]+3)
					}
				}
				if con := span.Con(1); con != notConnected {
					// (0,1)
					ai := chf.conIndex(x, z, 1, con)
					relax(i, src[ai]+2)
					// (-1,1)
					aSpan := &chf.Spans[ai]
					if dcon := aSpan.Con(0); dcon != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(1), z+common.DirOffsetZ(1), 0, dcon)
						relax(i, src[bi]+3)
					}
				}
			}
		}
	}

	maxDist := uint16(0)
	for i := range src {
		maxDist = max(maxDist, src[i])
	}
	return maxDist
}

// boxBlur smooths the distance field with a 3x3 box average, keeping values
// at or below thr unchanged.
func (chf *CompactHeightfield) boxBlur(thr uint16, src, dst []uint16) {
	thr *= 2
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				cd := src[i]
				if cd <= thr {
					dst[i] = cd
					continue
				}

				d := int(cd)
				for dir := 0; dir < 4; dir++ {
					con := span.Con(dir)
					if con == notConnected {
						d += int(cd) * 2
						continue
					}
					ai := chf.conIndex(x, z, dir, con)
					d += int(src[ai])

					aSpan := &chf.Spans[ai]
					dir2 := (dir + 1) & 0x3
					if con2 := aSpan.Con(dir2); con2 != notConnected {
						bi := chf.conIndex(x+common.DirOffsetX(dir), z+common.DirOffsetZ(dir), dir2, con2)
						d += int(src[bi])
					} else {
						d += int(cd)
					}
				}
				dst[i] = uint16((d + 5) / 9)
			}
		}
	}
}

// BuildDistanceField computes the blurred distance-to-boundary field the
// watershed floods from and records its maximum in MaxDistance.
func (chf *CompactHeightfield) BuildDistanceField() {
	src := make([]uint16, chf.SpanCount)
	dst := make([]uint16, chf.SpanCount)

	chf.MaxDistance = chf.calculateDistanceField(src)
	chf.boxBlur(1, src, dst)
	chf.Dist = dst
}

type levelStackEntry struct {
	x, z  int
	index int
}

// paintRectRegion assigns regId to every walkable span in the rectangle.
func (chf *CompactHeightfield) paintRectRegion(minX, maxX, minZ, maxZ int, regID RegionId, srcReg []RegionId) {
	for z := minZ; z < maxZ; z++ {
		for x := minX; x < maxX; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				if chf.Areas[i].Walkable() {
					srcReg[i] = regID
				}
			}
		}
	}
}

// floodRegion grows a new region from the seed span (x, z, i) across spans
// at or above the current level. It backs off when the basin touches an
// existing region, leaving that seam for expandRegions.
func (chf *CompactHeightfield) floodRegion(x, z, i, level int, r RegionId,
	srcReg []RegionId, srcDist []uint16, stack *[]levelStackEntry) bool {
	area := chf.Areas[i]

	*stack = (*stack)[:0]
	*stack = append(*stack, levelStackEntry{x, z, i})
	srcReg[i] = r
	srcDist[i] = 0

	lev := 0
	if level >= 2 {
		lev = level - 2
	}
	count := 0

	for len(*stack) > 0 {
		back := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
		cx, cz, ci := back.x, back.z, back.index
		cs := &chf.Spans[ci]

		// Check if any of the neighbours already have a valid region set.
		ar := NoRegion
		for dir := 0; dir < 4; dir++ {
			con := cs.Con(dir)
			if con == notConnected {
				continue
			}
			ax := cx + common.DirOffsetX(dir)
			az := cz + common.DirOffsetZ(dir)
			ai := int(chf.Cells[ax+az*chf.Width].Index) + con
			if chf.Areas[ai] != area {
				continue
			}
			nr := srcReg[ai]
			if nr.IsBorder() {
				// Do not take borders into account.
				continue
			}
			if nr != NoRegion && nr != r {
				ar = nr
				break
			}

			aSpan := &chf.Spans[ai]
			dir2 := (dir + 1) & 0x3
			if con2 := aSpan.Con(dir2); con2 != notConnected {
				ax2 := ax + common.DirOffsetX(dir2)
				az2 := az + common.DirOffsetZ(dir2)
				ai2 := int(chf.Cells[ax2+az2*chf.Width].Index) + con2
				if chf.Areas[ai2] != area {
					continue
				}
				nr2 := srcReg[ai2]
				if nr2 != NoRegion && nr2 != r {
					ar = nr2
					break
				}
			}
		}
		if ar != NoRegion {
			srcReg[ci] = NoRegion
			continue
		}

		count++

		// Expand neighbours.
		for dir := 0; dir < 4; dir++ {
			con := cs.Con(dir)
			if con == notConnected {
				continue
			}
			ax := cx + common.DirOffsetX(dir)
			az := cz + common.DirOffsetZ(dir)
			ai := int(chf.Cells[ax+az*chf.Width].Index) + con
			if chf.Areas[ai] != area {
				continue
			}
			if int(chf.Dist[ai]) >= lev && srcReg[ai] == NoRegion {
				srcReg[ai] = r
				srcDist[ai] = 0
				*stack = append(*stack, levelStackEntry{ax, az, ai})
			}
		}
	}

	return count > 0
}

type dirtyEntry struct {
	index    int
	region   RegionId
	distance uint16
}

// expandRegions grows existing regions into unassigned spans at or above
// the current level, preferring the neighbour with the smallest propagated
// distance.
func (chf *CompactHeightfield) expandRegions(maxIter, level int,
	srcReg []RegionId, srcDist []uint16, stack *[]levelStackEntry, fillStack bool) {
	if fillStack {
		// Find cells revealed by the raised level.
		*stack = (*stack)[:0]
		for z := 0; z < chf.Height; z++ {
			for x := 0; x < chf.Width; x++ {
				start, end := chf.cellSpans(x, z)
				for i := start; i < end; i++ {
					if int(chf.Dist[i]) >= level && srcReg[i] == NoRegion && chf.Areas[i].Walkable() {
						*stack = append(*stack, levelStackEntry{x, z, i})
					}
				}
			}
		}
	} else {
		// Mark cells which already have a region.
		for j := range *stack {
			if srcReg[(*stack)[j].index] != NoRegion {
				(*stack)[j].index = -1
			}
		}
	}

	var dirty []dirtyEntry
	iter := 0
	for len(*stack) > 0 {
		failed := 0
		dirty = dirty[:0]

		for j := range *stack {
			x := (*stack)[j].x
			z := (*stack)[j].z
			i := (*stack)[j].index
			if i < 0 {
				failed++
				continue
			}

			r := srcReg[i]
			d2 := uint16(0xffff)
			area := chf.Areas[i]
			span := &chf.Spans[i]
			for dir := 0; dir < 4; dir++ {
				con := span.Con(dir)
				if con == notConnected {
					continue
				}
				ai := chf.conIndex(x, z, dir, con)
				if chf.Areas[ai] != area {
					continue
				}
				if srcReg[ai] != NoRegion && !srcReg[ai].IsBorder() {
					if srcDist[ai]+2 < d2 {
						r = srcReg[ai]
						d2 = srcDist[ai] + 2
					}
				}
			}
			if r != NoRegion {
				(*stack)[j].index = -1 // mark as used
				dirty = append(dirty, dirtyEntry{i, r, d2})
			} else {
				failed++
			}
		}

		for _, e := range dirty {
			srcReg[e.index] = e.region
			srcDist[e.index] = e.distance
		}

		if failed == len(*stack) {
			break
		}
		if level > 0 {
			iter++
			if iter >= maxIter {
				break
			}
		}
	}
}

// sortCellsByLevel distributes unassigned spans into stacks bucketed by
// distance level, two levels per stack.
func (chf *CompactHeightfield) sortCellsByLevel(startLevel int,
	srcReg []RegionId, stacks [][]levelStackEntry, logLevelsPerStack int) {
	startLevel >>= logLevelsPerStack
	for j := range stacks {
		stacks[j] = stacks[j][:0]
	}
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				if !chf.Areas[i].Walkable() || srcReg[i] != NoRegion {
					continue
				}
				level := int(chf.Dist[i]) >> logLevelsPerStack
				sID := startLevel - level
				if sID >= len(stacks) {
					continue
				}
				if sID < 0 {
					sID = 0
				}
				stacks[sID] = append(stacks[sID], levelStackEntry{x, z, i})
			}
		}
	}
}

func appendStacks(src []levelStackEntry, dst *[]levelStackEntry, srcReg []RegionId) {
	for _, e := range src {
		if e.index < 0 || srcReg[e.index] != NoRegion {
			continue
		}
		*dst = append(*dst, e)
	}
}

// region is the bookkeeping record used while merging and filtering the
// raw watershed output.
type region struct {
	spanCount        int
	id               RegionId
	area             AreaType
	remap            bool
	visited          bool
	overlap          bool
	connectsToBorder bool
	ymin, ymax       uint16
	connections      []RegionId
	floors           []RegionId
}

func newRegion(id RegionId) *region {
	return &region{id: id, ymin: 0xffff}
}

func (reg *region) removeAdjacentNeighbours() {
	for i := 0; i < len(reg.connections) && len(reg.connections) > 1; {
		ni := (i + 1) % len(reg.connections)
		if reg.connections[i] == reg.connections[ni] {
			reg.connections = append(reg.connections[:i], reg.connections[i+1:]...)
		} else {
			i++
		}
	}
}

func (reg *region) replaceNeighbour(oldID, newID RegionId) {
	neiChanged := false
	for i := range reg.connections {
		if reg.connections[i] == oldID {
			reg.connections[i] = newID
			neiChanged = true
		}
	}
	for i := range reg.floors {
		if reg.floors[i] == oldID {
			reg.floors[i] = newID
		}
	}
	if neiChanged {
		reg.removeAdjacentNeighbours()
	}
}

func (reg *region) canMergeWith(other *region) bool {
	if reg.area != other.area {
		return false
	}
	n := 0
	for _, c := range reg.connections {
		if c == other.id {
			n++
		}
	}
	if n > 1 {
		return false
	}
	for _, f := range reg.floors {
		if f == other.id {
			return false
		}
	}
	return true
}

func (reg *region) addUniqueFloorRegion(n RegionId) {
	for _, f := range reg.floors {
		if f == n {
			return
		}
	}
	reg.floors = append(reg.floors, n)
}

func (reg *region) connectsToBorderRegion() bool {
	for _, c := range reg.connections {
		if c == NoRegion {
			return true
		}
	}
	return false
}

// mergeInto folds other into reg, splicing the two connection rings at
// their mutual edge.
func mergeRegionInto(reg, other *region) bool {
	aid := reg.id
	bid := other.id

	acon := make([]RegionId, len(reg.connections))
	copy(acon, reg.connections)
	bcon := other.connections

	insa := -1
	for i, c := range acon {
		if c == bid {
			insa = i
			break
		}
	}
	if insa == -1 {
		return false
	}
	insb := -1
	for i, c := range bcon {
		if c == aid {
			insb = i
			break
		}
	}
	if insb == -1 {
		return false
	}

	reg.connections = reg.connections[:0]
	for i, ni := 0, len(acon); i < ni-1; i++ {
		reg.connections = append(reg.connections, acon[(insa+1+i)%ni])
	}
	for i, ni := 0, len(bcon); i < ni-1; i++ {
		reg.connections = append(reg.connections, bcon[(insb+1+i)%ni])
	}
	reg.removeAdjacentNeighbours()

	for _, f := range other.floors {
		reg.addUniqueFloorRegion(f)
	}
	reg.spanCount += other.spanCount
	other.spanCount = 0
	other.connections = other.connections[:0]
	return true
}

// isSolidEdge reports whether the edge of span i in direction dir borders a
// different region.
func (chf *CompactHeightfield) isSolidEdge(srcReg []RegionId, x, z, i, dir int) bool {
	span := &chf.Spans[i]
	r := NoRegion
	if con := span.Con(dir); con != notConnected {
		r = srcReg[chf.conIndex(x, z, dir, con)]
	}
	return r != srcReg[i]
}

// regionWalkContour walks a region edge collecting the sequence of
// neighbouring region ids around it.
func (chf *CompactHeightfield) regionWalkContour(x, z, i, dir int, srcReg []RegionId, cont *[]RegionId) {
	startDir := dir
	startI := i

	span := &chf.Spans[i]
	curReg := NoRegion
	if con := span.Con(dir); con != notConnected {
		curReg = srcReg[chf.conIndex(x, z, dir, con)]
	}
	*cont = append(*cont, curReg)

	for iter := 0; iter < 40000; iter++ {
		span := &chf.Spans[i]

		if chf.isSolidEdge(srcReg, x, z, i, dir) {
			r := NoRegion
			if con := span.Con(dir); con != notConnected {
				r = srcReg[chf.conIndex(x, z, dir, con)]
			}
			if r != curReg {
				curReg = r
				*cont = append(*cont, curReg)
			}
			dir = (dir + 1) & 0x3 // Rotate CW
		} else {
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

	// Remove adjacent duplicates.
	if len(*cont) > 1 {
		for j := 0; j < len(*cont); {
			nj := (j + 1) % len(*cont)
			if (*cont)[j] == (*cont)[nj] {
				*cont = append((*cont)[:j], (*cont)[j+1:]...)
			} else {
				j++
			}
		}
	}
}

// mergeAndFilterRegions removes regions smaller than minRegionArea, merges
// regions smaller than mergeRegionSize into their smallest mergeable
// neighbour, and compacts the surviving ids. It returns the ids of
// vertically overlapping regions.
func (chf *CompactHeightfield) mergeAndFilterRegions(minRegionArea, mergeRegionSize int,
	maxRegionID *RegionId, srcReg []RegionId) (overlaps []RegionId, err error) {
	w := chf.Width
	h := chf.Height

	nreg := int(*maxRegionID) + 1
	regions := make([]*region, 0, nreg)
	for i := 0; i < nreg; i++ {
		regions = append(regions, newRegion(RegionId(i)))
	}

	// Find the edge of each region and the connections around its contour.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				r := srcReg[i]
				if r == NoRegion || int(r) >= nreg {
					continue
				}
				reg := regions[r]
				reg.spanCount++

				// Update floors: other regions stacked in this column.
				for j := start; j < end; j++ {
					if i == j {
						continue
					}
					floorID := srcReg[j]
					if floorID == NoRegion || int(floorID) >= nreg {
						continue
					}
					if floorID == r {
						reg.overlap = true
					}
					reg.addUniqueFloorRegion(floorID)
				}

				// Contour already found.
				if len(reg.connections) > 0 {
					continue
				}
				reg.area = chf.Areas[i]

				ndir := -1
				for dir := 0; dir < 4; dir++ {
					if chf.isSolidEdge(srcReg, x, z, i, dir) {
						ndir = dir
						break
					}
				}
				if ndir != -1 {
					// The cell is at a border: walk the contour to collect
					// all neighbours.
					chf.regionWalkContour(x, z, i, ndir, srcReg, &reg.connections)
				}
			}
		}
	}

	// Remove too small regions: count connected clusters and kill any whose
	// total span count is below minRegionArea, unless the cluster touches a
	// tile border (its size cannot be estimated correctly).
	stack := make([]RegionId, 0, 32)
	trace := make([]RegionId, 0, 32)
	for i := 0; i < nreg; i++ {
		reg := regions[i]
		if reg.id == NoRegion || reg.id.IsBorder() {
			continue
		}
		if reg.spanCount == 0 || reg.visited {
			continue
		}

		connectsToBorder := false
		spanCount := 0
		stack = stack[:0]
		trace = trace[:0]
		reg.visited = true
		stack = append(stack, RegionId(i))

		for len(stack) > 0 {
			ri := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			creg := regions[ri]

			spanCount += creg.spanCount
			trace = append(trace, ri)

			for _, conn := range creg.connections {
				if conn.IsBorder() {
					connectsToBorder = true
					continue
				}
				neireg := regions[conn]
				if neireg.visited {
					continue
				}
				if neireg.id == NoRegion || neireg.id.IsBorder() {
					continue
				}
				stack = append(stack, neireg.id)
				neireg.visited = true
			}
		}

		if spanCount < minRegionArea && !connectsToBorder {
			for _, ri := range trace {
				regions[ri].spanCount = 0
				regions[ri].id = NoRegion
			}
		}
	}

	// Merge too small regions into neighbour regions.
	for {
		mergeCount := 0
		for i := 0; i < nreg; i++ {
			reg := regions[i]
			if reg.id == NoRegion || reg.id.IsBorder() {
				continue
			}
			if reg.overlap || reg.spanCount == 0 {
				continue
			}
			if reg.spanCount > mergeRegionSize && reg.connectsToBorderRegion() {
				continue
			}

			// Find the smallest neighbour region that can absorb this one.
			smallest := int(^uint(0) >> 1)
			mergeID := reg.id
			for _, conn := range reg.connections {
				if conn.IsBorder() {
					continue
				}
				mreg := regions[conn]
				if mreg.id == NoRegion || mreg.id.IsBorder() || mreg.overlap {
					continue
				}
				if mreg.spanCount < smallest && reg.canMergeWith(mreg) && mreg.canMergeWith(reg) {
					smallest = mreg.spanCount
					mergeID = mreg.id
				}
			}
			if mergeID != reg.id {
				oldID := reg.id
				target := regions[mergeID]
				if mergeRegionInto(target, reg) {
					// Fix up regions pointing to the merged region.
					for j := 0; j < nreg; j++ {
						other := regions[j]
						if other.id == NoRegion || other.id.IsBorder() {
							continue
						}
						if other.id == oldID {
							other.id = mergeID
						}
						other.replaceNeighbour(oldID, mergeID)
					}
					mergeCount++
				}
			}
		}
		if mergeCount == 0 {
			break
		}
	}

	// Compress region ids.
	for _, reg := range regions {
		reg.remap = reg.id != NoRegion && !reg.id.IsBorder()
	}
	var regIDGen RegionId
	for i := 0; i < nreg; i++ {
		if !regions[i].remap {
			continue
		}
		oldID := regions[i].id
		regIDGen++
		newID := regIDGen
		for j := i; j < nreg; j++ {
			if regions[j].id == oldID {
				regions[j].id = newID
				regions[j].remap = false
			}
		}
	}
	*maxRegionID = regIDGen

	// Remap the span data.
	for i := 0; i < chf.SpanCount; i++ {
		if !srcReg[i].IsBorder() {
			srcReg[i] = regions[srcReg[i]].id
		}
	}

	for _, reg := range regions {
		if reg.overlap {
			overlaps = append(overlaps, reg.id)
		}
	}
	return overlaps, nil
}

// BuildRegions partitions the walkable spans into regions with watershed
// flooding over the distance field: flood new basins from the deepest
// interior outward, expand existing regions level by level, then merge or
// discard regions below the area thresholds. BuildDistanceField must run
// first.
func (chf *CompactHeightfield) BuildRegions(borderSize, minRegionArea, mergeRegionArea int, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := chf.Width
	h := chf.Height

	const logNbStacks = 3
	const nbStacks = 1 << logNbStacks
	lvlStacks := make([][]levelStackEntry, nbStacks)
	for i := range lvlStacks {
		lvlStacks[i] = make([]levelStackEntry, 0, 256)
	}
	stack := make([]levelStackEntry, 0, 256)

	srcReg := make([]RegionId, chf.SpanCount)
	srcDist := make([]uint16, chf.SpanCount)

	regionID := RegionId(1)
	level := (int(chf.MaxDistance) + 1) &^ 1

	// expandIters controls how much the watershed overflows and simplifies
	// the regions.
	const expandIters = 8

	if borderSize > 0 {
		// Make sure the border does not overflow the grid.
		bw := min(w, borderSize)
		bh := min(h, borderSize)
		chf.paintRectRegion(0, bw, 0, h, regionID|BorderRegion, srcReg)
		regionID++
		chf.paintRectRegion(w-bw, w, 0, h, regionID|BorderRegion, srcReg)
		regionID++
		chf.paintRectRegion(0, w, 0, bh, regionID|BorderRegion, srcReg)
		regionID++
		chf.paintRectRegion(0, w, h-bh, h, regionID|BorderRegion, srcReg)
		regionID++
	}
	chf.BorderSize = borderSize

	sID := -1
	for level > 0 {
		if level >= 2 {
			level -= 2
		} else {
			level = 0
		}
		sID = (sID + 1) & (nbStacks - 1)

		if sID == 0 {
			chf.sortCellsByLevel(level, srcReg, lvlStacks, 1)
		} else {
			// Copy left overs from the previous level.
			appendStacks(lvlStacks[sID-1], &lvlStacks[sID], srcReg)
		}

		// Expand current regions until no empty connected cells are found.
		chf.expandRegions(expandIters, level, srcReg, srcDist, &lvlStacks[sID], false)

		// Mark new regions with ids.
		for _, e := range lvlStacks[sID] {
			if e.index >= 0 && srcReg[e.index] == NoRegion {
				if chf.floodRegion(e.x, e.z, e.index, level, regionID, srcReg, srcDist, &stack) {
					if regionID == 0xffff {
						return &RegionError{Detail: "region id overflow"}
					}
					regionID++
				}
			}
		}
	}

	// Final expansion over the whole field.
	chf.expandRegions(expandIters*8, 0, srcReg, srcDist, &stack, true)

	chf.MaxRegion = regionID
	overlaps, err := chf.mergeAndFilterRegions(minRegionArea, mergeRegionArea, &chf.MaxRegion, srcReg)
	if err != nil {
		return err
	}
	if len(overlaps) > 0 {
		logger.Warn("watershed produced overlapping regions",
			zap.Int("count", len(overlaps)))
	}

	for i := 0; i < chf.SpanCount; i++ {
		chf.Spans[i].Region = srcReg[i]
	}
	return nil
}
