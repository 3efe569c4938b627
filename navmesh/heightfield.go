package navmesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"navgen/common"
)

const (
	// maxHeight is the open ceiling used for the topmost gap in a column.
	maxHeight = 0xffff
)

// SpanKey is a stable handle to a span in a heightfield's span arena. It
// stays valid until the span is explicitly freed.
type SpanKey int32

// NoSpan is the null span key, terminating a column's span list.
const NoSpan SpanKey = -1

// Span is a solid vertical interval within one grid column. Spans in a
// column form a singly linked list ordered by ascending height.
type Span struct {
	Min  uint16
	Max  uint16
	Area AreaType
	Next SpanKey
}

// spanArena owns all spans of a heightfield. Freed slots are recycled
// through a free list so keys stay dense and stable.
type spanArena struct {
	spans []Span
	free  []SpanKey
}

func (a *spanArena) alloc() SpanKey {
	if n := len(a.free); n > 0 {
		k := a.free[n-1]
		a.free = a.free[:n-1]
		a.spans[k] = Span{}
		return k
	}
	a.spans = append(a.spans, Span{})
	return SpanKey(len(a.spans) - 1)
}

func (a *spanArena) release(k SpanKey) {
	a.free = append(a.free, k)
}

func (a *spanArena) at(k SpanKey) *Span {
	return &a.spans[k]
}

// Heightfield is the voxelized representation of obstructed space: a 2D grid
// of columns, each holding an ordered list of solid spans.
type Heightfield struct {
	Width      int
	Height     int
	Min        mgl32.Vec3
	Max        mgl32.Vec3
	CellSize   float32
	CellHeight float32

	columns []SpanKey
	arena   spanArena
}

// NewHeightfield allocates an empty heightfield over the given bounds.
func NewHeightfield(width, height int, bmin, bmax mgl32.Vec3, cellSize, cellHeight float32) *Heightfield {
	hf := &Heightfield{
		Width:      width,
		Height:     height,
		Min:        bmin,
		Max:        bmax,
		CellSize:   cellSize,
		CellHeight: cellHeight,
		columns:    make([]SpanKey, width*height),
	}
	for i := range hf.columns {
		hf.columns[i] = NoSpan
	}
	return hf
}

// ColumnHead returns the key of the lowest span in column (x, z), or NoSpan.
func (hf *Heightfield) ColumnHead(x, z int) SpanKey {
	return hf.columns[x+z*hf.Width]
}

// Span resolves a span key.
func (hf *Heightfield) Span(k SpanKey) *Span {
	return hf.arena.at(k)
}

// AddSpan inserts the solid interval [smin, smax] into column (x, z),
// merging it with any overlapping spans. When the merged tops are within
// flagMergeThreshold, the surviving area is the max of the two.
func (hf *Heightfield) AddSpan(x, z int, smin, smax uint16, area AreaType, flagMergeThreshold int) error {
	if x < 0 || z < 0 || x >= hf.Width || z >= hf.Height {
		return &RasterizationError{Op: "add span", Detail: "column out of bounds"}
	}

	newKey := hf.arena.alloc()
	{
		s := hf.arena.at(newKey)
		s.Min = smin
		s.Max = smax
		s.Area = area
		s.Next = NoSpan
	}

	columnIndex := x + z*hf.Width
	prev := NoSpan
	cur := hf.columns[columnIndex]

	for cur != NoSpan {
		curSpan := hf.arena.at(cur)
		newSpan := hf.arena.at(newKey)
		if curSpan.Min > newSpan.Max {
			// Current span is completely above the new span.
			break
		}
		if curSpan.Max < newSpan.Min {
			// Current span is completely below the new span.
			prev = cur
			cur = curSpan.Next
			continue
		}
		// Overlap: merge the current span into the new one.
		if curSpan.Min < newSpan.Min {
			newSpan.Min = curSpan.Min
		}
		if curSpan.Max > newSpan.Max {
			newSpan.Max = curSpan.Max
		}
		if common.Abs(int(newSpan.Max)-int(curSpan.Max)) <= flagMergeThreshold {
			newSpan.Area = mergeArea(newSpan.Area, curSpan.Area)
		}
		next := curSpan.Next
		hf.arena.release(cur)
		if prev != NoSpan {
			hf.arena.at(prev).Next = next
		} else {
			hf.columns[columnIndex] = next
		}
		cur = next
	}

	if prev != NoSpan {
		hf.arena.at(newKey).Next = hf.arena.at(prev).Next
		hf.arena.at(prev).Next = newKey
	} else {
		hf.arena.at(newKey).Next = hf.columns[columnIndex]
		hf.columns[columnIndex] = newKey
	}
	return nil
}

// WalkableSpanCount counts spans whose area permits standing.
func (hf *Heightfield) WalkableSpanCount() int {
	count := 0
	for _, head := range hf.columns {
		for k := head; k != NoSpan; k = hf.arena.at(k).Next {
			if hf.arena.at(k).Area.Walkable() {
				count++
			}
		}
	}
	return count
}
