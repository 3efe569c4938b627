package navmesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"navgen/common"
)

const (
	// notConnected is the packed sentinel for a missing neighbour link.
	notConnected = 0x3f
	// maxLayers is the largest neighbour layer index the 6-bit link can hold.
	maxLayers = notConnected - 1
)

// RegionId identifies a watershed region. Zero means unassigned; the high
// bit marks unwalkable border regions.
type RegionId uint16

const (
	// NoRegion is the null region id.
	NoRegion RegionId = 0
	// BorderRegion flags a region as part of the unwalkable grid border.
	BorderRegion RegionId = 0x8000
)

// IsBorder reports whether the border flag is set.
func (r RegionId) IsBorder() bool {
	return r&BorderRegion != 0
}

// Mask strips the border flag, leaving the plain region id.
func (r RegionId) Mask() RegionId {
	return r &^ BorderRegion
}

// CompactCell points at the contiguous run of compact spans in one column.
type CompactCell struct {
	Index uint32
	Count uint8
}

// CompactSpan is one walkable interval of open space between two solid
// spans. Data packs four 6-bit neighbour links (63 = not connected) and the
// span height in the top byte.
type CompactSpan struct {
	Y      uint16
	Region RegionId
	Data   uint32
}

// Con returns the neighbour layer index in the given direction, or
// notConnected.
func (s *CompactSpan) Con(dir int) int {
	return int(s.Data>>(uint(dir)*6)) & 0x3f
}

// SetCon stores the neighbour layer index for the given direction.
func (s *CompactSpan) SetCon(dir, layer int) {
	shift := uint(dir) * 6
	s.Data = (s.Data &^ (0x3f << shift)) | uint32(layer&0x3f)<<shift
}

// SpanHeight returns the open height above the span floor, saturated at 255.
func (s *CompactSpan) SpanHeight() int {
	return int(s.Data >> 24)
}

// SetSpanHeight stores the open height above the span floor.
func (s *CompactSpan) SetSpanHeight(h int) {
	s.Data = (s.Data & 0x00ffffff) | uint32(h&0xff)<<24
}

// CompactHeightfield represents the open space of a heightfield as flat
// per-cell span arrays with 4-directional neighbour connectivity. All later
// pipeline stages mutate it in place by span index.
type CompactHeightfield struct {
	Width          int
	Height         int
	SpanCount      int
	WalkableHeight int
	WalkableClimb  int
	BorderSize     int
	MaxDistance    uint16
	MaxRegion      RegionId
	Min            mgl32.Vec3
	Max            mgl32.Vec3
	CellSize       float32
	CellHeight     float32
	Cells          []CompactCell
	Spans          []CompactSpan
	Dist           []uint16
	Areas          []AreaType
}

// cellSpans returns the index range [start, end) of the spans in column
// (x, z).
func (chf *CompactHeightfield) cellSpans(x, z int) (int, int) {
	c := &chf.Cells[x+z*chf.Width]
	return int(c.Index), int(c.Index) + int(c.Count)
}

// conIndex resolves the span index of the neighbour of span i at (x, z) in
// the given direction. The connection must exist.
func (chf *CompactHeightfield) conIndex(x, z, dir, con int) int {
	ax := x + common.DirOffsetX(dir)
	az := z + common.DirOffsetZ(dir)
	return int(chf.Cells[ax+az*chf.Width].Index) + con
}

// BuildCompactHeightfield rewrites the gaps between solid heightfield spans
// as compact walkable spans and links 4-directional neighbours. It fails
// when a column needs more than 62 layers, which the packed link encoding
// cannot represent.
func BuildCompactHeightfield(walkableHeight, walkableClimb int, hf *Heightfield) (*CompactHeightfield, error) {
	spanCount := hf.WalkableSpanCount()

	chf := &CompactHeightfield{
		Width:          hf.Width,
		Height:         hf.Height,
		SpanCount:      spanCount,
		WalkableHeight: walkableHeight,
		WalkableClimb:  walkableClimb,
		Min:            hf.Min,
		Max:            hf.Max,
		CellSize:       hf.CellSize,
		CellHeight:     hf.CellHeight,
		Cells:          make([]CompactCell, hf.Width*hf.Height),
		Spans:          make([]CompactSpan, spanCount),
		Areas:          make([]AreaType, spanCount),
	}
	chf.Max[1] += float32(walkableHeight) * hf.CellHeight

	// Fill in cells and spans.
	idx := 0
	for columnIndex, head := range hf.columns {
		if head == NoSpan {
			continue
		}
		cell := &chf.Cells[columnIndex]
		cell.Index = uint32(idx)
		cell.Count = 0
		for k := head; k != NoSpan; k = hf.Span(k).Next {
			span := hf.Span(k)
			if !span.Area.Walkable() {
				continue
			}
			bot := int(span.Max)
			top := maxHeight
			if span.Next != NoSpan {
				top = int(hf.Span(span.Next).Min)
			}
			chf.Spans[idx].Y = uint16(common.Clamp(bot, 0, maxHeight))
			chf.Spans[idx].SetSpanHeight(common.Clamp(top-bot, 0, 0xff))
			chf.Areas[idx] = span.Area
			idx++
			cell.Count++
		}
	}

	// Find neighbour connections.
	maxLayerIndex := 0
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			start, end := chf.cellSpans(x, z)
			for i := start; i < end; i++ {
				span := &chf.Spans[i]
				for dir := 0; dir < 4; dir++ {
					span.SetCon(dir, notConnected)
					nx := x + common.DirOffsetX(dir)
					nz := z + common.DirOffsetZ(dir)
					if nx < 0 || nz < 0 || nx >= chf.Width || nz >= chf.Height {
						continue
					}
					nStart, nEnd := chf.cellSpans(nx, nz)
					for k := nStart; k < nEnd; k++ {
						neighbor := &chf.Spans[k]
						bot := max(int(span.Y), int(neighbor.Y))
						top := min(int(span.Y)+span.SpanHeight(), int(neighbor.Y)+neighbor.SpanHeight())

						// The gap between the spans must fit the agent and
						// the floor difference must be climbable.
						if top-bot >= walkableHeight && common.Abs(int(neighbor.Y)-int(span.Y)) <= walkableClimb {
							layerIndex := k - nStart
							if layerIndex < 0 || layerIndex > maxLayers {
								maxLayerIndex = max(maxLayerIndex, layerIndex)
								continue
							}
							span.SetCon(dir, layerIndex)
							break
						}
					}
				}
			}
		}
	}

	if maxLayerIndex > maxLayers {
		return nil, &CompactHeightfieldError{Layers: maxLayerIndex, MaxLayers: maxLayers}
	}
	return chf, nil
}
