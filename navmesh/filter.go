package navmesh

import "navgen/common"

// FilterLowHangingWalkableObstacles promotes an unwalkable span to walkable
// when the walkable span directly below it is within walkableClimb. This
// models an agent stepping over a low lip such as a curb.
func (hf *Heightfield) FilterLowHangingWalkableObstacles(walkableClimb int) {
	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			var prev *Span
			prevWasWalkable := false
			prevArea := NullArea

			for k := hf.ColumnHead(x, z); k != NoSpan; {
				span := hf.Span(k)
				walkable := span.Area.Walkable()
				if !walkable && prevWasWalkable {
					if common.Abs(int(span.Max)-int(prev.Max)) <= walkableClimb {
						span.Area = prevArea
					}
				}
				// Copy the walkable flag so it cannot propagate past
				// multiple stacked obstacles.
				prevWasWalkable = walkable
				prevArea = span.Area
				prev = span
				k = span.Next
			}
		}
	}
}

// FilterLedgeSpans marks spans that sit on a ledge as unwalkable: spans
// whose lowest reachable neighbour floor is more than walkableClimb below,
// or whose accessible neighbour floors spread more than walkableClimb
// vertically (a steep slope crossing the span).
func (hf *Heightfield) FilterLedgeSpans(walkableHeight, walkableClimb int) {
	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			for k := hf.ColumnHead(x, z); k != NoSpan; k = hf.Span(k).Next {
				span := hf.Span(k)
				if !span.Area.Walkable() {
					continue
				}

				bot := int(span.Max)
				top := maxHeight
				if span.Next != NoSpan {
					top = int(hf.Span(span.Next).Min)
				}

				minNeighborHeight := maxHeight
				accessibleNeighborMinHeight := bot
				accessibleNeighborMaxHeight := bot

				for dir := 0; dir < 4; dir++ {
					dx := x + common.DirOffsetX(dir)
					dz := z + common.DirOffsetZ(dir)
					if dx < 0 || dz < 0 || dx >= hf.Width || dz >= hf.Height {
						minNeighborHeight = min(minNeighborHeight, -walkableClimb-bot)
						continue
					}

					// The gap from minus infinity to the first neighbour span.
					neighborBot := -walkableClimb
					neighborTop := maxHeight
					if head := hf.ColumnHead(dx, dz); head != NoSpan {
						neighborTop = int(hf.Span(head).Min)
					}
					if min(top, neighborTop)-max(bot, neighborBot) > walkableHeight {
						minNeighborHeight = min(minNeighborHeight, neighborBot-bot)
					}

					// The gaps after each neighbour span.
					for nk := hf.ColumnHead(dx, dz); nk != NoSpan; nk = hf.Span(nk).Next {
						neighborSpan := hf.Span(nk)
						neighborBot = int(neighborSpan.Max)
						neighborTop = maxHeight
						if neighborSpan.Next != NoSpan {
							neighborTop = int(hf.Span(neighborSpan.Next).Min)
						}
						if min(top, neighborTop)-max(bot, neighborBot) > walkableHeight {
							minNeighborHeight = min(minNeighborHeight, neighborBot-bot)

							if common.Abs(neighborBot-bot) <= walkableClimb {
								accessibleNeighborMinHeight = min(accessibleNeighborMinHeight, neighborBot)
								accessibleNeighborMaxHeight = max(accessibleNeighborMaxHeight, neighborBot)
							}
						}
					}
				}

				if minNeighborHeight < -walkableClimb {
					// The drop to a neighbour exceeds the climb limit.
					span.Area = NullArea
				} else if accessibleNeighborMaxHeight-accessibleNeighborMinHeight > walkableClimb {
					// The accessible neighbours span too large a height range.
					span.Area = NullArea
				}
			}
		}
	}
}

// FilterWalkableLowHeightSpans clears the walkable flag from spans without
// enough headroom for the agent to stand.
func (hf *Heightfield) FilterWalkableLowHeightSpans(walkableHeight int) {
	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			for k := hf.ColumnHead(x, z); k != NoSpan; k = hf.Span(k).Next {
				span := hf.Span(k)
				bot := int(span.Max)
				top := maxHeight
				if span.Next != NoSpan {
					top = int(hf.Span(span.Next).Min)
				}
				if top-bot < walkableHeight {
					span.Area = NullArea
				}
			}
		}
	}
}
