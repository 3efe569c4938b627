package navmesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"navgen/common"
)

const (
	axisX = 0
	axisY = 1
	axisZ = 2

	// maxClipVerts bounds the vertex count of a clipped triangle fragment.
	// A triangle clipped against two axis-aligned planes cannot exceed it.
	maxClipVerts = 12
)

// dividePoly splits a convex polygon across the axis-aligned plane at
// axisOffset. out1 receives the part below the plane, out2 the rest. Both
// output buffers must hold maxClipVerts vertices.
func dividePoly(in []mgl32.Vec3, out1, out2 []mgl32.Vec3, axisOffset float32, axis int) (n1, n2 int, err error) {
	if len(in) > maxClipVerts {
		return 0, 0, &RasterizationError{Op: "divide poly", Detail: "clipped polygon exceeds 12 vertices"}
	}

	var delta [maxClipVerts]float32
	for i, v := range in {
		delta[i] = axisOffset - v[axis]
	}

	b := len(in) - 1
	for a := 0; a < len(in); a++ {
		sameSide := (delta[a] >= 0) == (delta[b] >= 0)
		if !sameSide {
			s := delta[b] / (delta[b] - delta[a])
			out1[n1] = in[b].Add(in[a].Sub(in[b]).Mul(s))
			out2[n2] = out1[n1]
			n1++
			n2++
			// Do not add points on the dividing line twice.
			if delta[a] > 0 {
				out1[n1] = in[a]
				n1++
			} else if delta[a] < 0 {
				out2[n2] = in[a]
				n2++
			}
		} else {
			if delta[a] >= 0 {
				out1[n1] = in[a]
				n1++
				if delta[a] != 0 {
					b = a
					continue
				}
			}
			out2[n2] = in[a]
			n2++
		}
		b = a
	}
	return n1, n2, nil
}

// rasterizeTri clips one triangle against the grid row-by-row then
// column-by-column and stamps the resulting fragments into the heightfield.
func rasterizeTri(v0, v1, v2 mgl32.Vec3, area AreaType, hf *Heightfield, flagMergeThreshold int) error {
	triMin := common.Vmin(common.Vmin(v0, v1), v2)
	triMax := common.Vmax(common.Vmax(v0, v1), v2)

	// Skip triangles outside the heightfield bounds.
	if !common.OverlapBounds(triMin, triMax, hf.Min, hf.Max) {
		return nil
	}

	w := hf.Width
	h := hf.Height
	by := hf.Max[1] - hf.Min[1]
	inverseCellSize := 1.0 / hf.CellSize
	inverseCellHeight := 1.0 / hf.CellHeight

	// Footprint on the grid's z axis. -1 on the low side cuts the polygon
	// properly at the edge of the grid.
	z0 := common.Clamp(int((triMin[2]-hf.Min[2])*inverseCellSize), -1, h-1)
	z1 := common.Clamp(int((triMax[2]-hf.Min[2])*inverseCellSize), 0, h-1)

	var bufIn, bufRow, bufP1, bufP2 [maxClipVerts]mgl32.Vec3
	in, inRow, p1, p2 := bufIn[:], bufRow[:], bufP1[:], bufP2[:]
	in[0], in[1], in[2] = v0, v1, v2
	nvIn := 3

	for z := z0; z <= z1; z++ {
		// Clip the polygon to the row, keeping the remainder.
		cellZ := hf.Min[2] + float32(z)*hf.CellSize
		nvRow, nvRem, err := dividePoly(in[:nvIn], inRow, p1, cellZ+hf.CellSize, axisZ)
		if err != nil {
			return err
		}
		in, p1 = p1, in
		nvIn = nvRem
		if nvRow < 3 || z < 0 {
			continue
		}

		minX := inRow[0][0]
		maxX := inRow[0][0]
		for vert := 1; vert < nvRow; vert++ {
			minX = min(minX, inRow[vert][0])
			maxX = max(maxX, inRow[vert][0])
		}
		x0 := int((minX - hf.Min[0]) * inverseCellSize)
		x1 := int((maxX - hf.Min[0]) * inverseCellSize)
		if x1 < 0 || x0 >= w {
			continue
		}
		x0 = common.Clamp(x0, -1, w-1)
		x1 = common.Clamp(x1, 0, w-1)

		nv2 := nvRow
		for x := x0; x <= x1; x++ {
			// Clip the row strip to the column, keeping the remainder.
			cellX := hf.Min[0] + float32(x)*hf.CellSize
			nv, nvRem, err := dividePoly(inRow[:nv2], p1, p2, cellX+hf.CellSize, axisX)
			if err != nil {
				return err
			}
			inRow, p2 = p2, inRow
			nv2 = nvRem
			if nv < 3 || x < 0 {
				continue
			}

			spanMin := p1[0][1]
			spanMax := p1[0][1]
			for vert := 1; vert < nv; vert++ {
				spanMin = min(spanMin, p1[vert][1])
				spanMax = max(spanMax, p1[vert][1])
			}
			spanMin -= hf.Min[1]
			spanMax -= hf.Min[1]
			if spanMax < 0 || spanMin > by {
				continue
			}
			if spanMin < 0 {
				spanMin = 0
			}
			if spanMax > by {
				spanMax = by
			}

			// Snap the span to the height grid.
			smin := uint16(common.Clamp(int(math.Floor(float64(spanMin*inverseCellHeight))), 0, maxHeight))
			smax := uint16(common.Clamp(int(math.Ceil(float64(spanMax*inverseCellHeight))), int(smin)+1, maxHeight))

			if err := hf.AddSpan(x, z, smin, smax, area, flagMergeThreshold); err != nil {
				return err
			}
		}
	}
	return nil
}

// RasterizeTriangles stamps every triangle of the mesh into the
// heightfield. flagMergeThreshold is the walkable climb in voxels: span tops
// within that distance merge their area tags by the max rule.
func RasterizeTriangles(hf *Heightfield, mesh *TriMesh, flagMergeThreshold int) error {
	for i, tri := range mesh.Indices {
		v0 := mesh.Vertices[tri[0]]
		v1 := mesh.Vertices[tri[1]]
		v2 := mesh.Vertices[tri[2]]
		if err := rasterizeTri(v0, v1, v2, mesh.AreaTypes[i], hf, flagMergeThreshold); err != nil {
			return err
		}
	}
	return nil
}
