package navmesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"navgen/common"
)

// Navmesh is the final bundle handed to persistence and pathfinding
// consumers: the convex polygon mesh, its height detail and the settings
// that produced them.
type Navmesh struct {
	Polygon  *PolygonNavmesh
	Detail   *DetailNavmesh
	Settings NavmeshSettings
}

// Generator runs the full pipeline for one TriMesh per Build call. A zero
// Logger disables diagnostics. Each call is a pure function of its input;
// no state is retained between calls.
type Generator struct {
	Settings NavmeshSettings
	Logger   *zap.Logger
}

// Build generates a navmesh from the triangle soup. An input without
// triangles yields an empty navmesh and no error; any stage failure aborts
// the pipeline and no partial navmesh is returned.
func (g *Generator) Build(mesh *TriMesh) (*Navmesh, error) {
	if err := g.Settings.Validate(); err != nil {
		return nil, err
	}
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	empty := &Navmesh{
		Polygon:  &PolygonNavmesh{NVP: g.Settings.MaxVerticesPerPolygon},
		Detail:   &DetailNavmesh{},
		Settings: g.Settings,
	}
	if mesh == nil || len(mesh.Indices) == 0 {
		return empty, nil
	}

	working := g.prepare(mesh)

	var bmin, bmax mgl32.Vec3
	if g.Settings.Bounds != nil {
		// Caller bounds live in the input orientation. Rotate both corners
		// and re-order, since the rotation negates one axis.
		lo := g.Settings.Up.ToYUp(g.Settings.Bounds.Min)
		hi := g.Settings.Up.ToYUp(g.Settings.Bounds.Max)
		bmin = common.Vmin(lo, hi)
		bmax = common.Vmax(lo, hi)
	} else {
		m, x, ok := working.ComputeAABB()
		if !ok {
			return empty, nil
		}
		bmin, bmax = m, x
	}

	cfg := g.Settings.config(bmin, bmax)
	if cfg.width <= 0 || cfg.height <= 0 {
		return empty, nil
	}

	hf := NewHeightfield(cfg.width, cfg.height, cfg.bmin, cfg.bmax, cfg.cellSize, cfg.cellHeight)
	if err := RasterizeTriangles(hf, working, cfg.walkableClimb); err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}

	hf.FilterLowHangingWalkableObstacles(cfg.walkableClimb)
	hf.FilterLedgeSpans(cfg.walkableHeight, cfg.walkableClimb)
	hf.FilterWalkableLowHeightSpans(cfg.walkableHeight)

	chf, err := BuildCompactHeightfield(cfg.walkableHeight, cfg.walkableClimb, hf)
	if err != nil {
		return nil, fmt.Errorf("compact: %w", err)
	}
	chf.BorderSize = cfg.borderSize

	chf.ErodeWalkableArea(cfg.walkableRadius)
	for i := range g.Settings.AreaVolumes {
		v := g.Settings.AreaVolumes[i]
		verts := make([]mgl32.Vec3, len(v.Vertices))
		for j, p := range v.Vertices {
			verts[j] = g.Settings.Up.ToYUp(p)
		}
		v.Vertices = verts
		chf.MarkConvexPolyArea(&v)
	}

	chf.BuildDistanceField()
	if err := chf.BuildRegions(cfg.borderSize, cfg.minRegionArea, cfg.mergeRegionArea, logger); err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}

	cset, err := chf.BuildContours(cfg.maxSimplificationError, cfg.maxEdgeLen, g.Settings.ContourFlags)
	if err != nil {
		return nil, fmt.Errorf("contours: %w", err)
	}

	pmesh, err := BuildPolyMesh(cset, cfg.maxVertsPerPoly, logger)
	if err != nil {
		return nil, fmt.Errorf("polymesh: %w", err)
	}

	dmesh, err := BuildDetailMesh(pmesh, chf, cfg.detailSampleDist, cfg.detailSampleMaxError, logger)
	if err != nil {
		return nil, fmt.Errorf("detailmesh: %w", err)
	}

	return &Navmesh{
		Polygon:  pmesh,
		Detail:   dmesh,
		Settings: g.Settings,
	}, nil
}

// prepare copies the input into y-up space and resolves area tags against
// the walkable slope limit. Meshes without tags get slope-derived ones;
// tagged meshes only lose tags on faces that are too steep.
func (g *Generator) prepare(mesh *TriMesh) *TriMesh {
	out := &TriMesh{
		Vertices:  make([]mgl32.Vec3, len(mesh.Vertices)),
		Indices:   append([][3]uint32(nil), mesh.Indices...),
		AreaTypes: make([]AreaType, len(mesh.Indices)),
	}
	for i, v := range mesh.Vertices {
		out.Vertices[i] = g.Settings.Up.ToYUp(v)
	}

	slope := clampSlope(g.Settings.WalkableSlopeAngle)
	if len(mesh.AreaTypes) == len(mesh.Indices) && len(mesh.AreaTypes) > 0 {
		copy(out.AreaTypes, mesh.AreaTypes)
		out.ClearUnwalkableTriangles(slope)
	} else {
		out.MarkWalkableTriangles(slope)
	}
	return out
}
