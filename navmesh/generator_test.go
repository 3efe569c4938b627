package navmesh

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func buildNavmesh(t *testing.T, mesh *TriMesh, settings NavmeshSettings) *Navmesh {
	t.Helper()
	g := &Generator{Settings: settings}
	nm, err := g.Build(mesh)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return nm
}

// walkablePlane is a plane without pre-assigned areas so Build runs the
// slope marking path.
func walkablePlane(size float32) *TriMesh {
	m := flatPlane(size)
	m.AreaTypes = nil
	return m
}

func checkNavmesh(t *testing.T, nm *Navmesh) {
	t.Helper()
	pm := nm.Polygon
	if pm.PolygonCount < 1 {
		t.Fatal("no polygons generated")
	}
	for i := 0; i < pm.PolygonCount; i++ {
		poly := pm.polygon(i)
		nv := countPolyVerts(poly, pm.NVP)
		assertTrue(t, nv >= 3, "polygons have at least 3 vertices")
		for j := 0; j < nv; j++ {
			assertTrue(t, int(poly[j]) < pm.VertexCount, "vertex indices are in range")
		}
	}
	if len(nm.Detail.Meshes) != pm.PolygonCount {
		t.Fatalf("detail submeshes (%d) do not match polygons (%d)", len(nm.Detail.Meshes), pm.PolygonCount)
	}
}

func TestGeneratorBuildPlane(t *testing.T) {
	nm := buildNavmesh(t, walkablePlane(12), DefaultSettings())
	checkNavmesh(t, nm)
	assertTrue(t, nm.Polygon.NVP == 6, "vertex budget from settings")
	assertTrue(t, nm.Polygon.BorderSize == 0, "no border when tiling is off")
}

func TestGeneratorBuildTiled(t *testing.T) {
	settings := DefaultSettings()
	settings.Tiling = true
	nm := buildNavmesh(t, walkablePlane(12), settings)
	checkNavmesh(t, nm)
	assertTrue(t, nm.Polygon.BorderSize > 0, "tiling reserves a border")
}

func TestGeneratorBuildZUp(t *testing.T) {
	// The same plane expressed with z as the up axis.
	size := float32(12)
	mesh := &TriMesh{
		Vertices: []mgl32.Vec3{
			{0, 0, 0},
			{size, 0, 0},
			{size, size, 0},
			{0, size, 0},
		},
		Indices: [][3]uint32{{0, 1, 2}, {0, 2, 3}},
	}
	settings := DefaultSettings()
	settings.Up = UpZ
	nm := buildNavmesh(t, mesh, settings)
	checkNavmesh(t, nm)
}

func TestGeneratorBoundsOverrideZUp(t *testing.T) {
	// A z-up floor with bounds given in the same z-up space. The box must
	// be rotated together with the geometry or it misses the mesh entirely.
	size := float32(12)
	mesh := &TriMesh{
		Vertices: []mgl32.Vec3{
			{0, 0, 0},
			{size, 0, 0},
			{size, size, 0},
			{0, size, 0},
		},
		Indices: [][3]uint32{{0, 1, 2}, {0, 2, 3}},
	}
	settings := DefaultSettings()
	settings.Up = UpZ
	settings.Bounds = &AABB{
		Min: mgl32.Vec3{0, 0, -1},
		Max: mgl32.Vec3{size, size, 1},
	}
	nm := buildNavmesh(t, mesh, settings)
	checkNavmesh(t, nm)
}

func TestGeneratorBuildDeterministic(t *testing.T) {
	mesh := walkablePlane(12)
	settings := DefaultSettings()
	first := buildNavmesh(t, mesh, settings)
	second := buildNavmesh(t, mesh, settings)
	assertTrue(t, reflect.DeepEqual(first.Polygon, second.Polygon), "polygon mesh is reproducible")
	assertTrue(t, reflect.DeepEqual(first.Detail, second.Detail), "detail mesh is reproducible")
}

func TestGeneratorBuildWithAreaVolume(t *testing.T) {
	settings := DefaultSettings()
	settings.AreaVolumes = []ConvexVolume{{
		Vertices: []mgl32.Vec3{
			{3, -1, 3},
			{9, -1, 3},
			{9, -1, 9},
			{3, -1, 9},
		},
		MinY: -1,
		MaxY: 1,
		Area: 7,
	}}
	nm := buildNavmesh(t, walkablePlane(12), settings)
	checkNavmesh(t, nm)

	found := false
	for _, a := range nm.Polygon.Areas {
		if a == 7 {
			found = true
		}
	}
	assertTrue(t, found, "marked volume shows up as a polygon area")
}

func TestGeneratorEmptyInput(t *testing.T) {
	nm := buildNavmesh(t, &TriMesh{}, DefaultSettings())
	assertTrue(t, nm.Polygon.PolygonCount == 0, "empty input yields an empty navmesh")
	assertTrue(t, len(nm.Detail.Meshes) == 0, "empty input yields an empty detail mesh")

	nm = buildNavmesh(t, nil, DefaultSettings())
	assertTrue(t, nm.Polygon.PolygonCount == 0, "nil input yields an empty navmesh")
}

func TestGeneratorInvalidSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.AgentRadius = 0
	g := &Generator{Settings: settings}
	_, err := g.Build(walkablePlane(12))
	var serr *SettingsError
	assertTrue(t, errors.As(err, &serr), "invalid settings are rejected")
}

func TestGeneratorBoundsOverride(t *testing.T) {
	settings := DefaultSettings()
	settings.Bounds = &AABB{
		Min: mgl32.Vec3{0, -1, 0},
		Max: mgl32.Vec3{6, 1, 6},
	}
	nm := buildNavmesh(t, walkablePlane(12), settings)
	checkNavmesh(t, nm)

	// Vertices stay inside the overridden box.
	pm := nm.Polygon
	for i := 0; i < pm.VertexCount; i++ {
		x := pm.Min[0] + float32(pm.Vertices[i*3])*pm.CellSize
		z := pm.Min[2] + float32(pm.Vertices[i*3+2])*pm.CellSize
		assertTrue(t, x >= -0.01 && x <= 6.01, "x inside the bounds override")
		assertTrue(t, z >= -0.01 && z <= 6.01, "z inside the bounds override")
	}
}
