package navmesh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"navgen/common/rw"
)

// .nav file header.
const (
	navMagic   = uint32('N')<<24 | uint32('A')<<16 | uint32('V')<<8 | uint32('G')
	navVersion = uint32(1)
)

var (
	ErrBadMagic   = errors.New("nav: bad magic")
	ErrBadVersion = errors.New("nav: unsupported version")
)

// Encoded element sizes, used to sanity-check counts read from the stream
// against the bytes actually left before allocating.
const (
	vec3Size          = 12
	areaVolumeMinSize = 4 + 4 + 4 + 1 // vertex count, min/max height, area tag
)

func writeVec3(w *rw.ReaderWriter, v mgl32.Vec3) {
	w.WriteFloat32(v[0])
	w.WriteFloat32(v[1])
	w.WriteFloat32(v[2])
}

func readVec3(r *rw.ReaderWriter) mgl32.Vec3 {
	return mgl32.Vec3{r.ReadFloat32(), r.ReadFloat32(), r.ReadFloat32()}
}

func writeSettings(w *rw.ReaderWriter, s *NavmeshSettings) {
	w.WriteFloat32(s.CellSizeFraction)
	w.WriteFloat32(s.CellHeightFraction)
	w.WriteFloat32(s.AgentHeight)
	w.WriteFloat32(s.AgentRadius)
	w.WriteFloat32(s.WalkableClimb)
	w.WriteFloat32(s.WalkableSlopeAngle)
	w.WriteInt32(int32(s.MinRegionSize))
	w.WriteInt32(int32(s.MergeRegionSize))
	w.WriteFloat32(s.EdgeMaxLenFactor)
	w.WriteFloat32(s.MaxSimplificationError)
	w.WriteInt32(int32(s.MaxVerticesPerPolygon))
	w.WriteFloat32(s.DetailSampleDist)
	w.WriteFloat32(s.DetailSampleMaxError)
	w.WriteInt32(int32(s.TileSize))
	w.WriteBool(s.Bounds != nil)
	if s.Bounds != nil {
		writeVec3(w, s.Bounds.Min)
		writeVec3(w, s.Bounds.Max)
	}
	w.WriteUint8(uint8(s.ContourFlags))
	w.WriteBool(s.Tiling)
	w.WriteUint32(uint32(len(s.AreaVolumes)))
	for i := range s.AreaVolumes {
		v := &s.AreaVolumes[i]
		w.WriteUint32(uint32(len(v.Vertices)))
		for _, p := range v.Vertices {
			writeVec3(w, p)
		}
		w.WriteFloat32(v.MinY)
		w.WriteFloat32(v.MaxY)
		w.WriteUint8(uint8(v.Area))
	}
	w.WriteUint8(uint8(s.Up))
}

func readSettings(r *rw.ReaderWriter, s *NavmeshSettings) {
	s.CellSizeFraction = r.ReadFloat32()
	s.CellHeightFraction = r.ReadFloat32()
	s.AgentHeight = r.ReadFloat32()
	s.AgentRadius = r.ReadFloat32()
	s.WalkableClimb = r.ReadFloat32()
	s.WalkableSlopeAngle = r.ReadFloat32()
	s.MinRegionSize = int(r.ReadInt32())
	s.MergeRegionSize = int(r.ReadInt32())
	s.EdgeMaxLenFactor = r.ReadFloat32()
	s.MaxSimplificationError = r.ReadFloat32()
	s.MaxVerticesPerPolygon = int(r.ReadInt32())
	s.DetailSampleDist = r.ReadFloat32()
	s.DetailSampleMaxError = r.ReadFloat32()
	s.TileSize = int(r.ReadInt32())
	if r.ReadBool() {
		s.Bounds = &AABB{Min: readVec3(r), Max: readVec3(r)}
	}
	s.ContourFlags = ContourFlags(r.ReadUint8())
	s.Tiling = r.ReadBool()
	nvol := int(r.ReadUint32())
	if !r.Require(nvol * areaVolumeMinSize) {
		return
	}
	s.AreaVolumes = make([]ConvexVolume, nvol)
	for i := range s.AreaVolumes {
		v := &s.AreaVolumes[i]
		nverts := int(r.ReadUint32())
		if !r.Require(nverts*vec3Size + areaVolumeMinSize - 4) {
			return
		}
		v.Vertices = make([]mgl32.Vec3, nverts)
		for j := range v.Vertices {
			v.Vertices[j] = readVec3(r)
		}
		v.MinY = r.ReadFloat32()
		v.MaxY = r.ReadFloat32()
		v.Area = AreaType(r.ReadUint8())
	}
	s.Up = UpAxis(r.ReadUint8())
}

func writePolyMesh(w *rw.ReaderWriter, m *PolygonNavmesh) {
	w.WriteInt32(int32(m.VertexCount))
	w.WriteInt32(int32(m.PolygonCount))
	w.WriteInt32(int32(m.NVP))
	writeVec3(w, m.Min)
	writeVec3(w, m.Max)
	w.WriteFloat32(m.CellSize)
	w.WriteFloat32(m.CellHeight)
	w.WriteInt32(int32(m.BorderSize))
	w.WriteFloat32(m.MaxEdgeError)
	w.WriteUint16s(m.Vertices[:m.VertexCount*3])
	w.WriteUint16s(m.Polygons[:m.PolygonCount*m.NVP*2])
	for _, reg := range m.Regions[:m.PolygonCount] {
		w.WriteUint16(uint16(reg))
	}
	w.WriteUint16s(m.Flags[:m.PolygonCount])
	for _, a := range m.Areas[:m.PolygonCount] {
		w.WriteUint8(uint8(a))
	}
}

func readPolyMesh(r *rw.ReaderWriter) *PolygonNavmesh {
	m := &PolygonNavmesh{
		VertexCount:  int(r.ReadInt32()),
		PolygonCount: int(r.ReadInt32()),
		NVP:          int(r.ReadInt32()),
	}
	m.Min = readVec3(r)
	m.Max = readVec3(r)
	m.CellSize = r.ReadFloat32()
	m.CellHeight = r.ReadFloat32()
	m.BorderSize = int(r.ReadInt32())
	m.MaxEdgeError = r.ReadFloat32()
	if r.Err() != nil || m.VertexCount < 0 || m.PolygonCount < 0 || m.NVP < 3 || m.NVP > NullIndex {
		return m
	}
	if !r.Require(m.VertexCount * 3 * 2) {
		return m
	}
	m.Vertices = make([]uint16, m.VertexCount*3)
	r.ReadUint16s(m.Vertices)
	// Polygon slots, regions, flags and areas per polygon.
	if !r.Require(m.PolygonCount * (m.NVP*2*2 + 2 + 2 + 1)) {
		return m
	}
	m.Polygons = make([]uint16, m.PolygonCount*m.NVP*2)
	r.ReadUint16s(m.Polygons)
	m.Regions = make([]RegionId, m.PolygonCount)
	for i := range m.Regions {
		m.Regions[i] = RegionId(r.ReadUint16())
	}
	m.Flags = make([]uint16, m.PolygonCount)
	r.ReadUint16s(m.Flags)
	m.Areas = make([]AreaType, m.PolygonCount)
	for i := range m.Areas {
		m.Areas[i] = AreaType(r.ReadUint8())
	}
	return m
}

func writeDetailMesh(w *rw.ReaderWriter, m *DetailNavmesh) {
	w.WriteInt32(int32(len(m.Meshes)))
	w.WriteInt32(int32(len(m.Vertices)))
	w.WriteInt32(int32(len(m.Triangles)))
	for _, sub := range m.Meshes {
		w.WriteUint32s(sub[:])
	}
	for _, v := range m.Vertices {
		writeVec3(w, v)
	}
	for _, t := range m.Triangles {
		w.WriteUint8s(t[:])
	}
}

func readDetailMesh(r *rw.ReaderWriter) *DetailNavmesh {
	m := &DetailNavmesh{}
	nmeshes := int(r.ReadInt32())
	nverts := int(r.ReadInt32())
	ntris := int(r.ReadInt32())
	if r.Err() != nil || nmeshes < 0 || nverts < 0 || ntris < 0 {
		return m
	}
	if !r.Require(nmeshes*16 + nverts*vec3Size + ntris*4) {
		return m
	}
	m.Meshes = make([][4]uint32, nmeshes)
	for i := range m.Meshes {
		r.ReadUint32s(m.Meshes[i][:])
	}
	m.Vertices = make([]mgl32.Vec3, nverts)
	for i := range m.Vertices {
		m.Vertices[i] = readVec3(r)
	}
	m.Triangles = make([][4]uint8, ntris)
	for i := range m.Triangles {
		r.ReadUint8s(m.Triangles[i][:])
	}
	return m
}

// EncodeNav serializes the navmesh into the .nav binary format.
func (nm *Navmesh) EncodeNav() ([]byte, error) {
	w := rw.NewWriter()
	w.WriteUint32(navMagic)
	w.WriteUint32(navVersion)
	writeSettings(w, &nm.Settings)
	writePolyMesh(w, nm.Polygon)
	writeDetailMesh(w, nm.Detail)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("nav encode: %w", err)
	}
	return w.Bytes(), nil
}

// DecodeNav parses a .nav stream produced by EncodeNav.
func DecodeNav(data []byte) (*Navmesh, error) {
	r := rw.NewReader(data)
	if r.ReadUint32() != navMagic {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("nav decode: %w", err)
		}
		return nil, ErrBadMagic
	}
	if v := r.ReadUint32(); v != navVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	nm := &Navmesh{}
	readSettings(r, &nm.Settings)
	nm.Polygon = readPolyMesh(r)
	nm.Detail = readDetailMesh(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("nav decode: %w", err)
	}
	return nm, nil
}
