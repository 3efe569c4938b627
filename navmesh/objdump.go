package navmesh

import (
	"fmt"
	"io"
)

// DumpPolyMeshOBJ writes the polygon mesh as a Wavefront OBJ fan
// triangulation, for inspection in any mesh viewer.
func DumpPolyMeshOBJ(m *PolygonNavmesh, w io.Writer) error {
	cs := m.CellSize
	ch := m.CellHeight
	orig := m.Min

	if _, err := fmt.Fprintf(w, "# navgen polygon mesh\no NavMesh\n\n"); err != nil {
		return err
	}
	for i := 0; i < m.VertexCount; i++ {
		v := m.Vertices[i*3 : i*3+3]
		x := orig[0] + float32(v[0])*cs
		y := orig[1] + float32(v[1]+1)*ch + 0.1
		z := orig[2] + float32(v[2])*cs
		if _, err := fmt.Fprintf(w, "v %f %f %f\n", x, y, z); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for i := 0; i < m.PolygonCount; i++ {
		p := m.polygon(i)
		for j := 2; j < m.NVP; j++ {
			if p[j] == NullIndex {
				break
			}
			if _, err := fmt.Fprintf(w, "f %d %d %d\n", p[0]+1, p[j-1]+1, p[j]+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// DumpDetailMeshOBJ writes the detail mesh as a Wavefront OBJ.
func DumpDetailMeshOBJ(m *DetailNavmesh, w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# navgen detail mesh\no NavMeshDetail\n\n"); err != nil {
		return err
	}
	for _, v := range m.Vertices {
		if _, err := fmt.Fprintf(w, "v %f %f %f\n", v[0], v[1], v[2]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for _, sub := range m.Meshes {
		bverts := int(sub[0])
		btris := int(sub[2])
		ntris := int(sub[3])
		for j := 0; j < ntris; j++ {
			t := m.Triangles[btris+j]
			if _, err := fmt.Fprintf(w, "f %d %d %d\n",
				bverts+int(t[0])+1, bverts+int(t[1])+1, bverts+int(t[2])+1); err != nil {
				return err
			}
		}
	}
	return nil
}
