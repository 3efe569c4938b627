package navmesh

import (
	"bytes"
	"strings"
	"testing"
)

func TestDumpPolyMeshOBJ(t *testing.T) {
	nm := buildNavmesh(t, walkablePlane(12), DefaultSettings())

	var buf bytes.Buffer
	if err := DumpPolyMeshOBJ(nm.Polygon, &buf); err != nil {
		t.Fatalf("dump: %v", err)
	}
	out := buf.String()
	assertTrue(t, strings.HasPrefix(out, "# navgen polygon mesh"), "dump carries the header comment")
	assertTrue(t, strings.Contains(out, "\nf "), "dump contains face lines")
	assertTrue(t, strings.Count(out, "\nv ") == nm.Polygon.VertexCount, "all vertices are dumped")
}

func TestDumpDetailMeshOBJ(t *testing.T) {
	nm := buildNavmesh(t, walkablePlane(12), DefaultSettings())

	var buf bytes.Buffer
	if err := DumpDetailMeshOBJ(nm.Detail, &buf); err != nil {
		t.Fatalf("dump: %v", err)
	}
	out := buf.String()
	assertTrue(t, strings.HasPrefix(out, "# navgen detail mesh"), "dump carries the header comment")
	assertTrue(t, strings.Count(out, "\nv ") == len(nm.Detail.Vertices), "all vertices are dumped")
	assertTrue(t, strings.Count(out, "\nf ") == len(nm.Detail.Triangles), "one face per detail triangle")
}
