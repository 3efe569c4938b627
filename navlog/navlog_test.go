package navlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNop(t *testing.T) {
	logger := Nop()
	require.NotNil(t, logger)
	logger.Info("discarded")
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navgen.log")
	logger := New(path)
	logger.Info("hello from navgen")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from navgen")
}
