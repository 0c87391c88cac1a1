package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_EncodeUint64ToBytes(t *testing.T) {
	t.Parallel()

	cases := []uint64{0, 1, 255, 256, 1 << 40, ^uint64(0)}

	for _, c := range cases {
		encoded := EncodeUint64ToBytes(c)
		require.Len(t, encoded, 8)
		require.Equal(t, c, EncodeBytesToUint64(encoded))
	}

	// big endian keys keep bolt cursors in numeric order
	require.Less(t, string(EncodeUint64ToBytes(255)), string(EncodeUint64ToBytes(256)))
}

func Test_SetupDataDir(t *testing.T) {
	t.Parallel()

	dataDir := filepath.Join(t.TempDir(), "gateway")

	require.NoError(t, SetupDataDir(dataDir, []string{"state", "logs"}))

	for _, sub := range []string{"state", "logs"} {
		info, err := os.Stat(filepath.Join(dataDir, sub))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}

	// second call is a no-op
	require.NoError(t, SetupDataDir(dataDir, []string{"state"}))
}
