package archivekit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()

	t.Run("joins a normal relative path", func(t *testing.T) {
		got, err := SafeJoin(base, "acme", "docs", "2025")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "acme", "docs", "2025"), got)
	})

	t.Run("rejects a traversal that escapes base", func(t *testing.T) {
		_, err := SafeJoin(base, "..", "..", "etc", "passwd")
		assert.Error(t, err)
	})

	t.Run("rejects a single element that escapes via ..", func(t *testing.T) {
		_, err := SafeJoin(base, "../outside")
		assert.Error(t, err)
	})

	t.Run("a path that resolves exactly to base is allowed", func(t *testing.T) {
		got, err := SafeJoin(base)
		require.NoError(t, err)
		assert.Equal(t, base, filepath.Clean(got))
	})

	t.Run("a sibling directory that merely shares a name prefix is rejected", func(t *testing.T) {
		// base + "-evil" is not inside base, even though it shares base as a
		// string prefix; SafeJoin must compare path components, not strings.
		_, err := SafeJoin(base, "..", filepath.Base(base)+"-evil")
		assert.Error(t, err)
	})
}
