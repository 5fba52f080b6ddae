package archivekit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	t.Run("strips directory components using the OS path separator", func(t *testing.T) {
		assert.Equal(t, "passwd", SanitizeFilename("/etc/passwd", 0))
	})

	t.Run("a backslash that filepath.Base can't split on is still sanitized away", func(t *testing.T) {
		// filepath.Base is a no-op for "\" on non-Windows GOOS, so this name
		// survives Base() intact; illegalChars must still strip it.
		got := SanitizeFilename(`C:\Windows\passwd`, 0)
		assert.NotContains(t, got, `\`)
		assert.NotContains(t, got, ":")
	})

	t.Run("result contains no slash, backslash, control bytes, or illegal chars", func(t *testing.T) {
		dirty := "weird<>:\"|?*\\name\x00\x01\x7f.txt"
		got := SanitizeFilename(dirty, 0)
		assert.NotContains(t, got, "/")
		assert.NotContains(t, got, `\`)
		for _, c := range []rune{'<', '>', ':', '"', '|', '?', '*'} {
			assert.NotContains(t, got, string(c))
		}
		for b := byte(0); b < 0x20; b++ {
			assert.NotContains(t, got, string(rune(b)))
		}
		assert.NotContains(t, got, "\x7f")
	})

	t.Run("collapses runs of separators", func(t *testing.T) {
		got := SanitizeFilename("a---b.txt", 0)
		assert.Equal(t, "a-b.txt", got)
	})

	t.Run("trims leading and trailing dots and dashes", func(t *testing.T) {
		got := SanitizeFilename("...--leading.txt--...", 0)
		assert.False(t, strings.HasPrefix(got, "."))
		assert.False(t, strings.HasPrefix(got, "-"))
		assert.False(t, strings.HasSuffix(got, "."))
		assert.False(t, strings.HasSuffix(got, "-"))
	})

	t.Run("truncates long names while preserving one extension", func(t *testing.T) {
		long := strings.Repeat("a", 300) + ".pdf"
		got := SanitizeFilename(long, 50)
		assert.LessOrEqual(t, len(got), 50)
		assert.True(t, strings.HasSuffix(got, ".pdf"))
	})

	t.Run("uses default max of 200 when max<=0", func(t *testing.T) {
		long := strings.Repeat("a", 500)
		got := SanitizeFilename(long, 0)
		assert.LessOrEqual(t, len(got), 200)
	})

	t.Run("short names pass through untouched aside from illegal chars", func(t *testing.T) {
		assert.Equal(t, "invoice.pdf", SanitizeFilename("invoice.pdf", 0))
	})
}

func TestNormalizeNameBase(t *testing.T) {
	t.Run("lowercases and maps whitespace to dashes", func(t *testing.T) {
		assert.Equal(t, "my-invoice", NormalizeNameBase("My Invoice", 0))
	})

	t.Run("strips characters outside a-z0-9._-", func(t *testing.T) {
		assert.Equal(t, "invoice42", NormalizeNameBase("Invoice#42!", 0))
	})

	t.Run("truncates to max", func(t *testing.T) {
		got := NormalizeNameBase(strings.Repeat("a", 300), 10)
		assert.Len(t, got, 10)
	})
}

func TestExtensionFor(t *testing.T) {
	t.Run("prefers the original filename's extension", func(t *testing.T) {
		assert.Equal(t, "docx", ExtensionFor("application/pdf", "report.DOCX"))
	})

	t.Run("falls back to the mimetype table", func(t *testing.T) {
		assert.Equal(t, "pdf", ExtensionFor("application/pdf", ""))
	})

	t.Run("defaults to bin for unknown mimetype and no filename", func(t *testing.T) {
		assert.Equal(t, "bin", ExtensionFor("application/x-unknown", ""))
	})
}

func TestFilenameBase(t *testing.T) {
	t.Run("formats as date-source-base36epoch", func(t *testing.T) {
		ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		got := FilenameBase("mail", ts)
		assert.True(t, strings.HasPrefix(got, "2025-03-01-mail-"))
	})
}

func TestResolveCollision(t *testing.T) {
	t.Run("returns base when it doesn't exist", func(t *testing.T) {
		got, err := ResolveCollision("base", func(string) bool { return false })
		require.NoError(t, err)
		assert.Equal(t, "base", got)
	})

	t.Run("appends -N on collision", func(t *testing.T) {
		seen := map[string]bool{"base": true, "base-1": true}
		got, err := ResolveCollision("base", func(c string) bool { return seen[c] })
		require.NoError(t, err)
		assert.Equal(t, "base-2", got)
	})

	t.Run("errors after 999 attempts", func(t *testing.T) {
		_, err := ResolveCollision("base", func(string) bool { return true })
		assert.Error(t, err)
	})
}
