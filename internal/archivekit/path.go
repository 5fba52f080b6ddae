package archivekit

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/juanre/mail-flow/internal/errs"
)

// SafeJoin joins base and elem, and rejects the result if it would escape
// base (path traversal). Used wherever the archive writer builds a target
// directory from caller-controlled segments (workflow entity, stream kind
// and channel, the originals directory).
func SafeJoin(base string, elem ...string) (string, error) {
	joined := filepath.Join(append([]string{base}, elem...)...)
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", errs.New(errs.PathSecurityError, "safe-join", err)
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", errs.New(errs.PathSecurityError, "safe-join", err)
	}
	if absJoined != absBase && !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) {
		return "", errs.New(errs.PathSecurityError, "safe-join",
			fmt.Errorf("path %q escapes base %q", joined, base))
	}
	return joined, nil
}
