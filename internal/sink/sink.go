// Package sink writes accepted attachments into the deterministic
// destination layout, skipping files that already exist.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sanitize replaces every character not legal in a path segment with
// an underscore.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(`/\:*?"<>|`, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Path synthesizes the destination path for an attachment:
// root/yyyy-MM/yyyy-MM-dd_<senderDomain>_<filename>, sanitized. It is
// a pure function of its inputs; identical inputs always yield the
// identical path, which is what makes writes idempotent.
func Path(root string, delivered time.Time, senderDomain, filename string) string {
	month := delivered.Format("2006-01")
	name := Sanitize(fmt.Sprintf("%s_%s_%s", delivered.Format("2006-01-02"), senderDomain, filename))
	return filepath.Join(root, month, name)
}

// Write streams data to path unless a file is already present there.
// It returns false with no error for the already-present case.
func Write(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create destination dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
