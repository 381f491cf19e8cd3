// Package filex holds small filesystem helpers for attachment storage.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates root/name (including parents) and returns the joined
// path. Existing directories are left untouched.
func EnsureDir(root, name string) (string, error) {
	dir := filepath.Join(root, name)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
