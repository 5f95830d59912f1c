package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// tempName returns a unique sibling of name for staging a write. Concurrent
// writers to the same directory never share a temporary file.
func tempName(name string) string {
	dir, base := filepath.Split(name)
	return filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
}

// WriteFileAtomic writes data next to name under a temporary name and renames
// it into place, so readers never observe a partially written file.
func WriteFileAtomic(fsys FileSystem, name string, data []byte, perm os.FileMode) error {
	tmp := tempName(name)

	if err := fsys.WriteFile(tmp, data, perm); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := fsys.Rename(tmp, name); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
