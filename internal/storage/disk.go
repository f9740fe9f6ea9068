package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// UsageBytes returns the bytes stored under the blob root. In-flight temporary
// writes are not counted.
func (s *DiskBlobStore) UsageBytes() (int64, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return 0, nil
	}
	var total int64
	err := filepath.WalkDir(s.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), blobTempPrefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
