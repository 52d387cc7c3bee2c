package merge

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/spimidx/internal/ilog"
)

// cleanupScratch removes the blocks/ and doc_store_parts/ scratch
// directories after a successful build. It
// enumerates matched files with doublestar before removal purely so a
// caller running with SPIMIDX_DEBUG can see what scratch is being
// reclaimed; the actual removal is a directory-level RemoveAll.
func cleanupScratch(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(dir), "**/*")
		if err == nil {
			for _, m := range matches {
				ilog.Logf("merge: removing scratch file %s", filepath.Join(dir, m))
			}
		}
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
