// Package fsutil holds small filesystem helpers; its one helper is used by
// the HTTP server.
package fsutil

import (
	"fmt"
	"os"
)

// IsRegularFile reports an error unless path exists and is a regular file
// (not a directory, symlink, device, etc). The HTTP server checks this
// before streaming a transport-stream artifact so a store entry pointing at
// something other than a plain file 404s instead of being served.
func IsRegularFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("fsutil: not a regular file: %s", path)
	}
	return nil
}
