//go:build linux

package utils

import (
	"github.com/srand/jolt/grid/pkg/log"
	"golang.org/x/sys/unix"
)

// DisableTHP disables transparent huge pages for the process.
// Long running servers holding many small cache buffers otherwise
// keep growing their resident set.
func DisableTHP() {
	log.Debug("Disabling transparent huge pages")
	if err := unix.Prctl(unix.PR_SET_THP_DISABLE, 1, 0, 0, 0); err != nil {
		log.Warn("Failed to disable transparent huge pages:", err)
	}
}
