//go:build linux

package main

import (
	"github.com/srand/jolt/grid/pkg/utils"
)

func init() {
	// Disable transparent huge pages to workaround memory leaks
	utils.DisableTHP()
}
