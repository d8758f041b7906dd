//go:build !linux

package utils

// DisableTHP is a no-op outside of linux.
func DisableTHP() {}
