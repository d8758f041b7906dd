package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var sizeRe = regexp.MustCompile(`^(0|[1-9][0-9]*) ?([KMGTPE]i?)?B?$`)

var sizeUnits = map[string]int64{
	"":   1,
	"K":  1000,
	"M":  1000 * 1000,
	"G":  1000 * 1000 * 1000,
	"T":  1000 * 1000 * 1000 * 1000,
	"P":  1000 * 1000 * 1000 * 1000 * 1000,
	"E":  1000 * 1000 * 1000 * 1000 * 1000 * 1000,
	"Ki": 1 << 10,
	"Mi": 1 << 20,
	"Gi": 1 << 30,
	"Ti": 1 << 40,
	"Pi": 1 << 50,
	"Ei": 1 << 60,
}

// ParseSize parses sizes like "10GB", "512 MiB" or "42".
func ParseSize(size string) (int64, error) {
	parts := sizeRe.FindStringSubmatch(strings.TrimSpace(size))
	if parts == nil {
		return 0, fmt.Errorf("%w: invalid size: %v", ErrBadRequest, size)
	}

	value, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid size: %v", ErrBadRequest, size)
	}

	return value * sizeUnits[parts[2]], nil
}

func HumanByteSize(byteSize int64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

	index := 0
	size := float64(byteSize)
	for size > 1024 && index < len(units)-1 {
		size /= 1024
		index += 1
	}

	switch {
	case index < 2:
		return fmt.Sprintf("%.0f%s", size, units[index])
	case index == 2:
		return fmt.Sprintf("%.1f%s", size, units[index])
	default:
		return fmt.Sprintf("%.2f%s", size, units[index])
	}
}
