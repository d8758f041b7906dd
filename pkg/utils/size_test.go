package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	testData := []struct {
		input string
		value int64
	}{
		{"0", 0},
		{"0 KB", 0},
		{"17", 17},
		{"123KiB", 123 * 1024},
		{"123 MiB", 123 * 1024 * 1024},
		{"123GiB", 123 * 1024 * 1024 * 1024},
		{"123K", 123 * 1000},
		{"123MB", 123 * 1000 * 1000},
		{"10GB", 10 * 1000 * 1000 * 1000},
	}

	for _, data := range testData {
		size, err := ParseSize(data.input)
		assert.NoError(t, err, data.input)
		assert.Equal(t, data.value, size, data.input)
	}
}

func TestParseSizeFail(t *testing.T) {
	for _, input := range []string{"", "abc", "-1", "01K", "12XB"} {
		_, err := ParseSize(input)
		assert.ErrorIs(t, err, ErrBadRequest, input)
	}
}

func TestHumanByteSize(t *testing.T) {
	assert.Equal(t, "12B", HumanByteSize(12))
	assert.Equal(t, "2KiB", HumanByteSize(2048))
	assert.Equal(t, "1.5MiB", HumanByteSize(1536*1024))
	assert.Equal(t, "3.00GiB", HumanByteSize(3<<30))
}
