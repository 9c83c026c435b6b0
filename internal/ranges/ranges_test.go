package ranges

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		parts    int
		expected []string
	}{
		{
			name:     "four parts",
			size:     1303,
			parts:    4,
			expected: []string{"0-326", "327-652", "653-977", "978-1303"},
		},
		{
			name:     "part per byte",
			size:     6,
			parts:    6,
			expected: []string{"0-1", "2-2", "3-3", "4-4", "5-5", "6-6"},
		},
		{
			name:     "single part",
			size:     1000,
			parts:    1,
			expected: []string{"0-1000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.size, tt.parts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCalculateContiguous(t *testing.T) {
	// Ranges must be gapless for any valid size/parts combination.
	for _, size := range []int64{7, 100, 1303, 4096, 999999} {
		for _, parts := range []int{1, 2, 3, 4, 7} {
			got, err := Calculate(size, parts)
			require.NoError(t, err)
			require.Len(t, got, parts)

			prevEnd := int64(-1)
			for i, rng := range got {
				start, end := parseRange(t, rng)
				assert.Equal(t, prevEnd+1, start, "size=%d parts=%d range %d", size, parts, i)
				assert.LessOrEqual(t, start, end)
				prevEnd = end
			}
			assert.Equal(t, size, prevEnd, "size=%d parts=%d", size, parts)
		}
	}
}

func TestCalculateZeroParts(t *testing.T) {
	_, err := Calculate(100, 0)
	assert.ErrorIs(t, err, ErrZeroParts)
}

func TestCalculateTooManyParts(t *testing.T) {
	_, err := Calculate(2, 4)
	var tooMany *TooManyPartsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, "amount of parts '4' is greater than the size '2'", err.Error())
}

func TestPartFileName(t *testing.T) {
	assert.Equal(t, "video.mxf.part0", PartFileName("video.mxf", 0, ""))
	assert.Equal(t, "/data/video.mxf.part/video.mxf.part3", PartFileName("video.mxf", 3, "/data/video.mxf.part"))
}

func parseRange(t *testing.T, rng string) (int64, int64) {
	t.Helper()
	fields := strings.SplitN(rng, "-", 2)
	require.Len(t, fields, 2, fmt.Sprintf("malformed range %q", rng))
	start, err := strconv.ParseInt(fields[0], 10, 64)
	require.NoError(t, err)
	end, err := strconv.ParseInt(fields[1], 10, 64)
	require.NoError(t, err)
	return start, end
}
