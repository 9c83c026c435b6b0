// Package ranges splits a byte size into contiguous ranges for
// multi-part transfers.
package ranges

import (
	"errors"
	"fmt"
	"math"
	"path"
)

// ErrZeroParts is returned when a size is split into zero parts.
var ErrZeroParts = errors.New("division by zero: number of parts is 0")

// TooManyPartsError indicates that the file is too small to be split
// into the requested number of parts.
type TooManyPartsError struct {
	Parts int
	Size  int64
}

func (e *TooManyPartsError) Error() string {
	return fmt.Sprintf("amount of parts '%d' is greater than the size '%d'", e.Parts, e.Size)
}

// Calculate splits sizeBytes into numberParts contiguous ranges.
//
// Each range is rendered as "{start}-{end}". The first range starts at
// 0, every subsequent range starts right after the previous one, and
// the last range ends at sizeBytes. The textual format is transmitted
// verbatim as an HTTP byte-range parameter, so it is part of the
// contract.
func Calculate(sizeBytes int64, numberParts int) ([]string, error) {
	if numberParts == 0 {
		return nil, ErrZeroParts
	}
	if int64(numberParts) > sizeBytes {
		return nil, &TooManyPartsError{Parts: numberParts, Size: sizeBytes}
	}

	partSize := float64(sizeBytes) / float64(numberParts)
	out := make([]string, 0, numberParts)
	for i := 0; i < numberParts; i++ {
		if i == 0 {
			out = append(out, fmt.Sprintf("0-%d", round(partSize)))
			continue
		}
		start := round(float64(i)*partSize) + 1
		end := round(float64(i+1) * partSize)
		out = append(out, fmt.Sprintf("%d-%d", start, end))
	}
	return out, nil
}

// PartFileName returns the name of the file holding part idx, for
// example "video.mxf.part2". When dir is non-empty the name is joined
// onto it with forward slashes, as the parts live on the remote host.
func PartFileName(name string, idx int, dir string) string {
	part := fmt.Sprintf("%s.part%d", name, idx)
	if dir == "" {
		return part
	}
	return path.Join(dir, part)
}

func round(v float64) int64 {
	return int64(math.Round(v))
}
