// Package pointio reads point clouds from delimited text and writes
// clustering and query results.
package pointio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Sentinel read errors.
var (
	ErrNoData      = errors.New("no points in input")
	ErrColumnCount = errors.New("wrong number of columns")
	ErrParse       = errors.New("invalid number")
)

// ReadOptions controls how rows are split into coordinates.
type ReadOptions struct {
	// Dims is the number of coordinate columns. 0 takes the column count
	// of the first data row.
	Dims int

	// SkipHeader ignores the first non-comment line.
	SkipHeader bool
}

// ReadPoints reads one point per line. Values are separated by commas,
// semicolons, tabs or spaces. Blank lines and lines starting with '#' are
// skipped. Values must be finite; NaN and infinities are parse errors.
// Errors name the 1-based input line.
func ReadPoints(r io.Reader, opts ReadOptions) ([][]float64, error) {
	var pts [][]float64
	dims := opts.Dims
	header := opts.SkipHeader

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if header {
			header = false
			continue
		}

		fields := splitFields(text)
		if dims == 0 {
			dims = len(fields)
		}
		if len(fields) != dims {
			return nil, fmt.Errorf("line %d: %w: got %d, want %d", line, ErrColumnCount, len(fields), dims)
		}

		p := make([]float64, dims)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d, column %d: %w %q", line, i+1, ErrParse, f)
			}
			p[i] = v
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read points: %w", err)
	}
	if len(pts) == 0 {
		return nil, ErrNoData
	}
	return pts, nil
}

func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}
