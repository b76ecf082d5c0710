package pointio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/TrevorS/kdtree"
)

// Format is an output format.
type Format string

// Supported output formats.
const (
	FormatCSV   Format = "csv"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatYAML, FormatTable:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// LabeledPoint is one row of clustering output.
type LabeledPoint struct {
	Coords  []float64 `yaml:"coords,flow"`
	Cluster int       `yaml:"cluster"`
}

// NeighborRow is one row of query output.
type NeighborRow struct {
	ID       int     `yaml:"id"`
	Distance float64 `yaml:"distance"`
}

// WriteLabels writes every point with its cluster label; labels[i]
// belongs to points[i].
func WriteLabels(w io.Writer, points [][]float64, labels []int, format Format) error {
	if len(points) != len(labels) {
		return fmt.Errorf("write labels: %d points but %d labels", len(points), len(labels))
	}

	rows := make([]LabeledPoint, len(points))
	for i, p := range points {
		rows[i] = LabeledPoint{Coords: p, Cluster: labels[i]}
	}

	switch format {
	case FormatYAML:
		return encodeYAML(w, rows)
	case FormatCSV, FormatTable:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	var dims int
	if len(points) > 0 {
		dims = len(points[0])
	}
	header := make([]string, 0, dims+1)
	for i := 0; i < dims; i++ {
		header = append(header, coordName(i))
	}
	header = append(header, "cluster")

	records := make([][]string, len(rows))
	for i, r := range rows {
		rec := make([]string, 0, dims+1)
		for _, v := range r.Coords {
			rec = append(rec, formatFloat(v))
		}
		records[i] = append(rec, strconv.Itoa(r.Cluster))
	}

	if format == FormatTable {
		return renderTable(w, header, records)
	}
	return writeCSV(w, header, records)
}

// WriteNeighbors writes query results with their Euclidean distances.
func WriteNeighbors(w io.Writer, nbs []kdtree.Neighbor, format Format) error {
	rows := make([]NeighborRow, len(nbs))
	for i, nb := range nbs {
		rows[i] = NeighborRow{ID: nb.ID, Distance: math.Sqrt(nb.SqDist)}
	}

	switch format {
	case FormatYAML:
		return encodeYAML(w, rows)
	case FormatCSV, FormatTable:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	header := []string{"id", "distance"}
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{strconv.Itoa(r.ID), formatFloat(r.Distance)}
	}
	if format == FormatTable {
		return renderTable(w, header, records)
	}
	return writeCSV(w, header, records)
}

// WriteIDs writes a list of point ids, one per row.
func WriteIDs(w io.Writer, ids []int, format Format) error {
	switch format {
	case FormatYAML:
		return encodeYAML(w, ids)
	case FormatCSV, FormatTable:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	records := make([][]string, len(ids))
	for i, id := range ids {
		records[i] = []string{strconv.Itoa(id)}
	}
	if format == FormatTable {
		return renderTable(w, []string{"id"}, records)
	}
	return writeCSV(w, []string{"id"}, records)
}

func coordName(i int) string {
	if i < 3 {
		return []string{"x", "y", "z"}[i]
	}
	return "c" + strconv.Itoa(i+1)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func renderTable(w io.Writer, header []string, records [][]string) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)

	hr := make(table.Row, len(header))
	for i, h := range header {
		hr[i] = h
	}
	tbl.AppendHeader(hr)
	for _, rec := range records {
		row := make(table.Row, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		tbl.AppendRow(row)
	}

	if _, err := io.WriteString(w, tbl.Render()+"\n"); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}
