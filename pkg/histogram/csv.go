package histogram

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/clementsan/poresize/internal/fsutil"
)

// Header is the first CSV row
var Header = []string{"Bin Number", "Bin Range", "Count", "Percent"}

// RangeLabel formats a bin's range as "min - max"
func (b Bin) RangeLabel() string {
	return fmt.Sprintf("%.3f - %.3f", b.Min, b.Max)
}

// WriteCSV writes one row per bin after Header
func (h *Histogram) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, b := range h.Bins {
		row := []string{
			strconv.Itoa(b.Index),
			b.RangeLabel(),
			strconv.Itoa(b.Count),
			strconv.FormatFloat(b.Fraction, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the CSV table to path
func (h *Histogram) SaveCSV(path string) error {
	return fsutil.WriteAtomic(path, h.WriteCSV)
}

// WriteTable prints an aligned human-readable table
func (h *Histogram) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	for _, b := range h.Bins {
		fmt.Fprintf(tw, "%s:\t%d\t%.3f\t\n", b.RangeLabel(), b.Count, b.Fraction)
	}
	return tw.Flush()
}
