package histogram

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/clementsan/poresize/internal/models"
)

// PlotOptions sizes the bar chart in inches
type PlotOptions struct {
	Title  string
	Width  float64
	Height float64
}

func (h *Histogram) newPlot(opts PlotOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = "Covering radius histogram"
	}
	p.X.Label.Text = "Covering radius (bin)"
	p.Y.Label.Text = "Fraction of voxels"

	values := make(plotter.Values, len(h.Bins))
	names := make([]string, len(h.Bins))
	for i, b := range h.Bins {
		values[i] = b.Fraction
		names[i] = fmt.Sprintf("%.2f", b.Min)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(barWidth(len(h.Bins))))
	if err != nil {
		return nil, fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// barWidth keeps wide histograms readable on a fixed-size canvas
func barWidth(n int) float64 {
	switch {
	case n <= 10:
		return 20
	case n <= 50:
		return 8
	default:
		return 3
	}
}

// plotFormats are the image formats gonum/plot can render
var plotFormats = map[string]bool{
	"eps": true, "jpg": true, "jpeg": true, "pdf": true,
	"png": true, "svg": true, "tex": true, "tif": true, "tiff": true,
}

// PlotFormat returns the image format implied by the extension of path,
// png when it has none. An unsupported extension is a ConfigError.
func PlotFormat(path string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return "png", nil
	}
	if !plotFormats[format] {
		return "", models.Configf("unsupported plot format %q for %s", format, path)
	}
	return format, nil
}

// WritePlot renders the chart in the given image format (png, svg, pdf)
func (h *Histogram) WritePlot(w io.Writer, format string, opts PlotOptions) error {
	if !plotFormats[format] {
		return models.Configf("unsupported plot format %q", format)
	}
	p, err := h.newPlot(opts)
	if err != nil {
		return err
	}
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 8
	}
	if height <= 0 {
		height = 5
	}
	wt, err := p.WriterTo(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// RenderPlot renders the chart for path into memory
func (h *Histogram) RenderPlot(path string, opts PlotOptions) ([]byte, error) {
	format, err := PlotFormat(path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := h.WritePlot(&buf, format, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
