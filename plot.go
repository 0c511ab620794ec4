package mlp_go

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// PlotClassification Draws image and horizontal bar chart of class probabilities side by side and saves it as PNG
//
// pixels - image values of (rows*cols) length. Any finite range is accepted: values are rescaled to [0;255]
// probs - probability for each class
// classNames - label for each bar
//
func PlotClassification(pixels []float64, rows, cols int, probs []float64, classNames []string, fname string) error {
	if rows <= 0 || cols <= 0 || len(pixels) != rows*cols {
		return fmt.Errorf("image must have %dx%d values, but got %d", rows, cols, len(pixels))
	}
	if i := nonFiniteIdx(pixels); i >= 0 {
		return fmt.Errorf("pixel #%d is not finite: %v", i, pixels[i])
	}
	if len(probs) == 0 {
		return fmt.Errorf("probabilities are empty")
	}
	if i := nonFiniteIdx(probs); i >= 0 {
		return fmt.Errorf("probability #%d is not finite: %v", i, probs[i])
	}
	if len(probs) != len(classNames) {
		return fmt.Errorf("probabilities and class names must have same number of elements, but got %d and %d", len(probs), len(classNames))
	}

	imgPlot := plot.New()
	imgPlot.HideAxes()
	imgPlot.Add(plotter.NewImage(toGray(pixels, rows, cols), 0, 0, float64(cols), float64(rows)))

	bars, err := plotter.NewBarChart(plotter.Values(probs), vg.Points(14))
	if err != nil {
		return errors.Wrap(err, "Can't init new bar chart")
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bars.LineStyle.Width = 0
	barPlot := plot.New()
	barPlot.Title.Text = "Class Probability"
	barPlot.Add(bars)
	barPlot.NominalY(classNames...)
	barPlot.X.Min = 0
	barPlot.X.Max = 1.1

	canvas := vgimg.New(9*vg.Inch, 4*vg.Inch)
	dc := draw.New(canvas)
	tiles := draw.Tiles{
		Rows: 1,
		Cols: 2,
		PadX: vg.Millimeter * 4,
	}
	canvases := plot.Align([][]*plot.Plot{{imgPlot, barPlot}}, tiles, dc)
	imgPlot.Draw(canvases[0][0])
	barPlot.Draw(canvases[0][1])

	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrapf(err, "Can't create file '%s'", fname)
	}
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(f); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// toGray Rescales finite values to [0;255]. NaN becomes black, infinities are clamped
func toGray(pixels []float64, rows, cols int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range pixels {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		lo, hi = math.Min(lo, p), math.Max(hi, p)
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			p := pixels[y*cols+x]
			v := 0.0
			switch {
			case math.IsNaN(p) || math.IsInf(p, -1):
			case math.IsInf(p, 1):
				v = 255
			default:
				v = math.Max(0, math.Min(255, (p-lo)*scale))
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// PlotLosses Plot chart of losses per epoch. Validation losses could be nil
func PlotLosses(train, valid []float64, fname string) error {
	if len(train) == 0 {
		return fmt.Errorf("training losses are empty")
	}
	if valid != nil && len(valid) != len(train) {
		return fmt.Errorf("training and validation losses must have same number of elements, but got %d and %d", len(train), len(valid))
	}
	p := plot.New()
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())

	trainLine, err := plotter.NewLine(epochXYs(train))
	if err != nil {
		return errors.Wrap(err, "Can't init training loss line")
	}
	trainLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(trainLine)
	p.Legend.Add("Training loss", trainLine)

	if valid != nil {
		validLine, err := plotter.NewLine(epochXYs(valid))
		if err != nil {
			return errors.Wrap(err, "Can't init validation loss line")
		}
		validLine.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
		p.Add(validLine)
		p.Legend.Add("Validation loss", validLine)
	}
	// Save the plot to a PNG file.
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

func epochXYs(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i].X = float64(i + 1)
		xys[i].Y = v
	}
	return xys
}
