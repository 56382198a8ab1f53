// SPDX-License-Identifier: MIT
// Package export rasterises patterns and writes them as PNG images.
package export

import (
	"context"
	"fmt"
	"image"
	imgcolor "image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"cymatics/internal/color"
	"cymatics/internal/frame"
	"cymatics/internal/pattern"
	"cymatics/internal/tuning"
)

// Image shades p with the note's ramp, drawing each cell as a scale×scale
// block. scale < 1 is treated as 1.
func Image(p *pattern.Pattern, table *color.Table, note tuning.Note, scale int) *image.RGBA {
	scale = max(scale, 1)
	img := image.NewRGBA(image.Rect(0, 0, p.Size*scale, p.Size*scale))

	for y := range p.Size {
		for x := range p.Size {
			r, g, b := table.Shade(note, p.At(y, x)).RGB255()
			c := imgcolor.RGBA{R: r, G: g, B: b, A: 0xff}
			for dy := range scale {
				for dx := range scale {
					img.SetRGBA(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return img
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(path string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}

// WriteFrame renders one frame to path.
func WriteFrame(path string, f frame.Frame, table *color.Table, scale int) error {
	return WritePNG(path, Image(f.Pattern, table, f.Note, scale))
}

// FrameName is the file name of frame i in a sequence.
func FrameName(i int) string {
	return fmt.Sprintf("frame_%05d.png", i)
}

// WriteSequence writes frames to dir in parallel and returns the paths in
// frame order.
func WriteSequence(ctx context.Context, dir string, frames []frame.Frame, table *color.Table, scale int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range frames {
		paths[i] = filepath.Join(dir, FrameName(f.Index))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := WriteFrame(paths[i], f, table, scale); err != nil {
				return fmt.Errorf("writing frame %d: %w", f.Index, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// SummaryName is the file name of the clip summary image.
const SummaryName = "summary.png"

var (
	background = imgcolor.RGBA{A: 0xff}
	trace      = imgcolor.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}
)

// Summary draws the clip waveform over the top two thirds of a width×width/2
// image and the summary notes as a strip of swatches below it, each as wide
// as its share of the matched segments.
func Summary(samples []float64, notes []frame.NoteSummary, width int) *image.RGBA {
	width = max(width, 2)
	height := width / 2
	wave := height * 2 / 3
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetRGBA(x, y, background)
		}
	}

	if len(samples) > 0 {
		mid := float64(wave-1) / 2
		for x := range width {
			lo, hi := x*len(samples)/width, (x+1)*len(samples)/width
			if hi <= lo {
				hi = min(lo+1, len(samples))
			}
			col := samples[lo:hi]
			top := int(mid - max(min(floats.Max(col), 1), -1)*mid)
			bottom := int(mid - max(min(floats.Min(col), 1), -1)*mid)
			for y := top; y <= bottom; y++ {
				img.SetRGBA(x, y, trace)
			}
		}
	}

	var total int
	for _, n := range notes {
		total += n.Count
	}
	if total == 0 {
		return img
	}
	var seen int
	for _, n := range notes {
		x0 := seen * width / total
		seen += n.Count
		x1 := seen * width / total
		r, g, b := n.Color.RGB255()
		c := imgcolor.RGBA{R: r, G: g, B: b, A: 0xff}
		for y := wave; y < height; y++ {
			for x := x0; x < x1; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
	return img
}
