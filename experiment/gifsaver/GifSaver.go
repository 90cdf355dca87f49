// Package gifsaver renders recorded screen frames into an animated GIF
package gifsaver

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"

	"github.com/fogleman/gg"

	"github.com/samuelfneumann/goatari/utils/floatutils"
)

// GifSaver records grayscale screen frames during an episode and
// renders them into an animated GIF. Frames are flattened row major
// vectors of luminance values in [0, 1], as produced by the Atari
// environment.
type GifSaver struct {
	rows, cols int
	scale      int
	delay      int // Hundredths of a second between frames

	frames   []*image.Paletted
	filename string
}

// New returns a new GifSaver that renders rows x cols frames,
// upscaled by scale, into the file named filename. The delay parameter
// gives the time between frames in hundredths of a second.
func New(rows, cols, scale, delay int, filename string) (*GifSaver, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("new: frame dimensions must be positive "+
			"\n\thave(%v x %v)", rows, cols)
	}
	if scale < 1 {
		return nil, fmt.Errorf("new: scale must be positive \n\thave(%v)",
			scale)
	}

	return &GifSaver{
		rows:     rows,
		cols:     cols,
		scale:    scale,
		delay:    delay,
		filename: filename,
	}, nil
}

// Record renders a single frame and caches it for saving
func (g *GifSaver) Record(frame []float64) error {
	if len(frame) != g.rows*g.cols {
		return fmt.Errorf("record: invalid frame size \n\twant(%v) "+
			"\n\thave(%v)", g.rows*g.cols, len(frame))
	}

	gray := image.NewGray(image.Rect(0, 0, g.cols, g.rows))
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			luminance := floatutils.Clip(frame[r*g.cols+c], 0.0, 1.0)
			gray.SetGray(c, r, color.Gray{Y: uint8(luminance * 255)})
		}
	}

	// Upscale the frame
	dc := gg.NewContext(g.cols*g.scale, g.rows*g.scale)
	dc.Scale(float64(g.scale), float64(g.scale))
	dc.DrawImage(gray, 0, 0)

	scaled := dc.Image()
	paletted := image.NewPaletted(scaled.Bounds(), grayPalette())
	draw.Draw(paletted, paletted.Bounds(), scaled, image.Point{},
		draw.Src)

	g.frames = append(g.frames, paletted)
	return nil
}

// Len returns the number of frames recorded so far
func (g *GifSaver) Len() int {
	return len(g.frames)
}

// Save writes the recorded frames to disk as an animated GIF
func (g *GifSaver) Save() error {
	if len(g.frames) == 0 {
		return fmt.Errorf("save: no frames recorded")
	}

	delays := make([]int, len(g.frames))
	for i := range delays {
		delays[i] = g.delay
	}

	file, err := os.Create(g.filename)
	if err != nil {
		return fmt.Errorf("save: could not create file: %v", err)
	}
	defer file.Close()

	anim := &gif.GIF{
		Image: g.frames,
		Delay: delays,
	}
	if err := gif.EncodeAll(file, anim); err != nil {
		return fmt.Errorf("save: could not encode gif: %v", err)
	}
	return nil
}

// grayPalette returns a 256 level grayscale palette
func grayPalette() color.Palette {
	palette := make(color.Palette, 256)
	for i := range palette {
		palette[i] = color.Gray{Y: uint8(i)}
	}
	return palette
}
