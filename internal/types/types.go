package types

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// Channels is the number of bytes per pixel in a Frame (RGB24).
const Channels = 3

type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// FrameSize is the byte length of one RGB24 frame at this resolution.
func (r Resolution) FrameSize() int { return r.Width * r.Height * Channels }

// Frame is a decoded RGB24 picture, rows top to bottom, no padding.
// Frames are never mutated after the source hands them out.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

func (f Frame) Resolution() Resolution { return Resolution{Width: f.Width, Height: f.Height} }

// RGBA converts the frame into an image the standard library can draw from.
func (f Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	n := f.Width * f.Height
	if len(f.Pix) < n*Channels {
		n = len(f.Pix) / Channels
	}
	for i := 0; i < n; i++ {
		img.Pix[i*4+0] = f.Pix[i*Channels+0]
		img.Pix[i*4+1] = f.Pix[i*Channels+1]
		img.Pix[i*4+2] = f.Pix[i*Channels+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// FrameFromImage flattens any image into an RGB24 frame, dropping alpha.
func FrameFromImage(img image.Image) Frame {
	b := img.Bounds()
	f := Frame{Width: b.Dx(), Height: b.Dy(), Pix: make([]byte, b.Dx()*b.Dy()*Channels)}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			f.Pix[i+0] = c.R
			f.Pix[i+1] = c.G
			f.Pix[i+2] = c.B
			i += Channels
		}
	}
	return f
}

// Timestamp is a playback position truncated to whole seconds.
type Timestamp struct {
	Minutes int
	Seconds int
}

func TimestampAt(d time.Duration) Timestamp {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return Timestamp{Minutes: total / 60, Seconds: total % 60}
}

// String renders MM-SS, the form used in artifact names.
func (t Timestamp) String() string { return fmt.Sprintf("%02d-%02d", t.Minutes, t.Seconds) }

// Scene is an accepted run of frames together with its score and label.
type Scene struct {
	Source      string
	Frames      []Frame
	Dynamicness float64
	Samples     int
	Start       Timestamp
	End         Timestamp
	Label       string
}
