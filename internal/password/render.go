package password

import (
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Canvas defaults for rendered artifacts.
const (
	DefaultImageWidth  = 512
	DefaultImageHeight = 128
	DefaultImageMargin = 32
	DefaultFontSize    = 28
)

// FaceLoader returns the font face used to draw the password.
type FaceLoader func(size float64) (font.Face, error)

// GoMonoFace loads the Go Mono face bundled with golang.org/x/image.
func GoMonoFace(size float64) (font.Face, error) {
	f, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse gomono: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// ImageRenderer draws white text on a black canvas.
type ImageRenderer struct {
	Width    int
	Height   int
	Margin   int
	FontSize float64
	LoadFace FaceLoader

	once    sync.Once
	face    font.Face
	faceErr error
}

// NewImageRenderer returns a renderer with the default canvas and font.
func NewImageRenderer() *ImageRenderer {
	return &ImageRenderer{
		Width:    DefaultImageWidth,
		Height:   DefaultImageHeight,
		Margin:   DefaultImageMargin,
		FontSize: DefaultFontSize,
		LoadFace: GoMonoFace,
	}
}

func (r *ImageRenderer) loadFace() (font.Face, error) {
	r.once.Do(func() {
		load := r.LoadFace
		if load == nil {
			load = GoMonoFace
		}
		r.face, r.faceErr = load(r.FontSize)
	})
	return r.face, r.faceErr
}

// Render encodes text as an image in the given format.
func (r *ImageRenderer) Render(w io.Writer, text string, format Format) error {
	face, err := r.loadFace()
	if err != nil {
		return &RenderError{Format: format, Reason: "font unavailable", Err: err}
	}

	width := font.MeasureString(face, text).Ceil()
	if avail := r.Width - 2*r.Margin; width > avail {
		return &RenderError{
			Format: format,
			Reason: fmt.Sprintf("password too long for image (%dpx > %dpx)", width, avail),
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(r.Margin, r.Margin+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case FormatGIF:
		err = gif.Encode(w, img, nil)
	default:
		return &RenderError{Format: format, Reason: "not an image format"}
	}
	if err != nil {
		return &RenderError{Format: format, Reason: "encoding failed", Err: err}
	}
	return nil
}
