package qfragile

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	// MaxBlurSigma is the blur radius reached at intensity 1.
	MaxBlurSigma = 10.0
	// MaxPixelBlock is the pixelation block edge reached at intensity 1.
	MaxPixelBlock = 20
)

/*
ImageProcessor turns uploads into packets and renders corruption effects. It
bounds the upload by byte size and by edge length before decoding the pixels.
*/
type ImageProcessor struct {
	maxBytes     int
	maxDimension int
}

// NewImageProcessor returns a processor enforcing the given upload bounds.
func NewImageProcessor(maxBytes, maxDimension int) *ImageProcessor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxImageDimension
	}
	return &ImageProcessor{
		maxBytes:     maxBytes,
		maxDimension: maxDimension,
	}
}

// NewPacket decodes an uploaded raster into a fresh, undamaged packet.
func (ip *ImageProcessor) NewPacket(r io.Reader) (*Packet, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no image data", ErrInvalidImageFormat)
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(ip.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", ErrInvalidImageFormat, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidImageFormat)
	}
	if len(data) > ip.maxBytes {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", ErrInvalidImageFormat, ip.maxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageFormat, err)
	}
	if err := ip.checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageFormat, err)
	}

	packet, err := ip.NewPacketFromImage(img)
	if err != nil {
		return nil, err
	}
	packet.Format = format
	return packet, nil
}

// NewPacketFromImage wraps an already decoded image. The caller keeps ownership of img.
func (ip *ImageProcessor) NewPacketFromImage(img image.Image) (*Packet, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImageFormat)
	}
	b := img.Bounds()
	if err := ip.checkDimensions(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	return &Packet{
		ID:      uuid.NewString(),
		Format:  "raw",
		Width:   b.Dx(),
		Height:  b.Dy(),
		Image:   imaging.Clone(img),
		History: []Corruption{},
	}, nil
}

func (ip *ImageProcessor) checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", ErrInvalidImageFormat, w, h)
	}
	if w > ip.maxDimension || h > ip.maxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels per edge", ErrInvalidImageFormat, w, h, ip.maxDimension)
	}
	return nil
}

/*
ApplyCorruption renders one effect into a new buffer. The input is never written.
An intensity of zero (or less) yields an untouched copy. Only colorShift draws
from rng. An unknown corruption type is a programming error and panics.
*/
func (ip *ImageProcessor) ApplyCorruption(img image.Image, c Corruption, rng Random) *image.NRGBA {
	intensity := clamp01(c.Intensity)
	if intensity == 0 {
		return imaging.Clone(img)
	}

	switch c.Type {
	case CorruptionBlur:
		return imaging.Blur(img, intensity*MaxBlurSigma)
	case CorruptionPixelate:
		return pixelate(img, intensity)
	case CorruptionColorShift:
		return colorShift(img, intensity, rng)
	case CorruptionFade:
		return fade(img, intensity)
	default:
		panic(fmt.Sprintf("qfragile: unsupported corruption type %q", c.Type))
	}
}

// pixelate downsamples by the block size and scales back up without smoothing.
func pixelate(img image.Image, intensity float64) *image.NRGBA {
	block := 1 + int(math.Round(intensity*(MaxPixelBlock-1)))
	b := img.Bounds()
	if block <= 1 {
		return imaging.Clone(img)
	}

	w := max(1, b.Dx()/block)
	h := max(1, b.Dy()/block)
	small := imaging.Resize(img, w, h, imaging.NearestNeighbor)
	return imaging.Resize(small, b.Dx(), b.Dy(), imaging.NearestNeighbor)
}

// colorShift offsets each channel by its own random amount within ±intensity.
func colorShift(img image.Image, intensity float64, rng Random) *image.NRGBA {
	var offsets [3]float64
	for i := range offsets {
		offsets[i] = (rng.Float64()*2 - 1) * intensity * 255
	}

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: shiftChannel(c.R, offsets[0]),
			G: shiftChannel(c.G, offsets[1]),
			B: shiftChannel(c.B, offsets[2]),
			A: c.A,
		}
	})
}

func shiftChannel(v uint8, offset float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(float64(v)+offset))))
}

// fade multiplies opacity by 1 - intensity.
func fade(img image.Image, intensity float64) *image.NRGBA {
	keep := 1 - intensity
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.A = uint8(math.Round(float64(c.A) * keep))
		return c
	})
}
