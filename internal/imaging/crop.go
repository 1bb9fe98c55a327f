package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Region is a rectangle in image coordinates. X2 and Y2 are exclusive.
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts r to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// NamedRegion resolves a named part of a width×height image: top-left,
// top-right, bottom-left, bottom-right, top-half, bottom-half, left-half,
// right-half, center (the middle 50%) or full.
func NamedRegion(name string, width, height int) (Region, error) {
	midX, midY := width/2, height/2

	switch name {
	case "", "full":
		return Region{0, 0, width, height}, nil
	case "top-left":
		return Region{0, 0, midX, midY}, nil
	case "top-right":
		return Region{midX, 0, width, midY}, nil
	case "bottom-left":
		return Region{0, midY, midX, height}, nil
	case "bottom-right":
		return Region{midX, midY, width, height}, nil
	case "top-half":
		return Region{0, 0, width, midY}, nil
	case "bottom-half":
		return Region{0, midY, width, height}, nil
	case "left-half":
		return Region{0, 0, midX, height}, nil
	case "right-half":
		return Region{midX, 0, width, height}, nil
	case "center":
		qW, qH := width/4, height/4
		return Region{qW, qH, width - qW, height - qH}, nil
	default:
		return Region{}, fmt.Errorf("unknown region: %s", name)
	}
}

// CropRegion cuts r out of img. The result starts at (0, 0), so coordinates
// found in it are offset by (r.X1, r.Y1) relative to img.
func CropRegion(img image.Image, r Region) (image.Image, error) {
	bounds := img.Bounds()
	if r.X1 < bounds.Min.X || r.Y1 < bounds.Min.Y || r.X2 > bounds.Max.X || r.Y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.X1, r.Y1, r.X2, r.Y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	return imaging.Crop(img, r.Rect()), nil
}

// EncodedImage is a PNG ready to be returned inline.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as base64 PNG, resized by scale first when scale is
// positive and not 1.
func EncodePNG(img image.Image, scale float64) (*EncodedImage, error) {
	out := img
	if scale != 1.0 && scale > 0 {
		b := img.Bounds()
		newWidth := max(1, int(float64(b.Dx())*scale))
		newHeight := max(1, int(float64(b.Dy())*scale))
		out = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
