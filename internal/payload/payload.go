// Package payload decodes the raw bytes a TileLoadService delivers into the
// raster/texture forms the scheduler ships to the GPU. Terrain height tiles
// use the Terrarium RGB encoding; ortho imagery tiles are plain JPEG. Both
// codecs mirror their encoding counterparts, inverted from encode to decode
// since this module is a consumer, not an authoring tool.
package payload

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
)

// ErrDecode marks a payload that could not be interpreted — treated the
// same as NotFound (do not retry a malformed payload).
var ErrDecode = errors.New("payload: decode error")

// HeightRaster is a square grid of elevation samples in meters, NaN where
// nodata. Size (65) matches the GPU tile manager's per-tile vertex grid so
// every sample lines up with a mesh vertex including the one-sample curtain
// skirt border around the raster's edge.
type HeightRaster struct {
	Values   []float64 // row-major, len == Size*Size
	Size     int
	Min, Max float64
}

// computeMinMax sets Min and Max to the non-NaN elevation range of the
// raster (both 0 when every sample is nodata).
func (r *HeightRaster) computeMinMax() {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range r.Values {
		if math.IsNaN(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if math.IsInf(min, 1) {
		min, max = 0, 0
	}
	r.Min, r.Max = min, max
}

// HeightBytes packs the raster as R16Uint samples (meters, clamped to
// [0, 65535], NaN/nodata mapped to 0) matching the GPU height array's
// texture format.
func (r *HeightRaster) HeightBytes() []byte {
	out := make([]byte, len(r.Values)*2)
	for i, v := range r.Values {
		var u uint16
		switch {
		case math.IsNaN(v) || v < 0:
			u = 0
		case v > 65535:
			u = 65535
		default:
			u = uint16(v)
		}
		out[2*i] = byte(u)
		out[2*i+1] = byte(u >> 8)
	}
	return out
}

// OrthoTexture is a decoded RGBA colour tile.
type OrthoTexture struct {
	*image.RGBA
}

// OrthoBytes returns the tile's raw RGBA8 byte stream, matching the GPU
// ortho array's texture format.
func (o *OrthoTexture) OrthoBytes() []byte {
	return o.Pix
}

// DecodeTerrariumHeight decodes a Terrarium-encoded PNG (a 256×256 PNG
// encoding 16-bit elevation) into a HeightRaster, resampled to the GPU tile
// manager's edge grid via nearest-neighbor (height precision loss from
// resampling an already-coarse raster is immaterial to LOD selection).
func DecodeTerrariumHeight(data []byte, edge int) (*HeightRaster, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrDecode
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, ErrDecode
	}

	out := &HeightRaster{Values: make([]float64, edge*edge), Size: edge}
	for row := 0; row < edge; row++ {
		sy := bounds.Min.Y + row*h/edge
		for col := 0; col < edge; col++ {
			sx := bounds.Min.X + col*w/edge
			r, g, b, a := img.At(sx, sy).RGBA()
			c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
			out.Values[row*edge+col] = terrariumToElevation(c)
		}
	}
	out.computeMinMax()
	return out, nil
}

// terrariumToElevation inverts the Terrarium encoding:
// elevation = (R*256 + G + B/256) - 32768, transparent pixels are nodata.
func terrariumToElevation(c color.RGBA) float64 {
	if c.A == 0 {
		return math.NaN()
	}
	return float64(c.R)*256.0 + float64(c.G) + float64(c.B)/256.0 - 32768.0
}

// DecodeOrtho decodes a JPEG ortho-imagery tile (256×256 JPEG).
func DecodeOrtho(data []byte) (*OrthoTexture, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrDecode
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return &OrthoTexture{RGBA: rgba}, nil
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	return &OrthoTexture{RGBA: rgba}, nil
}
