// Package imaging computes perceptual image fingerprints and normalizes
// downloaded photos to the on-disk PNG contract.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	// Register decoders for the formats listing sites serve.
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxDimension is the pixel-standardised maximum edge length for
// stored images.
const DefaultMaxDimension = 1024

// HashPair holds both 64-bit fingerprints of one image: the DCT-based
// perception hash (robust to rescaling and recompression) and the
// gradient-based difference hash (robust to cropping).
type HashPair struct {
	PHash uint64
	DHash uint64
}

// Decode parses raw downloaded bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return img, nil
}

// Hashes computes both perceptual fingerprints of a decoded image.
func Hashes(img image.Image) (HashPair, error) {
	phash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return HashPair{}, fmt.Errorf("perception hash: %w", err)
	}

	dhash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return HashPair{}, fmt.Errorf("difference hash: %w", err)
	}

	return HashPair{PHash: phash.GetHash(), DHash: dhash.GetHash()}, nil
}

// HashBytes decodes raw bytes and computes both fingerprints.
func HashBytes(data []byte) (HashPair, error) {
	img, err := Decode(data)
	if err != nil {
		return HashPair{}, err
	}

	return Hashes(img)
}

// Standardize converts raw image bytes to the storage contract: PNG,
// longest edge at most maxDim, metadata stripped (PNG re-encode carries
// no EXIF).
func Standardize(data []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	img = scaleDown(img, maxDim)

	var buf bytes.Buffer

	err = png.Encode(&buf, img)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return buf.Bytes(), nil
}

// scaleDown resizes the image so its longest edge is maxDim, preserving
// aspect ratio. Images already within bounds pass through untouched.
func scaleDown(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	longest := max(w, h)
	if longest <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(longest)
	dw := max(int(float64(w)*scale), 1)
	dh := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return dst
}
