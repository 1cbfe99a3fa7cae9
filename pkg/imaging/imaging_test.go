package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPattern renders a structured image: a diagonal gradient with a
// bright block, enough texture for stable perceptual hashing.
func testPattern(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := range h {
		for x := range w {
			v := uint8((x + y) * 255 / (w + h))
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: v / 2, A: 255})
		}
	}

	for y := h / 4; y < h/2; y++ {
		for x := w / 4; x < w/2; x++ {
			img.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}

	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer

	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer

	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))

	return buf.Bytes()
}

func TestHashBytes_Deterministic(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, testPattern(320, 240))

	h1, err := HashBytes(data)
	require.NoError(t, err)

	h2, err := HashBytes(data)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotZero(t, h1.PHash)
}

func TestHashBytes_DistinctImagesDiffer(t *testing.T) {
	t.Parallel()

	a, err := HashBytes(encodePNG(t, testPattern(320, 240)))
	require.NoError(t, err)

	inverted := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := range 240 {
		for x := range 320 {
			v := uint8(255 - (x+y)*255/560)
			inverted.Set(x, y, color.RGBA{R: v, G: v, B: 255 - v, A: 255})
		}
	}

	b, err := HashBytes(encodePNG(t, inverted))
	require.NoError(t, err)

	assert.NotEqual(t, a.PHash, b.PHash)
}

func TestHashBytes_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := HashBytes([]byte("not an image"))
	require.Error(t, err)
}

func TestStandardize_DownscalesToMaxDimension(t *testing.T) {
	t.Parallel()

	data := encodeJPEG(t, testPattern(2048, 1536))

	out, err := Standardize(data, 1024)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	bounds := img.Bounds()
	assert.Equal(t, 1024, bounds.Dx())
	assert.Equal(t, 768, bounds.Dy())
}

func TestStandardize_SmallImagePassesThrough(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, testPattern(400, 300))

	out, err := Standardize(data, 1024)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestStandardize_DefaultDimensionApplied(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, testPattern(1500, 1500))

	out, err := Standardize(data, 0)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDimension, img.Bounds().Dx())
}

// Listing CDNs serve webp thumbnails alongside jpeg, so the decoder
// registration must cover it. The fixture is a small lossless webp.
func TestDecode_WebPRegistered(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile(filepath.Join("testdata", "doc.lossless.webp"))
	require.NoError(t, err)

	img, err := Decode(data)
	require.NoError(t, err)
	assert.False(t, img.Bounds().Empty())

	out, err := Standardize(data, DefaultMaxDimension)
	require.NoError(t, err)

	_, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err, "standardized output is PNG")
}
