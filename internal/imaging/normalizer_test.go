package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/atticlab/libface/errors"
)

func testRaster(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testRaster(w, h)))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func jpegBase64(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testRaster(w, h), nil))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestNormalize_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind apperrors.Kind
	}{
		{
			name: "empty string",
			raw:  "",
			kind: apperrors.KindEmptyImageData,
		},
		{
			name: "whitespace only",
			raw:  "   \n\t ",
			kind: apperrors.KindEmptyImageData,
		},
		{
			name: "data uri prefix with no payload",
			raw:  "data:image/png;base64,",
			kind: apperrors.KindEmptyImageData,
		},
		{
			name: "too short",
			raw:  "abc",
			kind: apperrors.KindInvalidImageEncoding,
		},
		{
			name: "characters outside base64 alphabet",
			raw:  "not base64 at all!!!",
			kind: apperrors.KindInvalidImageEncoding,
		},
		{
			name: "valid base64 but not an image",
			raw:  base64.StdEncoding.EncodeToString([]byte("hello world, not a raster")),
			kind: apperrors.KindInvalidImageEncoding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Normalize(tt.raw, nil)

			assert.Nil(t, img)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.kind),
				"want kind %s, got %v", tt.kind, err)
		})
	}
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	// Raw payloads on purpose: importing image/gif here would register its
	// decoder in the test binary and hide how the package behaves in a
	// production binary, where only jpeg and png are registered.
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "gif",
			data: []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04\x00\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;"),
		},
		{
			name: "webp",
			data: []byte("RIFF\x24\x00\x00\x00WEBPVP8 \x00\x00\x00\x00\x00\x00\x00\x00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Normalize(base64.StdEncoding.EncodeToString(tt.data), nil)

			assert.Nil(t, img)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindInvalidImage),
				"want kind %s, got %v", apperrors.KindInvalidImage, err)
		})
	}
}

func TestNormalize_TruncatedRaster(t *testing.T) {
	// Correct png magic, unreadable metadata.
	truncated := []byte("\x89PNG\r\n\x1a\n\x00\x00")

	img, err := Normalize(base64.StdEncoding.EncodeToString(truncated), nil)

	assert.Nil(t, img)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidImageEncoding))
}

func TestNormalize_SmallImagePassesThroughUnchanged(t *testing.T) {
	raw := pngBase64(t, 100, 80)

	img, err := Normalize(raw, nil)

	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME())
	assert.False(t, img.Resized())
	assert.Equal(t, 100, img.Width())
	assert.Equal(t, 80, img.Height())
	// Re-encoded base64 round-trips to identical bytes.
	assert.Equal(t, raw, img.Base64())
}

func TestNormalize_AtThresholdPassesThrough(t *testing.T) {
	img, err := Normalize(jpegBase64(t, 416, 416), nil)

	require.NoError(t, err)
	assert.False(t, img.Resized())
	assert.Equal(t, "image/jpeg", img.MIME())
}

func TestNormalize_OneDimensionOverThresholdPassesThrough(t *testing.T) {
	img, err := Normalize(jpegBase64(t, 1000, 300), nil)

	require.NoError(t, err)
	assert.False(t, img.Resized())
	assert.Equal(t, 1000, img.Width())
	assert.Equal(t, 300, img.Height())
}

func TestNormalize_Downscale(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		wantW  int
		wantH  int
		format func(*testing.T, int, int) string
	}{
		{
			name:   "landscape jpeg",
			w:      1000,
			h:      600,
			wantW:  416,
			wantH:  250,
			format: jpegBase64,
		},
		{
			name:   "portrait jpeg",
			w:      600,
			h:      1000,
			wantW:  250,
			wantH:  416,
			format: jpegBase64,
		},
		{
			name:   "square png re-encoded to jpeg",
			w:      500,
			h:      500,
			wantW:  416,
			wantH:  416,
			format: pngBase64,
		},
		{
			name:   "just over threshold",
			w:      417,
			h:      417,
			wantW:  416,
			wantH:  416,
			format: jpegBase64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Normalize(tt.format(t, tt.w, tt.h), nil)

			require.NoError(t, err)
			assert.True(t, img.Resized())
			assert.Equal(t, tt.wantW, img.Width())
			assert.Equal(t, tt.wantH, img.Height())
			assert.Equal(t, "image/jpeg", img.MIME())

			// The emitted bytes must decode as a JPEG of the stated size.
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, cfg.Width)
			assert.Equal(t, tt.wantH, cfg.Height)
		})
	}
}

func TestNormalize_StripsDataURIPrefix(t *testing.T) {
	raw := pngBase64(t, 64, 64)

	img, err := Normalize("data:image/png;base64,"+raw, nil)

	require.NoError(t, err)
	assert.Equal(t, raw, img.Base64())
}
