// Package imaging validates and normalizes caller-supplied images into the
// canonical form every provider adapter consumes. Normalization happens once
// per request regardless of how many providers the image fans out to.
package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	_ "image/png" // registered for decode; small PNGs pass through unchanged
	"math"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	apperrors "github.com/atticlab/libface/errors"
	"github.com/atticlab/libface/internal/observability"
)

// Images with both dimensions above this bound are downscaled before upload.
const (
	optimalWidth  = 416
	optimalHeight = 416
)

const jpegQuality = 90

var (
	dataURIPrefix = regexp.MustCompile(`^data:image/[^;]+;base64,`)
	base64Chars   = regexp.MustCompile("^[a-zA-Z0-9+/]+={0,2}$")
)

// Image is a normalized image: guaranteed decodable, JPEG or PNG, within the
// maximum size bound. It is constructed per request and never shared.
type Image struct {
	data    []byte
	mime    string
	width   int
	height  int
	resized bool
}

// Bytes returns the normalized raster bytes.
func (i *Image) Bytes() []byte { return i.data }

// Base64 returns the normalized image encoded for transport to adapters.
func (i *Image) Base64() string { return base64.StdEncoding.EncodeToString(i.data) }

// MIME returns the normalized image media type.
func (i *Image) MIME() string { return i.mime }

// Width returns the normalized image width in pixels.
func (i *Image) Width() int { return i.width }

// Height returns the normalized image height in pixels.
func (i *Image) Height() int { return i.height }

// Resized reports whether downsizing occurred.
func (i *Image) Resized() bool { return i.resized }

// Normalize decodes and validates a base64 (optionally data-URI prefixed)
// image string, downsizes it when both dimensions exceed 416x416 and returns
// the canonical encoded form. The logger may be nil.
func Normalize(raw string, logger *zap.Logger) (*Image, error) {
	log := observability.OrNop(logger)

	b64 := bytes.TrimSpace([]byte(raw))
	b64 = dataURIPrefix.ReplaceAll(b64, nil)

	if len(b64) == 0 {
		log.Error("empty base64 string")
		return nil, apperrors.New(apperrors.KindEmptyImageData)
	}

	log.Debug("got image", zap.Int("base64_size", len(b64)))
	if len(b64) < 4 {
		return nil, apperrors.WithDetail(apperrors.KindInvalidImageEncoding, "data length is too short")
	}

	// Character check is cheaper than decoding.
	if !base64Chars.Match(b64) {
		log.Error("invalid base64 chars in encoded image", zap.Int("base64_size", len(b64)))
		return nil, apperrors.WithDetail(apperrors.KindInvalidImageEncoding, "invalid base64 chars")
	}

	bin := make([]byte, base64.StdEncoding.DecodedLen(len(b64)))
	n, err := base64.StdEncoding.Decode(bin, b64)
	if err != nil || n == 0 {
		log.Error("empty data after decoding")
		return nil, apperrors.WithDetail(apperrors.KindInvalidImageEncoding, "nothing was decoded")
	}
	bin = bin[:n]

	log.Debug("decoded binary", zap.Int("bin_size", n))

	// Sniff the type before decoding: only jpeg/png decoders are registered,
	// so a recognizable but unsupported raster (gif, bmp, webp) must be told
	// apart from bytes that are not an image at all.
	mime := mimetype.Detect(bin).String()
	switch mime {
	case "image/jpeg", "image/png":
	default:
		if strings.HasPrefix(mime, "image/") {
			log.Error("unsupported image type", zap.String("image_type", mime))
			return nil, apperrors.WithDetail(apperrors.KindInvalidImage, "unsupported image type")
		}
		log.Error("decoded data is not an image", zap.String("mime", mime))
		return nil, apperrors.WithDetail(apperrors.KindInvalidImageEncoding, "cannot read image metadata")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(bin))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return nil, apperrors.WithDetail(apperrors.KindInvalidImageEncoding, "cannot read image metadata")
	}

	log.Debug("got image info",
		zap.String("mime", mime), zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))

	img := &Image{data: bin, mime: mime, width: cfg.Width, height: cfg.Height}

	if cfg.Width > optimalWidth && cfg.Height > optimalHeight {
		log.Debug("resizing image")
		if err := img.downscale(); err != nil {
			return nil, err
		}
	}

	return img, nil
}

// downscale clamps the longer dimension to the optimal bound, scales the
// shorter by the same ratio and re-encodes as JPEG.
func (i *Image) downscale() error {
	src, _, err := image.Decode(bytes.NewReader(i.data))
	if err != nil {
		return apperrors.Wrap(apperrors.KindInvalidImageEncoding, err)
	}

	var w, h int
	if i.width >= i.height {
		w = optimalWidth
		h = int(math.Round(float64(optimalWidth) * float64(i.height) / float64(i.width)))
	} else {
		h = optimalHeight
		w = int(math.Round(float64(optimalHeight) * float64(i.width) / float64(i.height)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return apperrors.Wrap(apperrors.KindInvalidImage, err)
	}

	i.data = buf.Bytes()
	i.mime = "image/jpeg"
	i.width = w
	i.height = h
	i.resized = true
	return nil
}
