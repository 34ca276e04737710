package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/manav03panchal/couponvault/internal/errors"
)

// MediaTypeJPEG is the media type of every prepared image.
const MediaTypeJPEG = "image/jpeg"

const jpegQuality = 85

// Image is a photo ready to be sent for analysis.
type Image struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
}

// Base64 returns the standard base64 encoding of the image data.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// StripDataURI drops a "data:<type>;base64," prefix, if present.
func StripDataURI(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, payload, ok := strings.Cut(s, ","); ok {
		return payload
	}
	return s
}

// IsValidBase64 reports whether s decodes as standard base64 and re-encodes
// to exactly the same text.
func IsValidBase64(s string) bool {
	if s == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return base64.StdEncoding.EncodeToString(raw) == s
}

// DecodeImageData turns a base64 string or data URI into raw bytes.
func DecodeImageData(s string) ([]byte, error) {
	payload := StripDataURI(s)
	if payload == "" {
		return nil, fmt.Errorf("%w: no image data provided", errors.ErrInvalidImage)
	}
	if !IsValidBase64(payload) {
		return nil, fmt.Errorf("%w: invalid base64 image data", errors.ErrInvalidImage)
	}
	raw, _ := base64.StdEncoding.DecodeString(payload)
	return raw, nil
}

// PrepareImage decodes a base64 string or data URI and normalizes it with
// PrepareImageBytes.
func PrepareImage(s string, maxEdge int) (Image, error) {
	raw, err := DecodeImageData(s)
	if err != nil {
		return Image{}, err
	}
	return PrepareImageBytes(raw, maxEdge)
}

// PrepareImageBytes decodes a JPEG, PNG, GIF or WebP photo, shrinks it so its
// longer edge is at most maxEdge pixels and re-encodes it as JPEG.
// A maxEdge of zero or less keeps the original size.
func PrepareImageBytes(raw []byte, maxEdge int) (Image, error) {
	if len(raw) == 0 {
		return Image{}, fmt.Errorf("%w: empty image", errors.ErrInvalidImage)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", errors.ErrInvalidImage, err)
	}

	img := resize(src, maxEdge)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}
	b := img.Bounds()
	return Image{Data: buf.Bytes(), MediaType: MediaTypeJPEG, Width: b.Dx(), Height: b.Dy()}, nil
}

func resize(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return src
	}

	nw, nh := maxEdge, maxEdge
	if w >= h {
		nh = max(1, h*maxEdge/w)
	} else {
		nw = max(1, w*maxEdge/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
