package richtext

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	// Registered so image.DecodeConfig understands pasted gif and jpeg data.
	_ "image/gif"
	_ "image/jpeg"
)

// MaxImageWidth bounds converted images; wider ones are scaled down.
const MaxImageWidth = 1600

// ErrNotDataURI is returned for image sources that are not embedded data.
var ErrNotDataURI = errors.New("not a data URI")

// Image is an embedded picture ready for a document writer.
type Image struct {
	// Type is the writer-facing format: "PNG", "JPG" or "GIF".
	Type   string
	Data   []byte
	Width  int
	Height int
}

// Name is a stable identifier derived from the image bytes.
func (img *Image) Name() string {
	sum := sha256.Sum256(img.Data)
	return "img-" + hex.EncodeToString(sum[:8])
}

// DecodeDataURI decodes a data: URI. PNG, JPEG and GIF pass through; WebP and
// BMP are re-encoded as PNG.
func DecodeDataURI(src string) (*Image, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(src), "data:")
	if !ok {
		return nil, ErrNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	var data []byte
	if strings.HasSuffix(meta, ";base64") {
		meta = strings.TrimSuffix(meta, ";base64")
		var err error
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("unescape data: %w", err)
		}
		data = []byte(s)
	}
	mime, _, _ := strings.Cut(strings.ToLower(meta), ";")

	switch mime {
	case "image/png":
		return passThrough("PNG", data)
	case "image/jpeg", "image/jpg":
		return passThrough("JPG", data)
	case "image/gif":
		return passThrough("GIF", data)
	case "image/webp":
		m, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return toPNG(m)
	case "image/bmp":
		m, err := bmp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode bmp: %w", err)
		}
		return toPNG(m)
	}
	return nil, fmt.Errorf("unsupported image type %q", mime)
}

func passThrough(typ string, data []byte) (*Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	return &Image{Type: typ, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

func toPNG(m image.Image) (*Image, error) {
	b := m.Bounds()
	if b.Dx() > MaxImageWidth {
		h := b.Dy() * MaxImageWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, MaxImageWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), m, b, draw.Over, nil)
		m = dst
		b = dst.Bounds()
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return &Image{Type: "PNG", Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}
