// Package imagedata turns transport-encoded images (raw base64 or data URLs)
// into validated bitmap bytes.
package imagedata

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// MaxImageSize limits the decoded payload.
const MaxImageSize = 10 * 1024 * 1024

var (
	ErrEmpty    = errors.New("empty image payload")
	ErrTooLarge = fmt.Errorf("image exceeds %d bytes", MaxImageSize)
)

// Image is a decoded payload whose header was recognised as a bitmap.
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Decode strips an optional data-URL prefix, base64-decodes the rest and
// validates the bitmap header. Every failure wraps domain.ErrInvalidImage.
func Decode(payload string) (*Image, error) {
	payload = strings.TrimSpace(payload)
	// base64 has no commas, so everything up to the first one is a data-URL header
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	if payload == "" {
		return nil, domain.ErrInvalidImage.WithError(ErrEmpty)
	}

	// base64 expands 3 bytes into 4 chars
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize+3 {
		return nil, domain.ErrInvalidImage.WithError(ErrTooLarge)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	if len(data) > MaxImageSize {
		return nil, domain.ErrInvalidImage.WithError(ErrTooLarge)
	}

	return FromBytes(data)
}

// FromBytes validates raw image bytes, as read from a file or multipart upload.
func FromBytes(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, domain.ErrInvalidImage.WithError(ErrEmpty)
	}
	if len(data) > MaxImageSize {
		return nil, domain.ErrInvalidImage.WithError(ErrTooLarge)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("decode image header: %w", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image has no pixels"))
	}

	return &Image{
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func decodeBase64(s string) ([]byte, error) {
	// browsers sometimes send URL-safe or unpadded payloads
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("payload is not valid base64")
}
