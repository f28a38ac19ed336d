// Package ticketcode generates ticket codes and renders them as QR images.
package ticketcode

import (
	"fmt"

	"github.com/lucsky/cuid"
	"github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of rendered QR images.
const DefaultSize = 256

// New returns a collision-resistant ticket code.
func New() string {
	return cuid.New()
}

// Encoder renders QR images. The zero value uses DefaultSize with low error
// correction.
type Encoder struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// EncodePNG renders content as a PNG QR code.
func (e Encoder) EncodePNG(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("ticketcode: empty QR content")
	}
	size := e.Size
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(content, e.Level, size)
	if err != nil {
		return nil, fmt.Errorf("ticketcode: encode QR: %w", err)
	}
	return png, nil
}
