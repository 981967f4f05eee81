// Package qrcode renders check-in codes as PNG data URLs.
package qrcode

import (
	"encoding/base64"
	"fmt"

	goqr "github.com/skip2/go-qrcode"
)

const dataURLPrefix = "data:image/png;base64,"

// Codec encodes a registration identifier into a scannable image.
type Codec struct {
	size  int
	level goqr.RecoveryLevel
}

// New returns a Codec producing size×size pixel images at medium error
// correction.
func New(size int) *Codec {
	return &Codec{size: size, level: goqr.Medium}
}

// Encode returns the registration id as a base64 PNG data URL.
func (c *Codec) Encode(registrationID string) (string, error) {
	if registrationID == "" {
		return "", fmt.Errorf("encode check-in code: empty registration id")
	}
	png, err := goqr.Encode(registrationID, c.level, c.size)
	if err != nil {
		return "", fmt.Errorf("encode check-in code: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
