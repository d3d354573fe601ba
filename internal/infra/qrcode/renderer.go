package qrcode

import (
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 2048
)

// Renderer encodes certificate payloads as PNG QR codes at medium error
// correction.
type Renderer struct {
	Size int
}

func NewRenderer(size int) (*Renderer, error) {
	if size == 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("qr code size must be between %d and %d pixels", MinSize, MaxSize)
	}
	return &Renderer{Size: size}, nil
}

func (r *Renderer) PNG(content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, errors.New("qr content is empty")
	}
	size := r.Size
	if size == 0 {
		size = DefaultSize
	}
	png, err := goqrcode.Encode(string(content), goqrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
