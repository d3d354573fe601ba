package qrcode

import (
	"bytes"
	"image/png"
	"testing"
)

func TestRendererPNG(t *testing.T) {
	r, err := NewRenderer(128)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.PNG([]byte(`{"certificate":{"unique_id":"AUR-1"},"signature":"0x00"}`))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got := img.Bounds().Dx(); got != 128 {
		t.Fatalf("width = %d, want 128", got)
	}
}

func TestRendererRejectsEmptyContent(t *testing.T) {
	if _, err := (&Renderer{}).PNG(nil); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestNewRendererSizeBounds(t *testing.T) {
	if r, err := NewRenderer(0); err != nil || r.Size != DefaultSize {
		t.Fatalf("zero size should default: %v %v", r, err)
	}
	for _, size := range []int{MinSize - 1, MaxSize + 1} {
		if _, err := NewRenderer(size); err == nil {
			t.Fatalf("size %d should be rejected", size)
		}
	}
}
