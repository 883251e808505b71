package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/devicepilot/agent/internal/platform"
)

// Capture grabs the current frame on the UI loop. The returned image is
// encoded elsewhere, off the loop.
func Capture(ctx context.Context, bridge platform.Bridge, loop *platform.Loop) (image.Image, error) {
	var img image.Image
	err := loop.Do(ctx, func() error {
		var captureErr error
		img, captureErr = bridge.CaptureScreen(ctx)
		return captureErr
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: capture: %w", err)
	}
	return img, nil
}

// DefaultMaxWidth bounds encoded screenshot width; taller-than-wide frames
// scale proportionally.
const DefaultMaxWidth = 1080

// EncodeScreenshot encodes a captured frame as PNG, downscaling first when it
// exceeds maxWidth. Encoding runs on a worker goroutine, never the UI loop.
func EncodeScreenshot(img image.Image, maxWidth int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("snapshot: nil image")
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}

	b := img.Bounds()
	if b.Dx() > maxWidth {
		scale := float64(maxWidth) / float64(b.Dx())
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, int(float64(b.Dy())*scale)))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("snapshot: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
