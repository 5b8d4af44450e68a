package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// normalizeAspect center-crops img to the requested width:height ratio
// ("1:1", "16:9", ...) using imaging.CropCenter, then re-encodes it in
// its original format. An empty ratio is a no-op.
func normalizeAspect(data []byte, mimeType, ratio string) ([]byte, error) {
	if ratio == "" {
		return data, nil
	}
	rw, rh, err := parseRatio(ratio)
	if err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	targetW, targetH := w, h
	if w*rh > h*rw {
		targetW = h * rw / rh
	} else {
		targetH = w * rh / rw
	}
	cropped := imaging.CropCenter(src, targetW, targetH)

	var out bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&out, cropped)
	default:
		err = jpeg.Encode(&out, cropped, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return out.Bytes(), nil
}

func parseRatio(ratio string) (w, h int, err error) {
	if _, err := fmt.Sscanf(ratio, "%d:%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("media: invalid aspect ratio %q", ratio)
	}
	return w, h, nil
}
