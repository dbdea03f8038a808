package extract

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"

	"golang.org/x/image/draw"
)

// fitImage shrinks raw so its longest edge is at most maxEdge. Images that
// already fit are returned unchanged.
func fitImage(raw []byte, maxEdge int) ([]byte, string, error) {
	mime := http.DetectContentType(raw)
	if maxEdge <= 0 {
		return raw, mime, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}
	longest := max(cfg.Width, cfg.Height)
	if longest <= maxEdge {
		return raw, mime, nil
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	w := max(1, cfg.Width*maxEdge/longest)
	h := max(1, cfg.Height*maxEdge/longest)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
