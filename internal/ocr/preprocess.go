package ocr

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// sharpenSigma approximates a 2x sharpness enhancement on scanned text.
const sharpenSigma = 1.0

// Preprocess decodes an image, converts it to grayscale, sharpens it and
// re-encodes it as PNG for the OCR engine.
func Preprocess(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := imaging.Grayscale(img)
	sharp := imaging.Sharpen(gray, sharpenSigma)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, sharp, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
