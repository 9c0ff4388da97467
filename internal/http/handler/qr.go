package handler

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/gofiber/fiber/v2"
)

const qrSize = 256

// QRCode godoc
// @Summary Upload URL as a QR code
// @Tags pages
// @Produce png
// @Success 200 {file} file
// @Router /qr.png [get]
func QRCode(resolver IdentityResolver, port string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		img, err := encodeQR(resolver.Resolve().UploadURL(port))
		if err != nil {
			return fmt.Errorf("encode upload qr: %w", err)
		}
		return c.Type("png").Send(img)
	}
}

func encodeQR(content string) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, qrSize, qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
