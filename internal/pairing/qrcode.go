package pairing

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// QRCodePNG renders a pairing code as a PNG, sized for display in a
// terminal-adjacent UI or a linked messaging channel.
func QRCodePNG(code string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}

// QRCodeDataURL renders a pairing code as a data: URL an operator console
// can drop directly into an <img> tag.
func QRCodeDataURL(code string, size int) (string, error) {
	png, err := QRCodePNG(code, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
