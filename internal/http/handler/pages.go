package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const uploadedFragment = "<h1>File Uploaded! Check the Screen.</h1>"

type dashboardData struct {
	UploadURL string
	Fallback  bool
}

// isHandheld reports whether the User-Agent looks like a phone or tablet.
func isHandheld(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	return strings.Contains(ua, "mobile") || strings.Contains(ua, "android")
}

// Index godoc
// @Summary Landing page
// @Description Phones get the upload form; everything else gets the counter dashboard with the upload URL.
// @Tags pages
// @Produce html
// @Success 200 {string} string "HTML page"
// @Router / [get]
func Index(resolver IdentityResolver, port string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			name string
			data any
		)
		if isHandheld(c.Get(fiber.HeaderUserAgent)) {
			name = "upload.html"
		} else {
			id := resolver.Resolve()
			name = "dashboard.html"
			data = dashboardData{UploadURL: id.UploadURL(port), Fallback: id.Fallback}
		}

		var buf bytes.Buffer
		if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		return c.Type("html").Send(buf.Bytes())
	}
}
