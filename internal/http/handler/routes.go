package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"printkiosk/internal/applog"
	"printkiosk/internal/http/middleware"
	"printkiosk/internal/netid"
	"printkiosk/internal/service"
)

// IdentityResolver provides the address advertised to phones.
type IdentityResolver interface {
	Resolve() netid.Identity
}

// Options carries the settings handlers need beyond the service.
type Options struct {
	// Port is the public port used to build the upload URL.
	Port string
	// StrictPrint makes failed print jobs surface as 502 instead of {"status":"sent"}.
	StrictPrint bool
	Resolver    IdentityResolver
	// Logger receives errors hidden behind INTERNAL_ERROR responses. Nil discards them.
	Logger *applog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, svc service.KioskService, opts Options) {
	if opts.Resolver == nil {
		opts.Resolver = netid.NewResolver("", "")
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	log := opts.Logger

	app.Get("/", Index(opts.Resolver, opts.Port))
	app.Get("/qr.png", middleware.NoStore(), QRCode(opts.Resolver, opts.Port))
	app.Post("/upload", UploadFile(svc, log))
	app.Get("/files", middleware.NoStore(), ListFiles(svc, log))
	app.Get("/preview/*", PreviewFile(svc, log))
	app.Get("/print", PrintFile(svc, opts.StrictPrint, log))

	app.Get("/health", HealthCheck(svc, log))
	app.Get("/healthz", LivenessProbe())
}

// HealthCheck godoc
// @Summary Readiness probe
// @Description Checks that the storage backend is reachable.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(svc service.KioskService, log *applog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			log.Warn("health_check_failed", map[string]any{
				"request_id": requestIDFromCtx(c),
				"error":      err.Error(),
			})
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadFile godoc
// @Summary Upload a file
// @Description Stores the multipart field "file" under its (normalised) filename, replacing any previous file with that name.
// @Tags files
// @Accept multipart/form-data
// @Produce html
// @Param file formData file true "File to upload"
// @Success 200 {string} string "HTML confirmation"
// @Failure 400 {object} errorPayload
// @Router /upload [post]
func UploadFile(svc service.KioskService, log *applog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		if _, err := svc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size); err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Type("html").SendString(uploadedFragment)
	}
}

// ListFiles godoc
// @Summary List stored files
// @Tags files
// @Produce json
// @Success 200 {array} string
// @Router /files [get]
func ListFiles(svc service.KioskService, log *applog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names, err := svc.List(c.UserContext())
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.JSON(names)
	}
}

// PreviewFile godoc
// @Summary Preview a stored file
// @Description Streams the raw bytes with an inferred content type. Range requests are supported.
// @Tags files
// @Produce octet-stream
// @Param filename path string true "File name"
// @Success 200 {file} file
// @Failure 404 {object} errorPayload
// @Router /preview/{filename} [get]
func PreviewFile(svc service.KioskService, log *applog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("*"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid file name")
		}

		obj, info, err := svc.Open(c.UserContext(), name)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		defer obj.Close()

		serve := adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info.ContentType != "" {
				w.Header().Set("Content-Type", info.ContentType)
			}
			http.ServeContent(w, r, info.Name, info.ModifiedAt, obj)
		})
		return serve(c)
	}
}

// PrintFile godoc
// @Summary Print a stored file
// @Description Sends the file to the SMB printer share. Without strict mode the answer is always {"status":"sent"}.
// @Tags print
// @Produce json
// @Param file query string true "File name"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errorPayload
// @Failure 502 {object} model.PrintResult
// @Router /print [get]
func PrintFile(svc service.KioskService, strict bool, log *applog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Query("file")
		if name == "" {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		res, err := svc.Print(c.UserContext(), name)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		if strict && res.Failed() {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"status": res.Status,
				"file":   res.File,
				"error":  res.Error,
			})
		}
		return c.JSON(fiber.Map{"status": "sent"})
	}
}
