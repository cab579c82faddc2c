package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"portalapi/internal/storage"
)

// FileServer reads stored attachments.
type FileServer interface {
	Open(ctx context.Context, name string) (io.ReadCloser, storage.ObjectInfo, error)
	URLFor(ctx context.Context, name string) (string, error)
}

// ServeFile streams an attachment by its generated name.
func ServeFile(files FileServer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, info, err := files.Open(c.UserContext(), c.Params("name"))
		if err != nil {
			return respondError(c, err)
		}
		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		} else {
			c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		}
		if !info.LastModified.IsZero() {
			c.Set(fiber.HeaderLastModified, info.LastModified.UTC().Format(http.TimeFormat))
		}
		c.Set(fiber.HeaderCacheControl, "public, max-age="+strconv.Itoa(86400))
		size := int(info.Size)
		if size <= 0 {
			size = -1
		}
		// The response body takes ownership of rc and closes it.
		return c.SendStream(rc, size)
	}
}

// FileLink returns a download URL for an attachment. Object store backends
// answer with a time-limited presigned URL.
func FileLink(files FileServer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		if !storage.ValidKey(name) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}
		u, err := files.URLFor(c.UserContext(), name)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"url": u})
	}
}
