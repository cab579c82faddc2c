package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"portalapi/internal/attachment"
	"portalapi/internal/model"
)

var errInvalidBody = errors.New("invalid request body")

// parseID normalizes the :id path segment to a numeric identifier.
func parseID(c *fiber.Ctx, param string) (int64, bool) {
	return model.NormalizeID(c.Params(param))
}

// parseFields reads the request body as JSON, a multipart form or a URL
// encoded form. An empty body yields no fields.
func parseFields(c *fiber.Ctx) (model.Record, error) {
	fields := model.Record{}
	ct := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		for k, v := range form.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
	case strings.HasPrefix(ct, fiber.MIMEApplicationForm):
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			fields[string(k)] = string(v)
		})
	default:
		body := bytes.TrimSpace(c.Body())
		if len(body) == 0 {
			return fields, nil
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		// Keeps large ids exact.
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
	}
	return fields, nil
}

// formUpload returns the file sent in the multipart field, or nil when the
// request carries none. The returned close func must be called once the
// upload has been consumed.
func formUpload(c *fiber.Ctx, field string) (*attachment.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEMultipartForm) {
		return nil, noop, nil
	}
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, noop, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("open uploaded file: %w", err)
	}

	ct := fh.Header.Get(fiber.HeaderContentType)
	if ct == "" {
		ct = fiber.MIMEOctetStream
	}
	return &attachment.Upload{
		Filename:    fh.Filename,
		ContentType: ct,
		Size:        fh.Size,
		Reader:      f,
	}, func() { f.Close() }, nil
}
