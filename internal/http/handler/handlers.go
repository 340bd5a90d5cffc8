package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"docpipe/internal/config"
	"docpipe/internal/filestore"
	"docpipe/internal/parser"
	"docpipe/internal/pipeline"
)

// LivenessProbe is a trivial liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// HealthCheck reports service health. There is no external dependency to
// probe in the local-storage configuration, so healthy means "serving".
func HealthCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// UploadConfig exposes the effective upload limits so clients can validate
// before sending.
func UploadConfig(cfg config.UploadConfig, formats []parser.Format) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"enabled":          cfg.Enabled,
			"max_file_size_mb": cfg.MaxFileSizeMB,
			"ttl_seconds":      int64(cfg.TTL.Seconds()),
			"export_formats":   formats,
		})
	}
}

// UploadFile stages a multipart upload (field name: file) and returns the
// generated file id.
func UploadFile(cfg config.UploadConfig, files *filestore.FileStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Enabled {
			return writeError(c, fiber.StatusForbidden, "UPLOADS_DISABLED", "file upload feature is disabled")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		if fh.Size > int64(cfg.MaxFileSizeMB)<<20 {
			return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file size exceeds the configured maximum")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}

		id, err := files.Store(c.UserContext(), content, fh.Filename)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"file_id":  id,
			"filename": fh.Filename,
			"size":     len(content),
		})
	}
}

// GetFile returns stored file metadata.
func GetFile(files *filestore.FileStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		meta, err := files.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(meta)
	}
}

// DeleteFile removes a staged file and its backing bytes.
func DeleteFile(files *filestore.FileStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !files.Delete(c.UserContext(), c.Params("id")) {
			return writeError(c, fiber.StatusNotFound, "FILE_NOT_FOUND", "file not found or expired")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ParseFile runs the staged file through the parser and returns the cached
// document id.
func ParseFile(pipe *pipeline.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var opts parser.Options
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&opts); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid parse options")
			}
		}

		res, err := pipe.ParseOnce(c.UserContext(), c.Params("id"), opts)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// ExportDocument renders one format of a cached document, memoized.
func ExportDocument(pipe *pipeline.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format := c.Query("format", string(parser.FormatMarkdown))

		content, err := pipe.ExportFormat(c.UserContext(), c.Params("id"), parser.Format(format))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(fiber.Map{
			"doc_id":  c.Params("id"),
			"format":  format,
			"content": content,
		})
	}
}

type exportAllRequest struct {
	Formats []string `json:"formats"`
}

// ExportDocumentAll renders several formats best-effort, returning whichever
// succeeded plus per-format failure reasons.
func ExportDocumentAll(pipe *pipeline.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req exportAllRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid export request")
		}

		formats := make([]parser.Format, 0, len(req.Formats))
		for _, f := range req.Formats {
			formats = append(formats, parser.Format(f))
		}
		if len(formats) == 0 {
			formats = parser.SupportedFormats
		}

		results, failures := pipe.ExportAll(c.UserContext(), c.Params("id"), formats)
		if len(results) == 0 && len(failures) > 0 {
			// Nothing succeeded; surface the dominant failure class.
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"doc_id":   c.Params("id"),
				"results":  results,
				"failures": failures,
			})
		}
		return c.JSON(fiber.Map{
			"doc_id":   c.Params("id"),
			"results":  results,
			"failures": failures,
		})
	}
}

// GetDocument returns the cached document summary (no handle, no content).
func GetDocument(pipe *pipeline.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entry, err := pipe.Document(c.Params("id"))
		if err != nil {
			return writeDomainError(c, err)
		}
		formats := make([]string, 0, len(entry.Formats))
		for f := range entry.Formats {
			formats = append(formats, f)
		}
		return c.JSON(fiber.Map{
			"doc_id":      entry.ID,
			"source_name": entry.SourceName,
			"formats":     formats,
			"created_at":  entry.CreatedAt,
			"expires_at":  entry.CreatedAt.Add(entry.TTL),
		})
	}
}

// DeleteDocument evicts a cached document.
func DeleteDocument(pipe *pipeline.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !pipe.DeleteDocument(c.Params("id")) {
			return writeError(c, fiber.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found or expired")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Stats exposes the aggregated store and cache state.
func Stats(pipe *pipeline.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(pipe.Stats(c.UserContext()))
	}
}
