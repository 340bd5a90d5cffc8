package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docpipe/docs"
	"docpipe/internal/config"
	"docpipe/internal/filestore"
	"docpipe/internal/parser"
	"docpipe/internal/pipeline"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// stay thin; all semantics live in the injected services.
func RegisterRoutes(app *fiber.App, cfg *config.AppConfig, files *filestore.FileStore, pipe *pipeline.Pipeline, reg prometheus.Gatherer) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.Send(docs.OpenAPISpec)
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck())
	app.Get("/healthz", LivenessProbe())

	if reg != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	app.Get("/config", UploadConfig(cfg.Upload, parser.SupportedFormats))
	app.Get("/stats", Stats(pipe))

	app.Post("/files", UploadFile(cfg.Upload, files))
	app.Get("/files/:id", GetFile(files))
	app.Delete("/files/:id", DeleteFile(files))
	app.Post("/files/:id/parse", ParseFile(pipe))

	app.Get("/documents/:id", GetDocument(pipe))
	app.Get("/documents/:id/export", ExportDocument(pipe))
	app.Post("/documents/:id/export", ExportDocumentAll(pipe))
	app.Delete("/documents/:id", DeleteDocument(pipe))
}
