package handlers

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// API Docs
// ============================================================

const specRoute = "/docs/openapi.yaml"

const docsPage = `<!doctype html>
<meta charset="utf-8">
<title>Sketch Engine API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
<div id="docs"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>SwaggerUIBundle({url: "` + specRoute + `", dom_id: "#docs"});</script>`

// Docs отдаёт OpenAPI-описание сервиса из файла и страницу просмотра к нему.
type Docs struct {
	path string
}

func NewDocs(path string) *Docs {
	return &Docs{path: path}
}

// Mount регистрирует /docs и /docs/openapi.yaml.
func (d *Docs) Mount(app *fiber.App) {
	app.Get("/docs", d.Page)
	app.Get(specRoute, d.Spec)
}

// Spec читает файл на каждый запрос.
func (d *Docs) Spec(c fiber.Ctx) error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		log.Printf("[DOCS] %v", err)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "openapi document not found"})
	}
	c.Type("yaml")
	return c.Send(data)
}

func (d *Docs) Page(c fiber.Ctx) error {
	c.Type("html")
	return c.SendString(docsPage)
}
