package handlers

import (
	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Routes
// ============================================================

// Register подключает все маршруты сервиса эскизов.
func Register(app *fiber.App, sketches *SketchHandler, store Pinger) {
	app.Get("/health/live", LivenessProbe)
	app.Get("/health/ready", ReadinessProbe(store))

	// Stateless engine
	app.Post("/expressions/evaluate", Evaluate)
	app.Post("/expressions/batch", EvaluateBatch)
	app.Post("/expressions/validate", ValidateExpression)
	app.Post("/parameters/cycles", DetectCycles)
	app.Post("/geometry/validate", ValidateGeometry)
	app.Post("/solver/move", SolveMove)
	app.Post("/solver/group-move", SolveGroupMove)
	app.Post("/dimensions/value", DimensionValue)
	app.Post("/dimensions/apply", ApplyDimension)
	app.Post("/solid", BuildSolid)
	app.Post("/render", RenderSVG)
	app.Post("/convert", ConvertSVG)

	// Sketch store
	app.Post("/sketches", sketches.Create)
	app.Get("/sketches", sketches.List)
	app.Get("/sketches/:id", sketches.Get)
	app.Put("/sketches/:id", sketches.Update)
	app.Delete("/sketches/:id", sketches.Delete)
	app.Get("/sketches/:id/solid", sketches.Solid)
	app.Get("/sketches/:id/svg", sketches.SVG)
	app.Post("/sketches/:id/dimensions/:dim/promote", sketches.Promote)
	app.Post("/sketches/:id/dimensions/:dim/demote", sketches.Demote)
	app.Put("/sketches/:id/parameters/:name", sketches.EditParameter)

	// Drags
	app.Post("/sketches/:id/drags", sketches.StartDrag)
	app.Put("/drags/:drag", sketches.MoveDrag)
	app.Post("/drags/:drag/release", sketches.ReleaseDrag)
	app.Delete("/drags/:drag", sketches.CancelDrag)
}
