package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"sketch-engine/internal/sketch/dimension"
	"sketch-engine/internal/sketch/expr"
	"sketch-engine/internal/sketch/extrude"
	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
	"sketch-engine/internal/sketch/solver"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Request payloads
// ============================================================

type evaluateRequest struct {
	Expression models.Value       `json:"expression"`
	Params     map[string]float64 `json:"params"`
}

type batchRequest struct {
	Expressions map[string]models.Value `json:"expressions"`
	Params      map[string]float64      `json:"params"`
}

type validateRequest struct {
	Expression string   `json:"expression"`
	Available  []string `json:"available"`
}

type cyclesRequest struct {
	Params map[string]models.Value `json:"params"`
}

type moveRequest struct {
	Node        string              `json:"node"`
	Position    models.Point        `json:"position"`
	Vertices    models.Positions    `json:"vertices"`
	Constraints []models.Constraint `json:"constraints"`
}

type groupMoveRequest struct {
	Moves       models.Positions    `json:"moves"`
	Vertices    models.Positions    `json:"vertices"`
	Constraints []models.Constraint `json:"constraints"`
}

type dimensionValueRequest struct {
	Dimension models.Dimension `json:"dimension"`
	Vertices  models.Positions `json:"vertices"`
}

type dimensionApplyRequest struct {
	Dimension   models.Dimension    `json:"dimension"`
	Target      float64             `json:"target"`
	Vertices    models.Positions    `json:"vertices"`
	Constraints []models.Constraint `json:"constraints"`
}

// decodeBody читает JSON из тела запроса. При ok=false ответ уже отправлен.
func decodeBody(c fiber.Ctx, v any) (bool, error) {
	if len(c.Body()) == 0 {
		return false, c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return false, c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	return true, nil
}

// decodeDocument читает эскиз из тела запроса. При ok=false ответ уже отправлен.
func decodeDocument(c fiber.Ctx) (*models.Document, bool, error) {
	if len(c.Body()) == 0 {
		return nil, false, c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	doc, err := models.ParseDocument(c.Body())
	if err != nil {
		return nil, false, c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return doc, true, nil
}

// ============================================================
// Expressions
// ============================================================

// Evaluate вычисляет одно выражение.
func Evaluate(c fiber.Ctx) error {
	var req evaluateRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}

	ev := expr.NewEvaluator()
	value := ev.Evaluate(req.Expression, req.Params)
	return c.JSON(fiber.Map{"value": value, "diagnostics": ev.Diagnostics()})
}

// EvaluateBatch вычисляет набор выражений с общими параметрами.
func EvaluateBatch(c fiber.Ctx) error {
	var req batchRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}

	ev := expr.NewEvaluator()
	values := ev.EvaluateBatch(req.Expressions, req.Params)
	return c.JSON(fiber.Map{"values": values, "diagnostics": ev.Diagnostics()})
}

func ValidateExpression(c fiber.Ctx) error {
	var req validateRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	return c.JSON(expr.Validate(req.Expression, req.Available))
}

func DetectCycles(c fiber.Ctx) error {
	var req cyclesRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	return c.JSON(expr.DetectCircularDependencies(req.Params))
}

// ============================================================
// Geometry & Solver
// ============================================================

func ValidateGeometry(c fiber.Ctx) error {
	doc, ok, err := decodeDocument(c)
	if !ok {
		return err
	}
	report := graph.Validate(doc)
	return c.JSON(fiber.Map{"valid": report.OK(), "errors": report.Errors, "warnings": report.Warnings})
}

func SolveMove(c fiber.Ctx) error {
	var req moveRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	if req.Node == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "node required"})
	}
	return c.JSON(solver.SolveNodeMove(req.Node, req.Position, req.Vertices, req.Constraints))
}

func SolveGroupMove(c fiber.Ctx) error {
	var req groupMoveRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	return c.JSON(solver.SolveGroupMove(req.Moves, req.Vertices, req.Constraints))
}

// ============================================================
// Dimensions
// ============================================================

func DimensionValue(c fiber.Ctx) error {
	var req dimensionValueRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}

	value, err := dimension.CalculateDimensionValue(req.Dimension, req.Vertices)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"value":   value,
		"display": graph.Round(dimension.DisplayValue(req.Dimension, value)),
	})
}

func ApplyDimension(c fiber.Ctx) error {
	var req dimensionApplyRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	return c.JSON(dimension.ApplyDimension(req.Dimension, req.Target, req.Vertices, req.Constraints))
}

// ============================================================
// Solid
// ============================================================

// BuildSolid выдавливает эскиз из тела запроса.
func BuildSolid(c fiber.Ctx) error {
	doc, ok, err := decodeDocument(c)
	if !ok {
		return err
	}

	resolved, err := graph.Resolve(doc)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	solid, err := extrude.BuildSolid(doc, resolved.Params)
	if err != nil {
		if errors.Is(err, extrude.ErrNoOuterContour) {
			return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("[EXTRUDE] Build error: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"solid": solid, "volume": solid.Volume()})
}
