package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"sketch-engine/internal/sketch/dimension"
	"sketch-engine/internal/sketch/extrude"
	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/mapper"
	"sketch-engine/internal/sketch/models"
	"sketch-engine/internal/sketch/repository"
	"sketch-engine/internal/sketch/service"
	"sketch-engine/internal/sketch/solver"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Sketch Handler
// ============================================================

type SketchHandler struct {
	repo  *repository.Repository
	drags *service.DragSessions
}

func NewSketchHandler(repo *repository.Repository, drags *service.DragSessions) *SketchHandler {
	return &SketchHandler{
		repo:  repo,
		drags: drags,
	}
}

type sketchRequest struct {
	Name     string          `json:"name"`
	Document json.RawMessage `json:"document"`
}

type promoteRequest struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

type parameterRequest struct {
	Value *float64 `json:"value"`
}

type dragStartRequest struct {
	Nodes []string `json:"nodes"`
}

type dragMoveRequest struct {
	Positions models.Positions `json:"positions"`
}

// errorStatus сопоставляет ошибки хранилища и размеров с HTTP-кодами.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, dimension.ErrDimensionNotFound),
		errors.Is(err, dimension.ErrParameterNotFound):
		return http.StatusNotFound
	case errors.Is(err, dimension.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, dimension.ErrParameterExists),
		errors.Is(err, dimension.ErrAlreadyParameter),
		errors.Is(err, dimension.ErrNotParameter),
		errors.Is(err, dimension.ErrBlocked),
		errors.Is(err, solver.ErrDragState):
		return http.StatusConflict
	case errors.Is(err, extrude.ErrNoOuterContour):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(c fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[SKETCH] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (h *SketchHandler) decodeSketch(c fiber.Ctx) (string, *models.Document, bool, error) {
	var req sketchRequest
	if ok, err := decodeBody(c, &req); !ok {
		return "", nil, false, err
	}
	if len(req.Document) == 0 {
		return "", nil, false, c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "document required"})
	}
	doc, err := models.ParseDocument(req.Document)
	if err != nil {
		return "", nil, false, c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return req.Name, doc, true, nil
}

// ============================================================
// CRUD
// ============================================================

// Create сохраняет эскиз. Ошибки валидации не мешают сохранению и
// возвращаются рядом с эскизом.
func (h *SketchHandler) Create(c fiber.Ctx) error {
	name, doc, ok, err := h.decodeSketch(c)
	if !ok {
		return err
	}
	if name == "" {
		name = "untitled"
	}

	sketch, err := h.repo.Create(c.Context(), name, doc)
	if err != nil {
		return fail(c, err)
	}
	log.Printf("[SKETCH] Created %s (%s)", sketch.ID, sketch.Name)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"sketch": sketch, "report": graph.Validate(doc)})
}

func (h *SketchHandler) List(c fiber.Ctx) error {
	sketches, err := h.repo.List(c.Context())
	if err != nil {
		return fail(c, err)
	}
	if sketches == nil {
		sketches = []models.Sketch{}
	}
	return c.JSON(sketches)
}

func (h *SketchHandler) Get(c fiber.Ctx) error {
	sketch, err := h.repo.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(sketch)
}

func (h *SketchHandler) Update(c fiber.Ctx) error {
	name, doc, ok, err := h.decodeSketch(c)
	if !ok {
		return err
	}

	sketch, err := h.repo.Update(c.Context(), c.Params("id"), name, doc)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"sketch": sketch, "report": graph.Validate(doc)})
}

func (h *SketchHandler) Delete(c fiber.Ctx) error {
	id := c.Params("id")
	if err := h.repo.Delete(c.Context(), id); err != nil {
		return fail(c, err)
	}
	if n := h.drags.DropSketch(id); n > 0 {
		log.Printf("[DRAG] %d open drags of %s dropped", n, id)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Solid выдавливает сохраненный эскиз.
func (h *SketchHandler) Solid(c fiber.Ctx) error {
	sketch, err := h.repo.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	resolved, err := graph.Resolve(sketch.Document)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	solid, err := extrude.BuildSolid(sketch.Document, resolved.Params)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"solid": solid, "volume": solid.Volume()})
}

// SVG рисует превью сохраненного эскиза.
func (h *SketchHandler) SVG(c fiber.Ctx) error {
	sketch, err := h.repo.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	svg, err := mapper.NewRenderer().Render(sketch.Document)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(svg)
}

// ============================================================
// Parameters
// ============================================================

// Promote делает размер параметром. Без value берется текущее измеренное значение.
func (h *SketchHandler) Promote(c fiber.Ctx) error {
	var req promoteRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}

	sketch, err := h.repo.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	doc := sketch.Document
	dimID := c.Params("dim")

	var value float64
	if req.Value != nil {
		value = *req.Value
	} else {
		value, err = measure(doc, dimID)
		if err != nil {
			return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
	}

	out, err := dimension.Promote(doc, dimID, req.Name, value)
	if err != nil {
		return fail(c, err)
	}
	return h.save(c, sketch.ID, out)
}

func (h *SketchHandler) Demote(c fiber.Ctx) error {
	sketch, err := h.repo.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	out, err := dimension.Demote(sketch.Document, c.Params("dim"))
	if err != nil {
		return fail(c, err)
	}
	return h.save(c, sketch.ID, out)
}

// EditParameter меняет параметр и переносит изменение на привязанные размеры.
func (h *SketchHandler) EditParameter(c fiber.Ctx) error {
	var req parameterRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}
	if req.Value == nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "value required"})
	}

	ctx := c.Context()
	sketch, err := h.repo.Get(ctx, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	out, positions, err := dimension.EditParameter(sketch.Document, c.Params("name"), *req.Value)
	if err != nil {
		return fail(c, err)
	}

	saved, err := h.repo.Update(ctx, sketch.ID, "", out)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"sketch": saved, "positions": positions})
}

func (h *SketchHandler) save(c fiber.Ctx, id string, doc *models.Document) error {
	saved, err := h.repo.Update(c.Context(), id, "", doc)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(saved)
}

// measure возвращает отображаемое значение размера по текущей геометрии.
func measure(doc *models.Document, dimID string) (float64, error) {
	idx, ok := doc.Geometry.DimensionIndex(dimID)
	if !ok {
		return 0, dimension.ErrDimensionNotFound
	}
	resolved, err := graph.Resolve(doc)
	if err != nil {
		return 0, err
	}
	d := doc.Geometry.Dimensions[idx]
	value, err := dimension.CalculateDimensionValue(d, resolved.Positions)
	if err != nil {
		return 0, err
	}
	return dimension.DisplayValue(d, value), nil
}

// ============================================================
// Drags
// ============================================================

// StartDrag открывает жест над вершинами сохраненного эскиза.
func (h *SketchHandler) StartDrag(c fiber.Ctx) error {
	var req dragStartRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}

	sketch, err := h.repo.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	resolved, err := graph.Resolve(sketch.Document)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	drag, err := solver.NewDrag(req.Nodes, resolved.Positions, sketch.Document.Geometry.Constraints)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	s := h.drags.Start(sketch.ID, resolved.Positions, drag)
	log.Printf("[DRAG] Started %s on %s: %v", s.ID, sketch.ID, req.Nodes)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":     s.ID,
		"state":  drag.State(),
		"origin": drag.Origin(),
	})
}

// MoveDrag возвращает предпросмотр без записи в эскиз.
func (h *SketchHandler) MoveDrag(c fiber.Ctx) error {
	var req dragMoveRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}

	s, ok := h.drags.Get(c.Params("drag"))
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "drag not found"})
	}

	s.Lock()
	defer s.Unlock()
	result, err := s.Drag.Move(req.Positions)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"state": s.Drag.State(), "result": result})
}

// ReleaseDrag завершает жест. Незаблокированный результат записывается в эскиз.
func (h *SketchHandler) ReleaseDrag(c fiber.Ctx) error {
	var req dragMoveRequest
	if ok, err := decodeBody(c, &req); !ok {
		return err
	}

	s, ok := h.drags.Get(c.Params("drag"))
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "drag not found"})
	}

	s.Lock()
	defer s.Unlock()
	outcome, result, err := s.Drag.Release(req.Positions)
	if err != nil {
		return fail(c, err)
	}
	h.drags.Finish(s.ID)

	resp := fiber.Map{"outcome": outcome, "result": result}
	if outcome != solver.OutcomeCommitted {
		log.Printf("[DRAG] %s reverted: %s", s.ID, result.Reason)
		return c.JSON(resp)
	}

	ctx := c.Context()
	sketch, err := h.repo.Get(ctx, s.SketchID)
	if err != nil {
		return fail(c, err)
	}
	saved, err := h.repo.Update(ctx, sketch.ID, "", graph.Commit(sketch.Document, s.Positions, result.Updates))
	if err != nil {
		return fail(c, err)
	}

	log.Printf("[DRAG] %s committed %d updates", s.ID, len(result.Updates))
	resp["sketch"] = saved
	return c.JSON(resp)
}

func (h *SketchHandler) CancelDrag(c fiber.Ctx) error {
	s, ok := h.drags.Finish(c.Params("drag"))
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "drag not found"})
	}

	s.Lock()
	defer s.Unlock()
	if err := s.Drag.Cancel(); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"outcome": s.Drag.Outcome()})
}
