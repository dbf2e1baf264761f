package handlers

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"sketch-engine/internal/sketch/mapper"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Convert & Render Handlers
// ============================================================

// ConvertSVG импортирует SVG (multipart поле file) в эскиз.
// Query: height задает высоту выдавливания, flip=true направляет ось Y вверх.
func ConvertSVG(c fiber.Ctx) error {
	log.Printf("[CONVERTER] Received request")
	log.Printf("[CONVERTER] Content-Type: %s", c.Get("Content-Type"))

	file, err := c.FormFile("file")
	if err != nil {
		log.Printf("[CONVERTER] FormFile error: %v", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "file required in multipart/form-data",
		})
	}

	log.Printf("[CONVERTER] File received: %s, size: %d", file.Filename, file.Size)

	f, err := file.Open()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read file"})
	}

	height := float64(mapper.DefaultHeight)
	if raw := c.Query("height"); raw != "" {
		height, err = strconv.ParseFloat(raw, 64)
		if err != nil || height <= 0 {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "height must be a positive number"})
		}
	}

	converter := mapper.New(height)
	if flip, _ := strconv.ParseBool(c.Query("flip")); flip {
		converter.FlipY()
	}

	doc, err := converter.Convert(bytes.NewReader(data))
	if err != nil {
		log.Printf("[CONVERTER] Conversion error: %v", err)
		status := http.StatusBadRequest
		if errors.Is(err, mapper.ErrNoOuterShape) {
			status = http.StatusUnprocessableEntity
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("[CONVERTER] Conversion successful")
	return c.JSON(doc)
}

// RenderSVG рисует SVG-превью эскиза.
func RenderSVG(c fiber.Ctx) error {
	doc, ok, err := decodeDocument(c)
	if !ok {
		return err
	}

	svg, err := mapper.NewRenderer().Render(doc)
	if err != nil {
		log.Printf("[RENDER] Render error: %v", err)
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(svg)
}
