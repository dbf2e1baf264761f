package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"sketch-engine/internal/sketch/models"
	"sketch-engine/internal/sketch/repository"
	"sketch-engine/internal/sketch/service"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "sketches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.New(db)
	require.NoError(t, repo.Init(context.Background(), "../../../migrations/001_init_sketches.sql"))

	app := fiber.New()
	Register(app, NewSketchHandler(repo, service.NewDragSessions()), repo)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

const squareDoc = `{
  "params": { "w": 10 },
  "geometry": {
    "vertices": {
      "v1": { "x": 0, "y": 0 },
      "v2": { "x": "params.w", "y": 0 },
      "v3": { "x": "params.w", "y": "params.w" },
      "v4": { "x": 0, "y": "params.w" }
    },
    "contours": [
      { "id": "outer", "type": "outer", "closed": true, "elements": [
        { "type": "line", "from": "v1", "to": "v2" },
        { "type": "line", "from": "v2", "to": "v3" },
        { "type": "line", "from": "v3", "to": "v4" },
        { "type": "line", "from": "v4", "to": "v1" }
      ] }
    ],
    "constraints": [ { "id": "c1", "type": "fixed", "nodes": ["v4"] } ],
    "dimensions": [
      { "id": "d1", "type": "linear", "value": 10, "elements": { "nodes": ["v1", "v2"] } }
    ],
    "extrusion": { "height": 2 }
  }
}`

// ============================================================
// Stateless routes
// ============================================================

func TestHealth(t *testing.T) {
	app := newApp(t)

	status, body := do(t, app, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"alive"}`, string(body))

	status, body = do(t, app, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ready"}`, string(body))
}

func TestExpressions(t *testing.T) {
	app := newApp(t)

	status, body := do(t, app, http.MethodPost, "/expressions/evaluate", `{"expression":"params.w * 2 + 1","params":{"w":5}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 11.0, decode[map[string]any](t, body)["value"])

	status, body = do(t, app, http.MethodPost, "/expressions/batch", `{"expressions":{"a":"params.w / 2","b":3},"params":{"w":5}}`)
	require.Equal(t, http.StatusOK, status)
	batch := decode[struct {
		Values map[string]float64 `json:"values"`
	}](t, body)
	assert.Equal(t, map[string]float64{"a": 2.5, "b": 3}, batch.Values)

	status, body = do(t, app, http.MethodPost, "/expressions/validate", `{"expression":"params.h + 1","available":["w"]}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"valid":false,"error":"unknown parameter: h"}`, string(body))

	status, body = do(t, app, http.MethodPost, "/parameters/cycles", `{"params":{"a":"params.b","b":"params.a"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, body)["circular"])
}

func TestBadRequests(t *testing.T) {
	app := newApp(t)

	status, _ := do(t, app, http.MethodPost, "/expressions/evaluate", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/solver/move", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/solver/move", `{"position":{"x":1,"y":1}}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/solid", `{"geometry":{"contours":[{"elements":[{"type":"spline"}]}]}}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGeometryAndSolid(t *testing.T) {
	app := newApp(t)

	status, body := do(t, app, http.MethodPost, "/geometry/validate", squareDoc)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, body)["valid"])

	status, body = do(t, app, http.MethodPost, "/solid", squareDoc)
	require.Equal(t, http.StatusOK, status)
	solid := decode[struct {
		Volume float64 `json:"volume"`
		Solid  struct {
			Vertices []map[string]float64 `json:"vertices"`
		} `json:"solid"`
	}](t, body)
	assert.InDelta(t, 200, solid.Volume, 1e-9)
	assert.Len(t, solid.Solid.Vertices, 8)

	status, _ = do(t, app, http.MethodPost, "/solid", `{"geometry":{"vertices":{}}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = do(t, app, http.MethodPost, "/render", squareDoc)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "<svg")
}

func TestSolverAndDimensions(t *testing.T) {
	app := newApp(t)

	status, body := do(t, app, http.MethodPost, "/solver/move", `{
	  "node": "a", "position": {"x": 5, "y": 5},
	  "vertices": {"a": {"x": 0, "y": 0}},
	  "constraints": [{"id": "c1", "type": "fixed", "nodes": ["a"]}]
	}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, body)["blocked"])

	status, body = do(t, app, http.MethodPost, "/solver/group-move", `{
	  "moves": {"a": {"x": 1, "y": 1}, "b": {"x": 11, "y": 1}},
	  "vertices": {"a": {"x": 0, "y": 0}, "b": {"x": 10, "y": 0}}
	}`)
	require.Equal(t, http.StatusOK, status)
	group := decode[struct {
		Blocked bool             `json:"blocked"`
		Updates models.Positions `json:"updates"`
	}](t, body)
	assert.False(t, group.Blocked)
	assert.Equal(t, models.Point{X: 11, Y: 1}, group.Updates["b"])

	dim := `{"id":"d","type":"linear","value":5,"elements":{"nodes":["a","b"]}}`
	status, body = do(t, app, http.MethodPost, "/dimensions/value", `{"dimension":`+dim+`,"vertices":{"a":{"x":0,"y":0},"b":{"x":3,"y":4}}}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"value":5,"display":5}`, string(body))

	status, body = do(t, app, http.MethodPost, "/dimensions/apply", `{"dimension":`+dim+`,"target":10,"vertices":{"a":{"x":0,"y":0},"b":{"x":3,"y":4}}}`)
	require.Equal(t, http.StatusOK, status)
	applied := decode[struct {
		Success bool             `json:"success"`
		Updates models.Positions `json:"updates"`
	}](t, body)
	assert.True(t, applied.Success)
	assert.Equal(t, models.Point{X: 6, Y: 8}, applied.Updates["b"])

	status, _ = do(t, app, http.MethodPost, "/dimensions/value", `{"dimension":`+dim+`,"vertices":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestConvert(t *testing.T) {
	app := newApp(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "plate.svg")
	require.NoError(t, err)
	_, err = part.Write([]byte(`<svg><rect id="Outer_plate" x="0" y="0" width="20" height="10"/></svg>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/convert?height=3", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	doc, err := models.ParseDocument(data)
	require.NoError(t, err)
	assert.Len(t, doc.Geometry.Vertices, 4)
	require.NotNil(t, doc.Geometry.Extrusion)
	assert.Equal(t, models.Num(3), *doc.Geometry.Extrusion.Height)

	status, _ := do(t, app, http.MethodPost, "/convert", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

// ============================================================
// Sketch store
// ============================================================

type sketchEnvelope struct {
	Sketch models.Sketch `json:"sketch"`
}

func createSquare(t *testing.T, app *fiber.App) models.Sketch {
	t.Helper()
	status, body := do(t, app, http.MethodPost, "/sketches", `{"name":"square","document":`+squareDoc+`}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	return decode[sketchEnvelope](t, body).Sketch
}

func TestSketches_CRUD(t *testing.T) {
	app := newApp(t)
	created := createSquare(t, app)
	require.NotEmpty(t, created.ID)

	status, body := do(t, app, http.MethodGet, "/sketches", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Sketch](t, body), 1)

	status, body = do(t, app, http.MethodGet, "/sketches/"+created.ID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "square", decode[models.Sketch](t, body).Name)

	status, body = do(t, app, http.MethodGet, "/sketches/"+created.ID+"/solid", "")
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 200, decode[map[string]any](t, body)["volume"], 1e-9)

	status, _ = do(t, app, http.MethodPut, "/sketches/"+created.ID, `{"name":"renamed","document":`+squareDoc+`}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = do(t, app, http.MethodDelete, "/sketches/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, app, http.MethodGet, "/sketches/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSketches_PromoteEditDemote(t *testing.T) {
	app := newApp(t)
	id := createSquare(t, app).ID

	status, body := do(t, app, http.MethodPost, "/sketches/"+id+"/dimensions/d1/promote", `{"name":"side"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	promoted := decode[models.Sketch](t, body)
	assert.Equal(t, models.Num(10), promoted.Document.Params["side"])

	status, _ = do(t, app, http.MethodPost, "/sketches/"+id+"/dimensions/d1/promote", `{"name":"other"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = do(t, app, http.MethodPut, "/sketches/"+id+"/parameters/side", `{"value":10}`)
	require.Equal(t, http.StatusOK, status, string(body))

	status, _ = do(t, app, http.MethodPut, "/sketches/"+id+"/parameters/missing", `{"value":1}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, app, http.MethodPost, "/sketches/"+id+"/dimensions/d1/demote", "")
	require.Equal(t, http.StatusOK, status, string(body))
	demoted := decode[models.Sketch](t, body)
	assert.NotContains(t, demoted.Document.Params, "side")
	assert.Equal(t, models.Num(10), demoted.Document.Geometry.Dimensions[0].Value)
}

func TestSketches_Drag(t *testing.T) {
	app := newApp(t)
	id := createSquare(t, app).ID

	status, body := do(t, app, http.MethodPost, "/sketches/"+id+"/drags", `{"nodes":["v1"]}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	dragID := decode[map[string]any](t, body)["id"].(string)

	status, _ = do(t, app, http.MethodPost, "/drags/"+dragID+"/release", `{"positions":{"v1":{"x":-5,"y":0}}}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = do(t, app, http.MethodPut, "/drags/"+dragID, `{"positions":{"v1":{"x":-3,"y":0}}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "dragging", decode[map[string]any](t, body)["state"])

	status, body = do(t, app, http.MethodPost, "/drags/"+dragID+"/release", `{"positions":{"v1":{"x":-5,"y":0}}}`)
	require.Equal(t, http.StatusOK, status, string(body))
	released := decode[struct {
		Outcome string        `json:"outcome"`
		Sketch  models.Sketch `json:"sketch"`
	}](t, body)
	assert.Equal(t, "committed", released.Outcome)
	assert.Equal(t, models.VertexDef{X: models.Num(-5), Y: models.Num(0)}, released.Sketch.Document.Geometry.Vertices["v1"])

	status, _ = do(t, app, http.MethodPut, "/drags/"+dragID, `{"positions":{}}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSketches_DragOfFixedNodeReverts(t *testing.T) {
	app := newApp(t)
	id := createSquare(t, app).ID

	status, body := do(t, app, http.MethodPost, "/sketches/"+id+"/drags", `{"nodes":["v4"]}`)
	require.Equal(t, http.StatusCreated, status)
	dragID := decode[map[string]any](t, body)["id"].(string)

	status, _ = do(t, app, http.MethodPut, "/drags/"+dragID, `{"positions":{"v4":{"x":1,"y":1}}}`)
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, app, http.MethodPost, "/drags/"+dragID+"/release", `{"positions":{"v4":{"x":1,"y":1}}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "reverted", decode[map[string]any](t, body)["outcome"])

	status, body = do(t, app, http.MethodPost, "/sketches/"+id+"/drags", `{"nodes":["v1"]}`)
	require.Equal(t, http.StatusCreated, status)
	dragID = decode[map[string]any](t, body)["id"].(string)

	status, body = do(t, app, http.MethodDelete, "/drags/"+dragID, "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"outcome":"cancelled"}`, string(body))

	status, _ = do(t, app, http.MethodPost, "/sketches/"+id+"/drags", `{"nodes":["nope"]}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDocs(t *testing.T) {
	app := fiber.New()
	NewDocs("../../../docs/sketch.openapi.yaml").Mount(app)
	missing := NewDocs("nope.yaml")
	app.Get("/missing.yaml", missing.Spec)

	status, body := do(t, app, http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "/docs/openapi.yaml")

	status, body = do(t, app, http.MethodGet, "/docs/openapi.yaml", "")
	require.Equal(t, http.StatusOK, status)

	var spec struct {
		OpenAPI string         `yaml:"openapi"`
		Paths   map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(body, &spec))
	assert.Equal(t, "3.0.3", spec.OpenAPI)
	assert.Contains(t, spec.Paths, "/sketches/{id}/dimensions/{dim}/promote")
	assert.Contains(t, spec.Paths, "/drags/{drag}/release")

	status, _ = do(t, app, http.MethodGet, "/missing.yaml", "")
	assert.Equal(t, http.StatusNotFound, status)
}
