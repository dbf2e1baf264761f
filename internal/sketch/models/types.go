package models

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// ============================================================
// Geometry primitives
// ============================================================

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positions: вычисленные координаты вершин по их id.
type Positions map[string]Point

// Clone копирует таблицу координат.
func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for id, pt := range p {
		out[id] = pt
	}
	return out
}

// ============================================================
// Sketch structures
// ============================================================

type ContourKind string

const (
	ContourOuter ContourKind = "outer"
	ContourHole  ContourKind = "hole"
)

type ConstraintKind string

const (
	ConstraintFixed      ConstraintKind = "fixed"
	ConstraintHorizontal ConstraintKind = "horizontal"
	ConstraintVertical   ConstraintKind = "vertical"
	ConstraintDistance   ConstraintKind = "distance"
)

type DimensionKind string

const (
	DimensionLinear  DimensionKind = "linear"
	DimensionAngular DimensionKind = "angular"
)

type VertexDef struct {
	X Value `json:"x"`
	Y Value `json:"y"`
}

type Contour struct {
	ID       string      `json:"id"`
	Type     ContourKind `json:"type"`
	Closed   bool        `json:"closed"`
	Elements []Element   `json:"-"`
}

type contourJSON struct {
	ID       string            `json:"id"`
	Type     ContourKind       `json:"type"`
	Closed   bool              `json:"closed"`
	Elements []json.RawMessage `json:"elements"`
}

func (c Contour) MarshalJSON() ([]byte, error) {
	type out struct {
		ID       string       `json:"id"`
		Type     ContourKind  `json:"type"`
		Closed   bool         `json:"closed"`
		Elements []rawElement `json:"elements"`
	}
	elements := make([]rawElement, 0, len(c.Elements))
	for _, e := range c.Elements {
		elements = append(elements, encodeElement(e))
	}
	return json.Marshal(out{ID: c.ID, Type: c.Type, Closed: c.Closed, Elements: elements})
}

func (c *Contour) UnmarshalJSON(data []byte) error {
	var raw contourJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	elements := make([]Element, 0, len(raw.Elements))
	for i, msg := range raw.Elements {
		e, err := decodeElement(msg)
		if err != nil {
			return fmt.Errorf("contour %q element %d: %w", raw.ID, i, err)
		}
		elements = append(elements, e)
	}

	*c = Contour{ID: raw.ID, Type: raw.Type, Closed: raw.Closed, Elements: elements}
	return nil
}

type Circle struct {
	ID          string `json:"id"`
	Center      string `json:"center"`
	RadiusPoint string `json:"radiusPoint"`
}

type Constraint struct {
	ID      string         `json:"id"`
	Type    ConstraintKind `json:"type"`
	Nodes   []string       `json:"nodes"`
	Value   *float64       `json:"value,omitempty"`
	Enabled bool           `json:"enabled"`
}

// UnmarshalJSON считает ограничение включенным, если поле enabled не передано.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	type alias Constraint
	tmp := alias{Enabled: true}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*c = Constraint(tmp)
	return nil
}

// Involves проверяет, участвует ли вершина в ограничении.
func (c Constraint) Involves(nodeID string) bool {
	for _, id := range c.Nodes {
		if id == nodeID {
			return true
		}
	}
	return false
}

type LineRef struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type DimensionElements struct {
	Nodes []string  `json:"nodes,omitempty"`
	Lines []LineRef `json:"lines,omitempty"`
}

type Dimension struct {
	ID          string            `json:"id"`
	Type        DimensionKind     `json:"type"`
	Value       Value             `json:"value"`
	Elements    DimensionElements `json:"elements"`
	IsParameter bool              `json:"isParameter"`
	Label       string            `json:"label,omitempty"`
	Inverted    bool              `json:"inverted,omitempty"`
}

var paramRefPattern = regexp.MustCompile(`^\s*params\.([A-Za-z_]\w*)\s*$`)

// ParameterName возвращает имя параметра, если значение равно ровно "params.<name>".
func ParameterName(v Value) (string, bool) {
	if !v.IsExpr() {
		return "", false
	}
	m := paramRefPattern.FindStringSubmatch(v.Expr)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParameterName возвращает имя параметра, к которому привязан размер.
func (d Dimension) ParameterName() (string, bool) {
	if !d.IsParameter {
		return "", false
	}
	return ParameterName(d.Value)
}

const (
	DefaultBevelThickness = 0.2
	DefaultBevelSize      = 0.1
	DefaultBevelSegments  = 3
	DefaultCurveSegments  = 12
)

type Extrusion struct {
	Height         *Value  `json:"height,omitempty"`
	Bevel          bool    `json:"bevel"`
	BevelThickness float64 `json:"bevelThickness,omitempty"`
	BevelSize      float64 `json:"bevelSize,omitempty"`
	BevelSegments  int     `json:"bevelSegments,omitempty"`
	CurveSegments  int     `json:"curveSegments,omitempty"`
}

// WithDefaults подставляет значения по умолчанию для незаданных полей.
func (e Extrusion) WithDefaults() Extrusion {
	if e.BevelThickness <= 0 {
		e.BevelThickness = DefaultBevelThickness
	}
	if e.BevelSize <= 0 {
		e.BevelSize = DefaultBevelSize
	}
	if e.BevelSegments <= 0 {
		e.BevelSegments = DefaultBevelSegments
	}
	if e.CurveSegments <= 0 {
		e.CurveSegments = DefaultCurveSegments
	}
	return e
}

type Geometry struct {
	Vertices    map[string]VertexDef `json:"vertices"`
	Contours    []Contour            `json:"contours"`
	Circles     []Circle             `json:"circles,omitempty"`
	Constraints []Constraint         `json:"constraints,omitempty"`
	Dimensions  []Dimension          `json:"dimensions,omitempty"`
	Extrusion   *Extrusion           `json:"extrusion,omitempty"`
}

// Document описывает весь эскиз: таблицу параметров и геометрию.
type Document struct {
	Params   map[string]Value `json:"params"`
	Geometry Geometry         `json:"geometry"`
}

// ParseDocument разбирает JSON шаблона.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode sketch: %w", err)
	}
	if doc.Params == nil {
		doc.Params = map[string]Value{}
	}
	if doc.Geometry.Vertices == nil {
		doc.Geometry.Vertices = map[string]VertexDef{}
	}
	return &doc, nil
}

// OuterContours возвращает все контуры типа outer.
func (g *Geometry) OuterContours() []Contour {
	var out []Contour
	for _, c := range g.Contours {
		if c.Type == ContourOuter {
			out = append(out, c)
		}
	}
	return out
}

// DimensionIndex ищет размер по id.
func (g *Geometry) DimensionIndex(id string) (int, bool) {
	for i, d := range g.Dimensions {
		if d.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Clone делает глубокую копию документа, чтобы операции не трогали исходник.
func (d *Document) Clone() *Document {
	out := &Document{
		Params: make(map[string]Value, len(d.Params)),
		Geometry: Geometry{
			Vertices:    make(map[string]VertexDef, len(d.Geometry.Vertices)),
			Contours:    make([]Contour, 0, len(d.Geometry.Contours)),
			Circles:     append([]Circle(nil), d.Geometry.Circles...),
			Constraints: make([]Constraint, 0, len(d.Geometry.Constraints)),
			Dimensions:  make([]Dimension, 0, len(d.Geometry.Dimensions)),
		},
	}
	for k, v := range d.Params {
		out.Params[k] = v
	}
	for k, v := range d.Geometry.Vertices {
		out.Geometry.Vertices[k] = v
	}
	for _, c := range d.Geometry.Contours {
		c.Elements = append([]Element(nil), c.Elements...)
		out.Geometry.Contours = append(out.Geometry.Contours, c)
	}
	for _, c := range d.Geometry.Constraints {
		c.Nodes = append([]string(nil), c.Nodes...)
		if c.Value != nil {
			v := *c.Value
			c.Value = &v
		}
		out.Geometry.Constraints = append(out.Geometry.Constraints, c)
	}
	for _, dim := range d.Geometry.Dimensions {
		dim.Elements.Nodes = append([]string(nil), dim.Elements.Nodes...)
		dim.Elements.Lines = append([]LineRef(nil), dim.Elements.Lines...)
		out.Geometry.Dimensions = append(out.Geometry.Dimensions, dim)
	}
	if d.Geometry.Extrusion != nil {
		ext := *d.Geometry.Extrusion
		if ext.Height != nil {
			h := *ext.Height
			ext.Height = &h
		}
		out.Geometry.Extrusion = &ext
	}
	return out
}
