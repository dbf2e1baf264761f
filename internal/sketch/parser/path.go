package parser

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Path Parser
// ============================================================

type Op byte

const (
	OpMove  Op = 'M'
	OpLine  Op = 'L'
	OpQuad  Op = 'Q'
	OpCubic Op = 'C'
	OpClose Op = 'Z'
)

// Segment хранит команду пути в абсолютных координатах.
// Для Q: [control, end], для C: [control1, control2, end].
type Segment struct {
	Op     Op
	Points []models.Point
}

var (
	commandPattern = regexp.MustCompile(`([MmLlHhVvQqCcZzAaSsTt])([^MmLlHhVvQqCcZzAaSsTt]*)`)
	numberPattern  = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)
)

// ParsePath разбирает атрибут d: M, L, H, V, Q, C, Z в абсолютной
// и относительной форме. Остальные команды пропускаются.
func ParsePath(d string) ([]Segment, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, fmt.Errorf("empty path")
	}

	var (
		segments       []Segment
		current, start models.Point
		hasCurrent     bool
	)

	for _, match := range commandPattern.FindAllStringSubmatch(d, -1) {
		cmd := match[1][0]
		args := parseCoords(match[2])
		relative := cmd >= 'a' && cmd <= 'z'
		abs := func(x, y float64) models.Point {
			if relative {
				return models.Point{X: current.X + x, Y: current.Y + y}
			}
			return models.Point{X: x, Y: y}
		}

		switch upper(cmd) {
		case 'M':
			if len(args) < 2 {
				return nil, fmt.Errorf("command %c needs coordinates", cmd)
			}
			current = abs(args[0], args[1])
			start = current
			hasCurrent = true
			segments = append(segments, Segment{Op: OpMove, Points: []models.Point{current}})
			// лишние пары после M считаются неявными L
			for i := 2; i+1 < len(args); i += 2 {
				current = abs(args[i], args[i+1])
				segments = append(segments, Segment{Op: OpLine, Points: []models.Point{current}})
			}

		case 'L':
			if !hasCurrent {
				return nil, fmt.Errorf("command %c before M", cmd)
			}
			for i := 0; i+1 < len(args); i += 2 {
				current = abs(args[i], args[i+1])
				segments = append(segments, Segment{Op: OpLine, Points: []models.Point{current}})
			}

		case 'H':
			if !hasCurrent {
				return nil, fmt.Errorf("command %c before M", cmd)
			}
			for _, x := range args {
				if relative {
					current.X += x
				} else {
					current.X = x
				}
				segments = append(segments, Segment{Op: OpLine, Points: []models.Point{current}})
			}

		case 'V':
			if !hasCurrent {
				return nil, fmt.Errorf("command %c before M", cmd)
			}
			for _, y := range args {
				if relative {
					current.Y += y
				} else {
					current.Y = y
				}
				segments = append(segments, Segment{Op: OpLine, Points: []models.Point{current}})
			}

		case 'Q':
			if !hasCurrent {
				return nil, fmt.Errorf("command %c before M", cmd)
			}
			for i := 0; i+3 < len(args); i += 4 {
				ctrl := abs(args[i], args[i+1])
				end := abs(args[i+2], args[i+3])
				current = end
				segments = append(segments, Segment{Op: OpQuad, Points: []models.Point{ctrl, end}})
			}

		case 'C':
			if !hasCurrent {
				return nil, fmt.Errorf("command %c before M", cmd)
			}
			for i := 0; i+5 < len(args); i += 6 {
				c1 := abs(args[i], args[i+1])
				c2 := abs(args[i+2], args[i+3])
				end := abs(args[i+4], args[i+5])
				current = end
				segments = append(segments, Segment{Op: OpCubic, Points: []models.Point{c1, c2, end}})
			}

		case 'Z':
			if hasCurrent {
				segments = append(segments, Segment{Op: OpClose})
				current = start
			}

		default:
			log.Printf("[CONVERTER] unsupported path command %q skipped", cmd)
		}
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("path has no drawable commands")
	}
	return segments, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func parseCoords(s string) []float64 {
	var coords []float64
	for _, part := range numberPattern.FindAllString(s, -1) {
		val, err := strconv.ParseFloat(part, 64)
		if err == nil {
			coords = append(coords, val)
		}
	}
	return coords
}
