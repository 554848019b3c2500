package diagram

import (
	"fmt"
	"regexp"
	"strings"
)

// c4Shape captures the D2 shape + style emitted for each C4 entity type,
// per the translation table in spec.md §6.
type c4Shape struct {
	shape string
	style string
}

var c4ToD2Shapes = map[string]c4Shape{
	"Person":     {shape: "person"},
	"Person_Ext": {shape: "person", style: "stroke: #999; fill: #f5f5f5"},

	"System":          {shape: "rectangle", style: "fill: #1168bd; stroke: #0b4884"},
	"System_Ext":      {shape: "rectangle", style: "fill: #999; stroke: #666"},
	"SystemDb":        {shape: "cylinder", style: "fill: #1168bd; stroke: #0b4884"},
	"SystemDb_Ext":    {shape: "cylinder", style: "fill: #999; stroke: #666"},
	"SystemQueue":     {shape: "queue", style: "fill: #1168bd; stroke: #0b4884"},
	"SystemQueue_Ext": {shape: "queue", style: "fill: #999; stroke: #666"},

	"Container":          {shape: "rectangle", style: "fill: #438dd5; stroke: #3682c3"},
	"Container_Ext":      {shape: "rectangle", style: "fill: #999; stroke: #666"},
	"ContainerDb":        {shape: "cylinder", style: "fill: #438dd5; stroke: #3682c3"},
	"ContainerDb_Ext":    {shape: "cylinder", style: "fill: #999; stroke: #666"},
	"ContainerQueue":     {shape: "queue", style: "fill: #438dd5; stroke: #3682c3"},
	"ContainerQueue_Ext": {shape: "queue", style: "fill: #999; stroke: #666"},

	"Component":          {shape: "rectangle", style: "fill: #85bbf0; stroke: #78a8d8"},
	"Component_Ext":      {shape: "rectangle", style: "fill: #999; stroke: #666"},
	"ComponentDb":        {shape: "cylinder", style: "fill: #85bbf0; stroke: #78a8d8"},
	"ComponentDb_Ext":    {shape: "cylinder", style: "fill: #999; stroke: #666"},
	"ComponentQueue":     {shape: "queue", style: "fill: #85bbf0; stroke: #78a8d8"},
	"ComponentQueue_Ext": {shape: "queue", style: "fill: #999; stroke: #666"},
}

var (
	c4LevelPattern    = regexp.MustCompile(`(?i)^C4(Context|Container|Component|Dynamic|Deployment)`)
	c4BoundaryPattern = regexp.MustCompile(`^(Boundary|Enterprise_Boundary|System_Boundary|Container_Boundary)\s*\(\s*(\w+)\s*,\s*"([^"]+)"\s*\)\s*\{`)
	c4EntityPattern   = regexp.MustCompile(`^(\w+)\s*\(\s*(\w+)\s*,\s*"([^"]+)"(?:\s*,\s*"([^"]*)")?(?:\s*,\s*"([^"]*)")?\s*\)`)
	c4RelPattern      = regexp.MustCompile(`^Rel(?:_[A-Z]+)?\s*\(\s*(\w+)\s*,\s*(\w+)\s*,\s*"([^"]+)"(?:\s*,\s*"([^"]*)")?\s*\)`)
)

// LooksLikeC4 reports whether code appears to use C4 notation rather than
// plain D2 or Mermaid.
func LooksLikeC4(code string) bool {
	if code == "" {
		return false
	}
	patterns := []string{
		`\b(Person|System|Container|Component)\s*\(`,
		`\bRel\s*\(`,
		`\bC4(Context|Container|Component|Dynamic|Deployment)\b`,
		`\bBoundary\s*\(`,
	}
	for _, p := range patterns {
		if regexp.MustCompile(p).MatchString(code) {
			return true
		}
	}
	return false
}

// ConvertC4ToD2 translates C4 entity/relationship/boundary notation into D2
// source. Boundary scoping is fixed at declaration time: an entity declared
// inside a boundary block keeps that qualification for every relationship
// that references it, even ones written outside the block (spec.md Open
// Question, resolved in DESIGN.md).
func ConvertC4ToD2(c4Code string) string {
	if strings.TrimSpace(c4Code) == "" {
		return ""
	}

	var out []string
	var currentBoundary string
	entityBoundary := make(map[string]string)

	out = append(out, "direction: down", "")

	for _, raw := range strings.Split(c4Code, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if c4LevelPattern.MatchString(line) {
			continue
		}
		if strings.HasPrefix(line, "title ") {
			continue
		}

		if line == "}" {
			if currentBoundary != "" {
				out = append(out, "}", "")
				currentBoundary = ""
			}
			continue
		}

		if m := c4BoundaryPattern.FindStringSubmatch(line); m != nil {
			boundaryID, label := m[2], m[3]
			currentBoundary = boundaryID
			out = append(out,
				fmt.Sprintf("%s: {", boundaryID),
				fmt.Sprintf(`  label: "%s"`, label),
				"  style: {",
				"    stroke: #666",
				"    stroke-width: 2",
				"    stroke-dash: 5",
				"    fill: transparent",
				"  }",
				"",
			)
			continue
		}

		if m := c4EntityPattern.FindStringSubmatch(line); m != nil {
			entityType, entityID, label, description, technology := m[1], m[2], m[3], m[4], m[5]
			shape, ok := c4ToD2Shapes[entityType]
			if !ok {
				shape = c4Shape{shape: "rectangle"}
			}

			if currentBoundary != "" {
				entityBoundary[entityID] = currentBoundary
			}

			prefix := ""
			if currentBoundary != "" {
				prefix = "  "
			}

			out = append(out,
				fmt.Sprintf("%s%s: {", prefix, entityID),
				fmt.Sprintf(`%s  label: "%s"`, prefix, label),
				fmt.Sprintf("%s  shape: %s", prefix, shape.shape),
			)

			if description != "" || technology != "" {
				desc := description
				if technology != "" {
					desc = fmt.Sprintf(`%s\n[%s]`, description, technology)
				}
				out = append(out, fmt.Sprintf(`%s  tooltip: "%s"`, prefix, desc))
			}
			if shape.style != "" {
				out = append(out, fmt.Sprintf("%s  style: {%s}", prefix, shape.style))
			}

			out = append(out, prefix+"}", "")
			continue
		}

		if m := c4RelPattern.FindStringSubmatch(line); m != nil {
			fromID, toID, label, technology := m[1], m[2], m[3], m[4]

			fromFull := qualify(fromID, currentBoundary, entityBoundary)
			toFull := qualify(toID, currentBoundary, entityBoundary)

			fullLabel := label
			if technology != "" {
				fullLabel = fmt.Sprintf(`%s\n[%s]`, label, technology)
			}

			out = append(out, fmt.Sprintf(`%s -> %s: "%s"`, fromFull, toFull, fullLabel))
			continue
		}
	}

	if currentBoundary != "" {
		out = append(out, "}", "")
	}

	return strings.Join(out, "\n")
}

func qualify(id, currentBoundary string, entityBoundary map[string]string) string {
	if strings.Contains(id, ".") {
		return id
	}
	if currentBoundary != "" {
		return currentBoundary + "." + id
	}
	if b, ok := entityBoundary[id]; ok {
		return b + "." + id
	}
	return id
}
