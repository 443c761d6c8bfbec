package mcp

import (
	"encoding/json"

	"huntforge.ai/internal/hunt/index"
)

const (
	toolQueryHints  = "huntforge.query_hints"
	toolLookupNames = "huntforge.lookup_names"
	toolCatalogInfo = "huntforge.catalog_info"
)

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`

	run func(svc Service, args json.RawMessage) (any, error)
}

var tools = []tool{
	{
		Name:        toolQueryHints,
		Description: "Closest occurrence of every hint visible from (x, y) looking in direction (0=N, 1=E, 2=S, 3=W).",
		InputSchema: objectSchema(map[string]any{
			"x":         map[string]any{"type": "integer"},
			"y":         map[string]any{"type": "integer"},
			"direction": map[string]any{"type": "integer", "minimum": 0, "maximum": 3},
		}, "x", "y", "direction"),
		run: queryHints,
	},
	{
		Name:        toolLookupNames,
		Description: "Localized names for hint ids; unknown ids are omitted.",
		InputSchema: objectSchema(map[string]any{
			"ids":  map[string]any{"type": "array", "items": map[string]any{"type": "integer", "minimum": 0}},
			"lang": map[string]any{"type": "string"},
		}, "ids"),
		run: lookupNames,
	},
	{
		Name:        toolCatalogInfo,
		Description: "Digests, languages and build statistics of the loaded dataset.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}, "additionalProperties": false},
		run:         func(svc Service, _ json.RawMessage) (any, error) { return svc.Info(), nil },
	},
}

func findTool(name string) (tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func queryHints(svc Service, args json.RawMessage) (any, error) {
	var p struct {
		X         *int32 `json:"x"`
		Y         *int32 `json:"y"`
		Direction *int   `json:"direction"`
	}
	if err := params(args, &p); err != nil {
		return nil, err
	}
	if p.X == nil || p.Y == nil || p.Direction == nil {
		return nil, codeInvalidParams.err("x, y and direction are required", nil)
	}
	return svc.Hints(source, *p.X, *p.Y, index.Direction(*p.Direction)), nil
}

func lookupNames(svc Service, args json.RawMessage) (any, error) {
	var p struct {
		IDs  []uint32 `json:"ids"`
		Lang string   `json:"lang"`
	}
	if err := params(args, &p); err != nil {
		return nil, err
	}
	ids := make([]index.HintID, len(p.IDs))
	for i, id := range p.IDs {
		ids[i] = index.HintID(id)
	}
	return svc.Names(source, ids, p.Lang), nil
}
