package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidLaunchTable = errors.New("invalid_launch_table")

// ParseFilters reads the JSON-encoded filters query parameter. An empty or
// malformed value yields the defaults.
func ParseFilters(raw string) Filters {
	if strings.TrimSpace(raw) == "" {
		return DefaultFilters()
	}
	var f Filters
	if err := json.Unmarshal([]byte(raw), &f); err != nil || f.Tables == "" {
		return DefaultFilters()
	}
	return f
}

func EncodeFilters(f Filters) string {
	raw, _ := json.Marshal(f)
	return string(raw)
}

const launchTableSchema = `{
  "type": "object",
  "required": ["tableId", "tableName", "slug", "iframe"],
  "properties": {
    "tableId":     {"type": ["string", "integer"], "minLength": 1},
    "tableName":   {"type": "string", "minLength": 1},
    "category":    {"type": "string", "enum": ["slot", "fun", "casino"]},
    "slug":        {"type": "string", "pattern": "^[a-z0-9][a-z0-9-]*$"},
    "iframe":      {"type": "string", "enum": ["unity", "pixi", "others"]},
    "orientation": {"type": "string", "enum": ["landscape-primary", "portrait-primary"]},
    "phase":       {"type": "string"},
    "gameName":    {"type": "string"}
  }
}`

var launchSchema = mustSchema(launchTableSchema)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return schema
}

// ParseLaunchTable validates a table handed over by an external launcher.
func ParseLaunchTable(raw []byte) (Table, error) {
	result, err := launchSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidLaunchTable, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Table{}, fmt.Errorf("%w: %s", ErrInvalidLaunchTable, strings.Join(msgs, "; "))
	}
	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidLaunchTable, err)
	}
	if t.Orientation == "" {
		t.Orientation = Landscape
	}
	return t, nil
}
