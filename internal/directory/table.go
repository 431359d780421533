// Package directory holds the set of playable tables and the filtered,
// sorted projection the lobby grid shows.
package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type Category string

const (
	CategorySlot   Category = "slot"
	CategoryFun    Category = "fun"
	CategoryCasino Category = "casino"
)

// RuntimeKind names the engine build that renders a table.
type RuntimeKind string

const (
	RuntimeUnity    RuntimeKind = "unity"
	RuntimePixi     RuntimeKind = "pixi"
	RuntimeExternal RuntimeKind = "others"
)

type Orientation string

const (
	Landscape Orientation = "landscape-primary"
	Portrait  Orientation = "portrait-primary"
)

// TableID accepts both string and numeric ids on the wire and always
// encodes as a string.
type TableID string

func (id *TableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TableID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("tableId: %w", err)
	}
	*id = TableID(n.String())
	return nil
}

func (id TableID) String() string { return string(id) }

type Table struct {
	TableID     TableID     `json:"tableId"`
	TableName   string      `json:"tableName"`
	Category    Category    `json:"category"`
	Slug        string      `json:"slug"`
	Runtime     RuntimeKind `json:"iframe"`
	Orientation Orientation `json:"orientation"`
	Phase       string      `json:"phase,omitempty"`
	GameName    string      `json:"gameName,omitempty"`
}

// PhaseNumber parses Phase, returning 0 when it is absent or not numeric.
func (t Table) PhaseNumber() int {
	n, err := strconv.Atoi(t.Phase)
	if err != nil {
		return 0
	}
	return n
}
