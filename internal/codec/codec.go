// Package codec implements the canonical, lossless JSON encoding for
// Node and Relationship: UTF-8 JSON, pretty-printed with two-space
// indent, required fields validated on decode while unrecognized extra
// fields are tolerated for forward compatibility.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dreamware/graphdb/internal/model"
)

// nodeWire and relWire are the exact on-the-wire shapes. Decoding into
// these (rather than json.RawMessage + manual field walk) naturally
// ignores fields the current version doesn't know about, for forward
// compatibility; the required-field check below is what makes
// missing/malformed required fields an error.
type nodeWire struct {
	Properties  map[string]any `json:"properties"`
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Permissions []string       `json:"permissions"`
	Version     int64          `json:"version"`
}

type relWire struct {
	Properties  map[string]any `json:"properties"`
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	Permissions []string       `json:"permissions"`
	Version     int64          `json:"version"`
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; that's fine for a
	// blob payload and matches how most of the pretty-printed fixtures
	// in the corpus are written.
	return buf.Bytes(), nil
}

// EncodeNode renders n as canonical pretty-printed JSON.
func EncodeNode(n *model.Node) ([]byte, error) {
	return marshalIndent(nodeWire{
		ID:          n.ID,
		Type:        n.Type,
		Properties:  map[string]any(n.Properties),
		Permissions: n.Permissions.Slice(),
		Version:     n.Version,
	})
}

// DecodeNode parses data into a Node, rejecting it if required fields
// (id, type) are missing — extra/unknown fields are silently ignored.
func DecodeNode(data []byte) (*model.Node, error) {
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("codec: decode node: %w", err)
	}
	if w.ID == "" {
		return nil, fmt.Errorf("codec: decode node: missing required field %q", "id")
	}
	if w.Type == "" {
		return nil, fmt.Errorf("codec: decode node: missing required field %q", "type")
	}
	return &model.Node{
		ID:          w.ID,
		Type:        w.Type,
		Properties:  model.Properties(w.Properties),
		Permissions: model.NewPermissions(w.Permissions...),
		Version:     w.Version,
	}, nil
}

// EncodeRelationship renders r as canonical pretty-printed JSON.
func EncodeRelationship(r *model.Relationship) ([]byte, error) {
	return marshalIndent(relWire{
		ID:          r.ID,
		Type:        r.Type,
		From:        r.From,
		To:          r.To,
		Properties:  map[string]any(r.Properties),
		Permissions: r.Permissions.Slice(),
		Version:     r.Version,
	})
}

// DecodeRelationship parses data into a Relationship, rejecting it if
// any required field (type, from, to) is missing.
func DecodeRelationship(data []byte) (*model.Relationship, error) {
	var w relWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("codec: decode relationship: %w", err)
	}
	for field, v := range map[string]string{"type": w.Type, "from": w.From, "to": w.To} {
		if v == "" {
			return nil, fmt.Errorf("codec: decode relationship: missing required field %q", field)
		}
	}
	return &model.Relationship{
		ID:          w.ID,
		Type:        w.Type,
		From:        w.From,
		To:          w.To,
		Properties:  model.Properties(w.Properties),
		Permissions: model.NewPermissions(w.Permissions...),
		Version:     w.Version,
	}, nil
}
