package codec

import (
	"strings"
	"testing"

	"github.com/dreamware/graphdb/internal/model"
)

func TestNodeRoundTrip(t *testing.T) {
	t.Run("decode(encode(n)) preserves identity", func(t *testing.T) {
		n := &model.Node{
			ID:          "u1",
			Type:        "user",
			Properties:  model.Properties{"name": "Alice", "age": float64(28)},
			Permissions: model.NewPermissions("read"),
			Version:     1,
		}

		data, err := EncodeNode(n)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		got, err := DecodeNode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}

		if got.ID != n.ID || got.Type != n.Type || got.Version != n.Version {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, n)
		}
		if got.Properties["name"] != "Alice" {
			t.Errorf("expected name to survive round trip, got %v", got.Properties["name"])
		}
	})

	t.Run("output is pretty-printed with two-space indent", func(t *testing.T) {
		n := &model.Node{ID: "u1", Type: "user", Properties: model.Properties{}}
		data, err := EncodeNode(n)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if !strings.Contains(string(data), "\n  \"id\"") {
			t.Errorf("expected two-space indented field, got:\n%s", data)
		}
	})

	t.Run("missing type is rejected", func(t *testing.T) {
		_, err := DecodeNode([]byte(`{"id":"u1","properties":{}}`))
		if err == nil {
			t.Fatal("expected error for missing type")
		}
	})

	t.Run("unknown extra fields are tolerated", func(t *testing.T) {
		got, err := DecodeNode([]byte(`{"id":"u1","type":"user","properties":{},"futureField":"x"}`))
		if err != nil {
			t.Fatalf("expected forward-compatible decode, got error: %v", err)
		}
		if got.ID != "u1" {
			t.Errorf("expected id u1, got %q", got.ID)
		}
	})
}

func TestRelationshipRoundTrip(t *testing.T) {
	r := &model.Relationship{
		From: "u1", To: "u2", Type: "FOLLOWS",
		Properties: model.Properties{"since": float64(2020)},
		Version:    1,
	}

	data, err := EncodeRelationship(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRelationship(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.From != r.From || got.To != r.To || got.Type != r.Type {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, r)
	}

	t.Run("missing endpoint is rejected", func(t *testing.T) {
		_, err := DecodeRelationship([]byte(`{"type":"FOLLOWS","to":"u2"}`))
		if err == nil {
			t.Fatal("expected error for missing from")
		}
	})
}
