package catalog

import (
	"testing"
)

type sampleA struct {
	X int
	Y string
}

type sampleB struct {
	Z float64
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(0x01, "A", &sampleA{}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(0x01, "B", &sampleB{}); err == nil {
		t.Fatalf("expected an error registering a duplicate id")
	}
}

func TestEntriesSortedByID(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(0x05, "B", &sampleB{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(0x01, "A", &sampleA{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != 0x01 || entries[1].ID != 0x05 {
		t.Fatalf("entries not sorted by id: %+v", entries)
	}
}

func TestSchemaRejectsEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Schema(); err == nil {
		t.Fatalf("expected Schema on an empty registry to error")
	}
}

func TestSchemaBuildsOneOfVariants(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(0x01, "A", &sampleA{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(0x02, "B", &sampleB{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	schema, err := r.Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if len(schema.OneOf) != 2 {
		t.Fatalf("got %d oneOf entries, want 2", len(schema.OneOf))
	}
	titles := map[string]bool{}
	for _, v := range schema.OneOf {
		titles[v.Title] = true
	}
	if !titles["A"] || !titles["B"] {
		t.Fatalf("expected titles A and B, got %v", titles)
	}
}
