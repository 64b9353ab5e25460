// Package catalog reflects the registered message registry into a
// JSON-Schema document, directly grounded on the teacher's
// effects/catalog/schema.go + schema_generate.go pattern (a Reflector
// over Go types, oneOf'd together), repointed at proto.Message payloads
// instead of effect catalog entries. The wire format itself stays the
// spec's bit-packed codec; this schema exists purely for client-side
// codegen and documentation.
package catalog

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
)

// Entry names one registered message kind for schema/documentation
// purposes: its wire id, a human name, and the Go type carrying its
// fields (used only for reflection, never for the wire encoding).
type Entry struct {
	ID   byte
	Name string
	Type reflect.Type
}

// Registry holds every message kind an application wants documented.
// It has no bearing on wire behavior; dispatch.Dispatcher.Register is the
// thing that actually wires up handling.
type Registry struct {
	entries map[byte]Entry
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[byte]Entry)}
}

// Register records name/sample under id. sample should be a pointer to a
// zero-valued message struct; only its type is used. Registering the same
// id twice is an error, mirroring dispatch.Dispatcher.Register.
func (r *Registry) Register(id byte, name string, sample any) error {
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("catalog: id 0x%02x already registered", id)
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.entries[id] = Entry{ID: id, Name: name, Type: t}
	return nil
}

// Entries returns every registered entry, sorted by id for stable output.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Schema reflects every registered entry's Go type into a JSON-Schema
// document: one definition per message, combined with oneOf, each tagged
// with its wire id.
func (r *Registry) Schema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}

	entries := r.Entries()
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: no messages registered")
	}

	variants := make([]*jsonschema.Schema, 0, len(entries))
	for _, e := range entries {
		schema := reflector.ReflectFromType(e.Type)
		if schema == nil {
			return nil, fmt.Errorf("catalog: failed to reflect type for id 0x%02x (%s)", e.ID, e.Name)
		}
		schema.Version = ""
		schema.Title = e.Name
		schema.Description = fmt.Sprintf("Wire message id 0x%02x", e.ID)
		variants = append(variants, schema)
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "bitwire message registry",
		Description: "JSON-Schema view of every registered wire message's Go fields; the wire encoding itself is the bit-packed codec in package bitcodec, not JSON.",
		OneOf:       variants,
	}
	return root, nil
}
