// Package schema describes the models the admin interface reflects over:
// property kinds, per-property constraints and the display rules used when a
// record stands in for itself in lists and reference dropdowns.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/darvin/datastore-admin/datastore"
)

// Kind classifies a property's storage and display type.
type Kind int

const (
	String Kind = iota
	Text
	Integer
	Float
	Boolean
	Date
	Time
	DateTime
	Blob
	Reference
	StringList
	ManyToMany
)

var kindNames = map[Kind]string{
	String:     "string",
	Text:       "text",
	Integer:    "integer",
	Float:      "float",
	Boolean:    "boolean",
	Date:       "date",
	Time:       "time",
	DateTime:   "datetime",
	Blob:       "blob",
	Reference:  "reference",
	StringList: "stringlist",
	ManyToMany: "manytomany",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// References reports whether the kind points at records of another model.
func (k Kind) References() bool {
	return k == Reference || k == ManyToMany
}

// Property describes one model field.
type Property struct {
	Name     string
	Kind     Kind
	Label    string
	Required bool

	// Choices restricts StringList values to a fixed set.
	Choices []string

	// ReferenceKind names the referenced model. Set iff Kind references.
	ReferenceKind string
}

// DisplayLabel returns the configured label, falling back to a humanized
// form of the property name.
func (p Property) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	label := strings.ReplaceAll(p.Name, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// Model is a registered data model: a kind name plus its ordered properties.
type Model struct {
	Kind       string
	Properties []Property

	// DisplayProperty names the property used as the record's human-readable
	// label. Empty falls back to the record key.
	DisplayProperty string
}

// Validate checks the model definition once at registration time.
func (m *Model) Validate() error {
	if m.Kind == "" {
		return errors.New("schema: model kind must not be empty")
	}
	seen := make(map[string]bool, len(m.Properties))
	for _, p := range m.Properties {
		if p.Name == "" {
			return errors.Errorf("schema: model %s has a property without a name", m.Kind)
		}
		if seen[p.Name] {
			return errors.Errorf("schema: model %s declares property %s twice", m.Kind, p.Name)
		}
		seen[p.Name] = true
		if p.Kind.References() && p.ReferenceKind == "" {
			return errors.Errorf("schema: property %s.%s references no model", m.Kind, p.Name)
		}
		if !p.Kind.References() && p.ReferenceKind != "" {
			return errors.Errorf("schema: property %s.%s is not a reference but names model %s", m.Kind, p.Name, p.ReferenceKind)
		}
	}
	return nil
}

// Property resolves a property by name.
func (m *Model) Property(name string) (Property, bool) {
	for _, p := range m.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Display returns the entity's human-readable label.
func (m *Model) Display(e datastore.Entity) string {
	if m.DisplayProperty != "" {
		if value, ok := e.Props[m.DisplayProperty]; ok && value != nil {
			if s := fmt.Sprint(value); s != "" {
				return s
			}
		}
	}
	return e.Key
}

// ValidateChoices checks submitted StringList values against the property's
// configured choice set.
func ValidateChoices(p Property, values []string) error {
	if len(p.Choices) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(p.Choices))
	for _, c := range p.Choices {
		allowed[c] = true
	}
	for _, v := range values {
		if !allowed[v] {
			return errors.Errorf("schema: %q is not one of the available choices for %s", v, p.Name)
		}
	}
	return nil
}

// ResolveReference looks up a referenced record and returns its display
// label. A missing or malformed key yields ok=false; broken references are a
// recoverable condition, never an error that aborts a render.
func ResolveReference(ctx context.Context, store datastore.Store, model *Model, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	entity, err := store.Get(ctx, model.Kind, key)
	if err != nil {
		return "", false
	}
	return model.Display(entity), true
}
