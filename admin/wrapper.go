package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/darvin/datastore-admin/datastore"
	"github.com/darvin/datastore-admin/schema"
)

// PropertyWrapper is a snapshot of one field's metadata used uniformly by
// the list and edit views. The wrappers built at registration are immutable
// templates; every render path clones one before filling Value, because the
// same template serves every row of a page and every concurrent request.
type PropertyWrapper struct {
	Name          string
	Kind          schema.Kind
	Label         string
	ReferenceKind string

	// Value is the per-record display value, set on clones only.
	Value any

	// Meta carries upload metadata for blob properties, set on clones only.
	Meta *schema.BlobMeta
}

// Clone returns a fresh wrapper carrying the template metadata and no value.
func (w *PropertyWrapper) Clone() *PropertyWrapper {
	return &PropertyWrapper{
		Name:          w.Name,
		Kind:          w.Kind,
		Label:         w.Label,
		ReferenceKind: w.ReferenceKind,
	}
}

// Display formats the value for list and readonly rendering.
func (w *PropertyWrapper) Display() string {
	switch v := w.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(v, ", ")
	case time.Time:
		switch w.Kind {
		case schema.Date:
			return v.Format("2006-01-02")
		case schema.Time:
			return v.Format("15:04")
		default:
			return v.Format("2006-01-02 15:04")
		}
	default:
		return fmt.Sprint(v)
	}
}

// extractProperties resolves configured field names into wrapper templates.
// Reference kinds come resolved from the schema, so nothing is deferred to
// render time.
func extractProperties(model *schema.Model, names []string) ([]*PropertyWrapper, error) {
	wrappers := make([]*PropertyWrapper, 0, len(names))
	for _, name := range names {
		prop, ok := model.Property(name)
		if !ok {
			return nil, errors.Errorf("admin: model %s has no property %s", model.Kind, name)
		}
		wrappers = append(wrappers, &PropertyWrapper{
			Name:          prop.Name,
			Kind:          prop.Kind,
			Label:         prop.DisplayLabel(),
			ReferenceKind: prop.ReferenceKind,
		})
	}
	return wrappers, nil
}

// attachValues clones the wrapper templates and fills per-record values.
// A broken reference degrades to an empty value for that cell; it never
// aborts the surrounding page.
func (a *Admin) attachValues(ctx context.Context, templates []*PropertyWrapper, item datastore.Entity) []*PropertyWrapper {
	wrappers := make([]*PropertyWrapper, 0, len(templates))
	for _, tpl := range templates {
		w := tpl.Clone()
		w.Value = a.propertyValue(ctx, w, item)
		if w.Kind == schema.Blob {
			if meta, ok := schema.DecodeBlobMeta(item, w.Name); ok {
				w.Meta = meta
			}
		}
		wrappers = append(wrappers, w)
	}
	return wrappers
}

func (a *Admin) propertyValue(ctx context.Context, w *PropertyWrapper, item datastore.Entity) any {
	value := item.Props[w.Name]
	switch w.Kind {
	case schema.Blob:
		// Never haul raw bytes into a list row; a has-content flag is
		// all the view needs until an explicit download.
		raw, _ := value.([]byte)
		return len(raw) > 0
	case schema.Reference:
		key, _ := value.(string)
		if key == "" {
			return nil
		}
		display, ok := a.resolveDisplay(ctx, w.ReferenceKind, key)
		if !ok {
			a.logger.Warn("broken reference while attaching list fields",
				"model", item.Kind, "property", w.Name, "key", key)
			return nil
		}
		return display
	case schema.ManyToMany:
		keys, _ := value.([]string)
		if len(keys) == 0 {
			return nil
		}
		labels := make([]string, 0, len(keys))
		for _, key := range keys {
			display, ok := a.resolveDisplay(ctx, w.ReferenceKind, key)
			if !ok {
				// A missing member renders as an empty placeholder
				// rather than discarding the whole join.
				display = ""
			}
			labels = append(labels, display)
		}
		return strings.Join(labels, ", ")
	default:
		return value
	}
}

func (a *Admin) resolveDisplay(ctx context.Context, kind, key string) (string, bool) {
	ma, err := a.registry.get(kind)
	if err != nil {
		return "", false
	}
	return schema.ResolveReference(ctx, a.store, ma.model, key)
}
