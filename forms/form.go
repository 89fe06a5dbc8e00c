package forms

import (
	"context"
	"html/template"

	"github.com/pkg/errors"

	"github.com/darvin/datastore-admin/datastore"
	"github.com/darvin/datastore-admin/schema"
)

// DefaultMaxUploadSize bounds file uploads when no limit is configured.
const DefaultMaxUploadSize = 1 << 20

// Env supplies the per-request context a form needs from its embedder:
// live reference choices and the admin URLs woven into widgets.
type Env interface {
	ReferenceChoices(ctx context.Context, kind string) ([]Choice, error)
	HasReference(ctx context.Context, kind, key string) bool
	AddNewURL(kind string) string
	BlobDownloadURL(modelKind, field, key string) string
}

// Options configure form construction.
type Options struct {
	MaxUploadSize int64
}

type fieldFactory func(ctx context.Context, env Env, instance *datastore.Entity) (Field, error)

// Builder produces a bindable form per request for one model's edit fields.
// The property-kind to field/widget dispatch is resolved here, once, at
// registration time.
type Builder struct {
	model     *schema.Model
	factories []fieldFactory
	enctype   string
}

// NewBuilder resolves the given edit field names against the model and
// prepares a field factory for each.
func NewBuilder(model *schema.Model, editFields []string, opts Options) (*Builder, error) {
	maxUpload := opts.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	b := &Builder{model: model}
	for _, name := range editFields {
		prop, ok := model.Property(name)
		if !ok {
			return nil, errors.Errorf("forms: model %s has no property %s", model.Kind, name)
		}
		factory, multipart := factoryFor(model, prop, maxUpload)
		b.factories = append(b.factories, factory)
		if multipart {
			b.enctype = "multipart/form-data"
		}
	}
	return b, nil
}

// factoryFor maps a property kind to its field constructor. First match
// wins, scalars last.
func factoryFor(model *schema.Model, prop schema.Property, maxUpload int64) (fieldFactory, bool) {
	base := baseField{name: prop.Name, label: prop.DisplayLabel(), required: prop.Required}
	switch prop.Kind {
	case schema.Reference:
		return func(ctx context.Context, env Env, instance *datastore.Entity) (Field, error) {
			choices, err := env.ReferenceChoices(ctx, prop.ReferenceKind)
			if err != nil {
				return nil, err
			}
			f := &ReferenceField{baseField: base, ReferenceKind: prop.ReferenceKind, exists: env.HasReference}
			f.widget = &Select{Choices: choices, AddNewURL: env.AddNewURL(prop.ReferenceKind)}
			return f, nil
		}, false
	case schema.ManyToMany:
		return func(ctx context.Context, env Env, instance *datastore.Entity) (Field, error) {
			choices, err := env.ReferenceChoices(ctx, prop.ReferenceKind)
			if err != nil {
				return nil, err
			}
			f := &ReferenceMultipleField{baseField: base, ReferenceKind: prop.ReferenceKind}
			f.widget = &SelectMultiple{Choices: choices}
			return f, nil
		}, false
	case schema.Blob:
		return func(ctx context.Context, env Env, instance *datastore.Entity) (Field, error) {
			widget := &FileInput{}
			if instance != nil {
				if stored, ok := instance.Props[prop.Name].([]byte); ok && len(stored) > 0 {
					widget.DownloadURL = env.BlobDownloadURL(model.Kind, prop.Name, instance.Key)
					if meta, ok := schema.DecodeBlobMeta(*instance, prop.Name); ok {
						widget.FileName = meta.FileName
					}
				}
			}
			f := &FileField{baseField: base, MaxSize: maxUpload}
			f.widget = widget
			return f, nil
		}, true
	case schema.Date:
		return staticField(&DateField{baseField: withWidget(base, &DateInput{})}), false
	case schema.Time:
		return staticField(&TimeField{baseField: withWidget(base, &TimeInput{})}), false
	case schema.DateTime:
		return staticField(&SplitDateTimeField{baseField: withWidget(base, &SplitDateTime{})}), false
	case schema.StringList:
		choices := make([]Choice, 0, len(prop.Choices))
		for _, c := range prop.Choices {
			choices = append(choices, Choice{Value: c, Label: c})
		}
		f := &MultipleChoiceField{baseField: withWidget(base, &SelectMultiple{Choices: choices}), Property: prop}
		return staticField(f), false
	case schema.String:
		if len(prop.Choices) > 0 {
			choices := make([]Choice, 0, len(prop.Choices))
			for _, c := range prop.Choices {
				choices = append(choices, Choice{Value: c, Label: c})
			}
			f := &ChoiceField{baseField: withWidget(base, &Select{Choices: choices}), Property: prop}
			return staticField(f), false
		}
		return staticField(&StringField{baseField: withWidget(base, &TextInput{})}), false
	case schema.Integer:
		return staticField(&IntegerField{baseField: withWidget(base, &TextInput{})}), false
	case schema.Float:
		return staticField(&FloatField{baseField: withWidget(base, &TextInput{})}), false
	case schema.Boolean:
		return staticField(&BooleanField{baseField: withWidget(base, &CheckboxInput{})}), false
	case schema.Text:
		return staticField(&StringField{baseField: withWidget(base, &Textarea{})}), false
	default:
		return staticField(&StringField{baseField: withWidget(base, &TextInput{})}), false
	}
}

func withWidget(base baseField, w Widget) baseField {
	base.widget = w
	return base
}

func staticField(f Field) fieldFactory {
	return func(ctx context.Context, env Env, instance *datastore.Entity) (Field, error) {
		return f, nil
	}
}

// Form builds the per-request form, instantiating every field with live
// reference choices. instance is nil for the create case.
func (b *Builder) Form(ctx context.Context, env Env, instance *datastore.Entity) (*Form, error) {
	form := &Form{
		model:    b.model,
		instance: instance,
		Enctype:  b.enctype,
	}
	for _, factory := range b.factories {
		field, err := factory(ctx, env, instance)
		if err != nil {
			return nil, err
		}
		form.Fields = append(form.Fields, field)
	}
	return form, nil
}

// Form is one request's bindable input form.
type Form struct {
	Fields  []Field
	Enctype string

	model    *schema.Model
	instance *datastore.Entity
	data     Data
	bound    bool
	cleaned  map[string]any
	errs     map[string]error
}

// Bind validates the submitted data against every field and reports whether
// the whole form is valid. Entered values are retained for re-rendering.
func (f *Form) Bind(ctx context.Context, d Data) bool {
	f.data = d
	f.bound = true
	f.cleaned = make(map[string]any, len(f.Fields))
	f.errs = make(map[string]error)
	for _, field := range f.Fields {
		var existing any
		if f.instance != nil {
			existing = f.instance.Props[field.Name()]
		}
		value, err := field.Clean(ctx, d, existing)
		if err != nil {
			f.errs[field.Name()] = err
			continue
		}
		f.cleaned[field.Name()] = value
	}
	return len(f.errs) == 0
}

// IsValid reports whether the last Bind succeeded.
func (f *Form) IsValid() bool {
	return f.bound && len(f.errs) == 0
}

// FieldError returns the validation error for a field, if any.
func (f *Form) FieldError(name string) error {
	return f.errs[name]
}

// CleanedValue returns a field's typed value after a successful Bind.
func (f *Form) CleanedValue(name string) any {
	return f.cleaned[name]
}

// RenderWidget renders one field with the value appropriate for the request
// state: the submitted raw value when bound, the instance's stored value
// when editing, empty otherwise.
func (f *Form) RenderWidget(field Field) template.HTML {
	var value any
	switch {
	case f.bound:
		value = field.Raw(f.data)
	case f.instance != nil:
		value = f.instance.Props[field.Name()]
	}
	return field.Widget().Render(field.Name(), value)
}

// Save persists the cleaned values: it mutates and re-puts the bound
// instance when editing, otherwise constructs a new record. Blob metadata
// side-fields are written only for uploads bound this request, so editing
// other fields leaves a stored blob and its metadata untouched.
func (f *Form) Save(ctx context.Context, store datastore.Store) (datastore.Entity, error) {
	if !f.IsValid() {
		return datastore.Entity{}, errors.New("forms: cannot save an invalid form")
	}
	var entity datastore.Entity
	if f.instance != nil {
		entity = f.instance.Clone()
	} else {
		entity = datastore.Entity{Kind: f.model.Kind, Props: make(map[string]any)}
	}
	if entity.Props == nil {
		entity.Props = make(map[string]any)
	}
	for _, field := range f.Fields {
		value, ok := f.cleaned[field.Name()]
		if !ok {
			continue
		}
		if upload, isUpload := value.(*Upload); isUpload {
			raw, err := schema.EncodeBlobMeta(schema.BlobMeta{
				ContentType: upload.ContentType,
				FileName:    upload.FileName,
				FileSize:    upload.Size,
			})
			if err != nil {
				return datastore.Entity{}, err
			}
			entity.Props[field.Name()] = upload.Content
			entity.Props[schema.BlobMetaProperty(field.Name())] = raw
			continue
		}
		entity.Props[field.Name()] = value
	}
	return store.Put(ctx, entity)
}
