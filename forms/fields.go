package forms

import (
	"context"
	"io"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/darvin/datastore-admin/datastore"
	"github.com/darvin/datastore-admin/schema"
)

// Validation sentinels. Handlers and tests match them with errors.Is; the
// wrapped messages are what the re-rendered form shows next to the field.
var (
	ErrRequired       = errors.New("forms: this field is required")
	ErrInvalidChoice  = errors.New("forms: not one of the available choices")
	ErrUploadTooLarge = errors.New("forms: file size too big")
	ErrUploadEmpty    = errors.New("forms: the submitted file is empty")
	ErrUploadMissing  = errors.New("forms: no file was submitted")
	ErrBadReference   = errors.New("forms: value must be a key or a referenced record")
)

// Data carries one request's submitted form values and file uploads.
type Data struct {
	Values url.Values
	Files  map[string]*multipart.FileHeader
}

// Value returns the first submitted value for a name.
func (d Data) Value(name string) string {
	if d.Values == nil {
		return ""
	}
	return d.Values.Get(name)
}

// List returns every submitted value for a name, dropping empty entries.
func (d Data) List(name string) []string {
	if d.Values == nil {
		return nil
	}
	var out []string
	for _, v := range d.Values[name] {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// File returns the uploaded file for a name, if any.
func (d Data) File(name string) *multipart.FileHeader {
	if d.Files == nil {
		return nil
	}
	return d.Files[name]
}

// Upload is the cleaned value of a file field when a non-empty upload was
// bound this request. Save persists both the content and a metadata
// side-field for it; a retained previous value never produces an Upload.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     []byte
}

// Field is one bindable form input: it knows its widget and how to coerce
// and validate the submitted raw value.
type Field interface {
	Name() string
	Label() string
	Required() bool
	Widget() Widget

	// Clean validates the submitted data and returns the typed value.
	// existing is the instance's current property value in the edit case.
	Clean(ctx context.Context, d Data, existing any) (any, error)

	// Raw extracts the renderable submitted value so a failed bind
	// re-renders with what the user entered.
	Raw(d Data) any
}

type baseField struct {
	name     string
	label    string
	required bool
	widget   Widget
}

func (f *baseField) Name() string   { return f.name }
func (f *baseField) Label() string  { return f.label }
func (f *baseField) Required() bool { return f.required }
func (f *baseField) Widget() Widget { return f.widget }
func (f *baseField) Raw(d Data) any { return d.Value(f.name) }

// StringField covers string and text properties. Values are Unicode text.
type StringField struct {
	baseField
}

func (f *StringField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	value := d.Value(f.name)
	if value == "" && f.required {
		return nil, ErrRequired
	}
	return value, nil
}

// IntegerField coerces whole numbers.
type IntegerField struct {
	baseField
}

func (f *IntegerField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	raw := strings.TrimSpace(d.Value(f.name))
	if raw == "" {
		if f.required {
			return nil, ErrRequired
		}
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.Errorf("forms: enter a whole number, got %q", raw)
	}
	return value, nil
}

// FloatField coerces real numbers.
type FloatField struct {
	baseField
}

func (f *FloatField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	raw := strings.TrimSpace(d.Value(f.name))
	if raw == "" {
		if f.required {
			return nil, ErrRequired
		}
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.Errorf("forms: enter a number, got %q", raw)
	}
	return value, nil
}

// BooleanField reads a checkbox: present means true.
type BooleanField struct {
	baseField
}

func (f *BooleanField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	return isTruthy(d.Value(f.name)), nil
}

// DateField parses calendar dates.
type DateField struct {
	baseField
}

func (f *DateField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	raw := strings.TrimSpace(d.Value(f.name))
	if raw == "" {
		if f.required {
			return nil, ErrRequired
		}
		return nil, nil
	}
	value, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errors.Errorf("forms: enter a valid date (YYYY-MM-DD), got %q", raw)
	}
	return value, nil
}

// TimeField parses times of day.
type TimeField struct {
	baseField
}

func (f *TimeField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	raw := strings.TrimSpace(d.Value(f.name))
	if raw == "" {
		if f.required {
			return nil, ErrRequired
		}
		return nil, nil
	}
	value, err := parseClock(raw)
	if err != nil {
		return nil, errors.Errorf("forms: enter a valid time (HH:MM), got %q", raw)
	}
	return value, nil
}

func parseClock(raw string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse("15:04:05", raw)
}

// SplitDateTimeField binds a datetime property from separate date and time
// inputs. The halves are combined into one timestamp only when both are
// present; a lone half yields nil, never a partial timestamp.
type SplitDateTimeField struct {
	baseField
}

func (f *SplitDateTimeField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	dateRaw := strings.TrimSpace(d.Value(f.name + "_date"))
	timeRaw := strings.TrimSpace(d.Value(f.name + "_time"))
	if dateRaw == "" && timeRaw == "" {
		if f.required {
			return nil, ErrRequired
		}
		return nil, nil
	}
	if dateRaw == "" || timeRaw == "" {
		if f.required {
			return nil, ErrRequired
		}
		return nil, nil
	}
	datePart, err := time.Parse(dateLayout, dateRaw)
	if err != nil {
		return nil, errors.Errorf("forms: enter a valid date (YYYY-MM-DD), got %q", dateRaw)
	}
	timePart, err := parseClock(timeRaw)
	if err != nil {
		return nil, errors.Errorf("forms: enter a valid time (HH:MM), got %q", timeRaw)
	}
	return time.Date(
		datePart.Year(), datePart.Month(), datePart.Day(),
		timePart.Hour(), timePart.Minute(), timePart.Second(), 0, time.UTC,
	), nil
}

func (f *SplitDateTimeField) Raw(d Data) any {
	return [2]string{d.Value(f.name + "_date"), d.Value(f.name + "_time")}
}

// FileField binds blob uploads. The whole upload is read into memory first;
// MaxSize bounds that read.
type FileField struct {
	baseField
	MaxSize int64
}

func (f *FileField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	header := d.File(f.name)
	if header == nil {
		// No upload submitted: keep the stored value in the edit case.
		if stored, ok := existing.([]byte); ok && len(stored) > 0 {
			return stored, nil
		}
		if f.required {
			return nil, ErrUploadMissing
		}
		return nil, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, errors.Wrap(ErrUploadMissing, err.Error())
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, f.MaxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read upload failed")
	}
	if header.Filename == "" {
		return nil, ErrUploadMissing
	}
	if len(content) == 0 {
		return nil, ErrUploadEmpty
	}
	if int64(len(content)) > f.MaxSize {
		return nil, errors.Wrapf(ErrUploadTooLarge, "(%d bytes), max size: %d bytes", header.Size, f.MaxSize)
	}
	return &Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(content)),
		Content:     content,
	}, nil
}

// ChoiceField binds a string property constrained to a fixed choice set.
type ChoiceField struct {
	baseField
	Property schema.Property
}

func (f *ChoiceField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	value := d.Value(f.name)
	if value == "" {
		if f.required {
			return nil, ErrRequired
		}
		return "", nil
	}
	if err := schema.ValidateChoices(f.Property, []string{value}); err != nil {
		return nil, errors.Wrap(ErrInvalidChoice, err.Error())
	}
	return value, nil
}

// MultipleChoiceField binds string-list properties whose values must belong
// to a fixed choice set.
type MultipleChoiceField struct {
	baseField
	Property schema.Property
}

func (f *MultipleChoiceField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	values := d.List(f.name)
	if len(values) == 0 {
		if f.required {
			return nil, ErrRequired
		}
		return []string(nil), nil
	}
	if err := schema.ValidateChoices(f.Property, values); err != nil {
		return nil, errors.Wrap(ErrInvalidChoice, err.Error())
	}
	return values, nil
}

func (f *MultipleChoiceField) Raw(d Data) any { return d.List(f.name) }

// ReferenceField binds a single reference as the referenced record's key.
type ReferenceField struct {
	baseField
	ReferenceKind string
	exists        func(ctx context.Context, kind, key string) bool
}

func (f *ReferenceField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	key := d.Value(f.name)
	if key == "" {
		if f.required {
			return nil, ErrRequired
		}
		return nil, nil
	}
	if f.exists != nil && !f.exists(ctx, f.ReferenceKind, key) {
		return nil, errors.Wrapf(ErrInvalidChoice, "no %s with key %s", f.ReferenceKind, key)
	}
	return key, nil
}

// ReferenceMultipleField binds a many-to-many reference collection as a list
// of canonical keys.
type ReferenceMultipleField struct {
	baseField
	ReferenceKind string
}

func (f *ReferenceMultipleField) Clean(ctx context.Context, d Data, existing any) (any, error) {
	values := d.List(f.name)
	raw := make([]any, len(values))
	for i, v := range values {
		raw[i] = v
	}
	keys, err := NormalizeReferenceKeys(raw, f.ReferenceKind)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 && f.required {
		return nil, ErrRequired
	}
	return keys, nil
}

func (f *ReferenceMultipleField) Raw(d Data) any { return d.List(f.name) }

// NormalizeReferenceKeys converts a mixed collection of raw key strings and
// resolved entities into canonical keys. Anything else is a type error.
func NormalizeReferenceKeys(values []any, kind string) ([]string, error) {
	keys := make([]string, 0, len(values))
	for _, value := range values {
		switch v := value.(type) {
		case string:
			if v == "" {
				continue
			}
			keys = append(keys, v)
		case datastore.Entity:
			if v.Kind != kind {
				return nil, errors.Wrapf(ErrBadReference, "entity of kind %s where %s expected", v.Kind, kind)
			}
			keys = append(keys, v.Key)
		default:
			return nil, errors.Wrapf(ErrBadReference, "unsupported type %T", value)
		}
	}
	return keys, nil
}
