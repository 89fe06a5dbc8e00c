package forms

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/darvin/datastore-admin/schema"
)

func values(pairs ...string) Data {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Add(pairs[i], pairs[i+1])
	}
	return Data{Values: v}
}

func uploadData(t *testing.T, field, fileName string, content []byte) Data {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	files := make(map[string]*multipart.FileHeader)
	for name, headers := range req.MultipartForm.File {
		files[name] = headers[0]
	}
	return Data{Values: req.PostForm, Files: files}
}

func TestStringFieldRequired(t *testing.T) {
	f := &StringField{baseField: baseField{name: "title", required: true}}
	_, err := f.Clean(context.Background(), values(), nil)
	require.ErrorIs(t, err, ErrRequired)

	value, err := f.Clean(context.Background(), values("title", "hello"), nil)
	require.NoError(t, err)
	require.Equal(t, "hello", value)
}

func TestIntegerField(t *testing.T) {
	f := &IntegerField{baseField: baseField{name: "views"}}

	value, err := f.Clean(context.Background(), values("views", " 42 "), nil)
	require.NoError(t, err)
	require.Equal(t, int64(42), value)

	_, err = f.Clean(context.Background(), values("views", "4.2"), nil)
	require.Error(t, err)

	value, err = f.Clean(context.Background(), values(), nil)
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestFloatField(t *testing.T) {
	f := &FloatField{baseField: baseField{name: "rating"}}
	value, err := f.Clean(context.Background(), values("rating", "4.5"), nil)
	require.NoError(t, err)
	require.Equal(t, 4.5, value)

	_, err = f.Clean(context.Background(), values("rating", "lots"), nil)
	require.Error(t, err)
}

func TestBooleanField(t *testing.T) {
	f := &BooleanField{baseField: baseField{name: "active"}}

	value, err := f.Clean(context.Background(), values("active", "on"), nil)
	require.NoError(t, err)
	require.Equal(t, true, value)

	value, err = f.Clean(context.Background(), values(), nil)
	require.NoError(t, err)
	require.Equal(t, false, value)
}

func TestDateAndTimeFields(t *testing.T) {
	df := &DateField{baseField: baseField{name: "joined"}}
	value, err := df.Clean(context.Background(), values("joined", "2026-03-01"), nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), value)

	_, err = df.Clean(context.Background(), values("joined", "01/03/2026"), nil)
	require.Error(t, err)

	tf := &TimeField{baseField: baseField{name: "opens"}}
	value, err = tf.Clean(context.Background(), values("opens", "09:30"), nil)
	require.NoError(t, err)
	require.Equal(t, 9, value.(time.Time).Hour())

	value, err = tf.Clean(context.Background(), values("opens", "09:30:15"), nil)
	require.NoError(t, err)
	require.Equal(t, 15, value.(time.Time).Second())
}

func TestSplitDateTimeField(t *testing.T) {
	f := &SplitDateTimeField{baseField: baseField{name: "published"}}

	value, err := f.Clean(context.Background(), values(
		"published_date", "2026-03-01",
		"published_time", "09:30",
	), nil)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), value)

	// A lone half never yields a partial timestamp.
	value, err = f.Clean(context.Background(), values("published_date", "2026-03-01"), nil)
	require.NoError(t, err)
	require.Nil(t, value)

	f.required = true
	_, err = f.Clean(context.Background(), values("published_time", "09:30"), nil)
	require.ErrorIs(t, err, ErrRequired)
	_, err = f.Clean(context.Background(), values(), nil)
	require.ErrorIs(t, err, ErrRequired)
}

func TestFileFieldUpload(t *testing.T) {
	f := &FileField{baseField: baseField{name: "cover"}, MaxSize: 8}

	value, err := f.Clean(context.Background(), uploadData(t, "cover", "c.png", []byte("12345678")), nil)
	require.NoError(t, err)
	upload := value.(*Upload)
	require.Equal(t, "c.png", upload.FileName)
	require.Equal(t, int64(8), upload.Size)
	require.Equal(t, []byte("12345678"), upload.Content)
}

func TestFileFieldRejectsOversizeAndEmpty(t *testing.T) {
	f := &FileField{baseField: baseField{name: "cover"}, MaxSize: 8}

	_, err := f.Clean(context.Background(), uploadData(t, "cover", "c.png", []byte("123456789")), nil)
	require.ErrorIs(t, err, ErrUploadTooLarge)

	_, err = f.Clean(context.Background(), uploadData(t, "cover", "c.png", nil), nil)
	require.ErrorIs(t, err, ErrUploadEmpty)
}

func TestFileFieldKeepsStoredValue(t *testing.T) {
	f := &FileField{baseField: baseField{name: "cover"}, MaxSize: 8}

	value, err := f.Clean(context.Background(), values(), []byte{0x1, 0x2})
	require.NoError(t, err)
	require.Equal(t, []byte{0x1, 0x2}, value)

	value, err = f.Clean(context.Background(), values(), nil)
	require.NoError(t, err)
	require.Nil(t, value)

	f.required = true
	_, err = f.Clean(context.Background(), values(), nil)
	require.ErrorIs(t, err, ErrUploadMissing)
}

func TestChoiceField(t *testing.T) {
	prop := schema.Property{Name: "category", Choices: []string{"news", "essay"}}
	f := &ChoiceField{baseField: baseField{name: "category"}, Property: prop}

	value, err := f.Clean(context.Background(), values("category", "news"), nil)
	require.NoError(t, err)
	require.Equal(t, "news", value)

	_, err = f.Clean(context.Background(), values("category", "rant"), nil)
	require.ErrorIs(t, err, ErrInvalidChoice)
}

func TestMultipleChoiceField(t *testing.T) {
	prop := schema.Property{Name: "tags", Kind: schema.StringList, Choices: []string{"go", "web"}}
	f := &MultipleChoiceField{baseField: baseField{name: "tags"}, Property: prop}

	value, err := f.Clean(context.Background(), values("tags", "go", "tags", "web"), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"go", "web"}, value)

	_, err = f.Clean(context.Background(), values("tags", "rust"), nil)
	require.ErrorIs(t, err, ErrInvalidChoice)
}

func TestReferenceField(t *testing.T) {
	known := map[string]bool{"a1": true}
	f := &ReferenceField{
		baseField:     baseField{name: "author"},
		ReferenceKind: "author",
		exists: func(ctx context.Context, kind, key string) bool {
			return kind == "author" && known[key]
		},
	}

	value, err := f.Clean(context.Background(), values("author", "a1"), nil)
	require.NoError(t, err)
	require.Equal(t, "a1", value)

	_, err = f.Clean(context.Background(), values("author", "ghost"), nil)
	require.ErrorIs(t, err, ErrInvalidChoice)
}

func TestNormalizeReferenceKeys(t *testing.T) {
	keys, err := NormalizeReferenceKeys([]any{"a", "b"}, "author")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, keys)

	_, err = NormalizeReferenceKeys([]any{42}, "author")
	require.ErrorIs(t, err, ErrBadReference)
}
