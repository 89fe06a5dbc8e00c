// Package forms builds bindable input forms for registered models: one field
// per edit property, widgets chosen by property kind, validation that
// enforces type coercion, choice membership and upload constraints.
package forms

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Choice is one selectable option of a select widget.
type Choice struct {
	Value string
	Label string
}

// Widget renders one form input.
type Widget interface {
	Render(name string, value any) template.HTML
}

func attr(s string) string {
	return template.HTMLEscapeString(s)
}

// TextInput is the default single-line input.
type TextInput struct {
	InputType string
	Class     string
	Size      string
}

func (w *TextInput) Render(name string, value any) template.HTML {
	inputType := w.InputType
	if inputType == "" {
		inputType = "text"
	}
	class := w.Class
	if class == "" {
		class = "adminTextInput"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<input type="%s" name="%s" value="%s" class="%s"`,
		attr(inputType), attr(name), attr(textValue(value)), attr(class))
	if w.Size != "" {
		fmt.Fprintf(&b, ` size="%s"`, attr(w.Size))
	}
	b.WriteString(" />")
	return template.HTML(b.String())
}

// Textarea is the multi-line input used for text properties.
type Textarea struct{}

func (w *Textarea) Render(name string, value any) template.HTML {
	return template.HTML(fmt.Sprintf(
		`<textarea name="%s" rows="15" cols="40" class="adminTextarea">%s</textarea>`,
		attr(name), template.HTMLEscapeString(textValue(value))))
}

// CheckboxInput renders boolean properties.
type CheckboxInput struct{}

func (w *CheckboxInput) Render(name string, value any) template.HTML {
	checked := ""
	if isTruthy(value) {
		checked = " checked"
	}
	return template.HTML(fmt.Sprintf(`<input type="checkbox" name="%s"%s />`, attr(name), checked))
}

// DateInput renders date properties.
type DateInput struct{}

func (w *DateInput) Render(name string, value any) template.HTML {
	return (&TextInput{Class: "vDateField", Size: "10"}).Render(name, formatTemporal(value, dateLayout))
}

// TimeInput renders time-of-day properties.
type TimeInput struct{}

func (w *TimeInput) Render(name string, value any) template.HTML {
	return (&TextInput{Class: "vTimeField", Size: "8"}).Render(name, formatTemporal(value, timeLayout))
}

// SplitDateTime renders a datetime property as separate date and time
// inputs. The bound values are combined by SplitDateTimeField.
type SplitDateTime struct{}

func (w *SplitDateTime) Render(name string, value any) template.HTML {
	var datePart, timePart any
	switch v := value.(type) {
	case time.Time:
		datePart, timePart = v.Format(dateLayout), v.Format(timeLayout)
	case [2]string:
		datePart, timePart = v[0], v[1]
	}
	date := (&DateInput{}).Render(name+"_date", datePart)
	clock := (&TimeInput{}).Render(name+"_time", timePart)
	return template.HTML(fmt.Sprintf(`<p class="datetime">Date: %s<br />Time: %s</p>`, date, clock))
}

// Select renders reference properties as a dropdown over the referenced
// model's records, with an optional same-page link for creating a new one.
type Select struct {
	Choices   []Choice
	AddNewURL string
}

func (w *Select) Render(name string, value any) template.HTML {
	selected := textValue(value)
	var b strings.Builder
	fmt.Fprintf(&b, `<select name="%s">`, attr(name))
	b.WriteString(`<option value="">---------</option>`)
	for _, c := range w.Choices {
		marker := ""
		if c.Value == selected && selected != "" {
			marker = " selected"
		}
		fmt.Fprintf(&b, `<option value="%s"%s>%s</option>`,
			attr(c.Value), marker, template.HTMLEscapeString(c.Label))
	}
	b.WriteString("</select>")
	if w.AddNewURL != "" {
		fmt.Fprintf(&b, "\n"+`<a href="%s" target="_blank">Add new</a>`, attr(w.AddNewURL))
	}
	return template.HTML(b.String())
}

// SelectMultiple renders string-list and many-to-many properties.
type SelectMultiple struct {
	Choices []Choice
}

func (w *SelectMultiple) Render(name string, value any) template.HTML {
	selected := make(map[string]bool)
	switch v := value.(type) {
	case []string:
		for _, item := range v {
			selected[item] = true
		}
	case string:
		if v != "" {
			selected[v] = true
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<select name="%s" multiple size="6">`, attr(name))
	for _, c := range w.Choices {
		marker := ""
		if selected[c.Value] {
			marker = " selected"
		}
		fmt.Fprintf(&b, `<option value="%s"%s>%s</option>`,
			attr(c.Value), marker, template.HTMLEscapeString(c.Label))
	}
	b.WriteString("</select>")
	return template.HTML(b.String())
}

// FileInput renders blob properties and, when the record already carries an
// upload, a download link for it.
type FileInput struct {
	DownloadURL string
	FileName    string
}

func (w *FileInput) Render(name string, value any) template.HTML {
	var b strings.Builder
	if w.DownloadURL != "" {
		fmt.Fprintf(&b, `<a href="%s">File uploaded: %s</a>&nbsp;`,
			attr(w.DownloadURL), template.HTMLEscapeString(w.FileName))
	}
	fmt.Fprintf(&b, `<input type="file" name="%s" />`, attr(name))
	return template.HTML(b.String())
}

func textValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func formatTemporal(value any, layout string) string {
	if t, ok := value.(time.Time); ok {
		return t.Format(layout)
	}
	return textValue(value)
}

func isTruthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "on" || v == "true" || v == "1"
	default:
		return false
	}
}
