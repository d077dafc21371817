// Package templates turns a verified payload into the HTML body of the
// relayed email.
package templates

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/qolzam/telar/apps/relay/internal/types"
	"github.com/qolzam/telar/apps/relay/relay/models"
)

//go:embed email.html
var emailTemplate string

// EmailData is the template input.
type EmailData struct {
	AppName     string
	Subject     string
	Text        string
	SubmittedAt string
	Fields      []models.Field
}

// Renderer renders the relay email.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"lines": splitLines,
	}).Parse(emailTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template. Values are HTML escaped.
func (r *Renderer) Render(data EmailData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}

// BuildRecord orders payload values for display: summaryFields first, in
// the given order and shown as N/A when absent, then the remaining keys
// sorted.
func BuildRecord(payload map[string]any, summaryFields []string) (models.Record, error) {
	record := models.Record{Fields: make([]models.Field, 0, len(payload)+len(summaryFields))}
	seen := make(map[string]bool, len(summaryFields))

	for _, key := range summaryFields {
		if seen[key] {
			continue
		}
		seen[key] = true

		value := types.NotAvailable
		if v, ok := payload[key]; ok {
			formatted, err := FormatValue(v)
			if err != nil {
				return models.Record{}, fmt.Errorf("field %q: %w", key, err)
			}
			value = formatted
		}
		record.Fields = append(record.Fields, models.Field{Key: key, Label: Humanize(key), Value: value})
	}

	rest := make([]string, 0, len(payload))
	for key := range payload {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)

	for _, key := range rest {
		formatted, err := FormatValue(payload[key])
		if err != nil {
			return models.Record{}, fmt.Errorf("field %q: %w", key, err)
		}
		record.Fields = append(record.Fields, models.Field{Key: key, Label: Humanize(key), Value: formatted})
	}

	return record, nil
}

// FormatValue renders one payload value as display text.
func FormatValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return types.NotAvailable, nil
	case bool:
		if val {
			return types.Yes, nil
		}
		return types.No, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return types.NotAvailable, nil
		}
		return val, nil
	case json.Number:
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case map[string]any, []any:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	default:
		return fmt.Sprint(val), nil
	}
}

// Humanize turns a payload key such as "firstName" or "company_size" into
// a label like "First Name" or "Company Size".
func Humanize(key string) string {
	var b strings.Builder
	runes := []rune(key)
	upperNext := true

	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			if b.Len() > 0 && !upperNext {
				b.WriteRune(' ')
			}
			upperNext = true
			continue
		case unicode.IsUpper(r) && i > 0 && !upperNext && !unicode.IsUpper(runes[i-1]):
			b.WriteRune(' ')
		}

		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return key
	}
	return b.String()
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
