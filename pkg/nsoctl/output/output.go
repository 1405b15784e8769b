package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatWide     Format = "wide"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTemplate Format = "template"
)

// ParseFormat splits an -o value. "template=<text>" yields FormatTemplate and
// the template text.
func ParseFormat(value string) (Format, string, error) {
	name, tmpl, hasTemplate := strings.Cut(value, "=")
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case FormatTable, FormatWide, FormatJSON, FormatYAML:
		if hasTemplate {
			return "", "", fmt.Errorf("output format %s does not take an argument", format)
		}
		return format, "", nil
	case FormatTemplate:
		if strings.TrimSpace(tmpl) == "" {
			return "", "", errors.New("template output requires template=<text>")
		}
		return format, tmpl, nil
	case "":
		return FormatTable, "", nil
	default:
		return "", "", fmt.Errorf("unknown output format: %s", name)
	}
}

func WriteObject(w io.Writer, format Format, obj any) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatTable, FormatWide:
		return fmt.Errorf("%s format requires a specific formatter", format)
	case FormatTemplate:
		return errors.New("template format requires template text")
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// WriteTemplate renders obj through a text/template with the sprig function
// map. obj is round-tripped through JSON first so templates address fields by
// their JSON names.
func WriteTemplate(w io.Writer, text string, obj any) error {
	tmpl, err := template.New("output").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	if err := tmpl.Execute(w, generic); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}
	if !strings.HasSuffix(text, "\n") {
		_, err = fmt.Fprintln(w)
	}
	return err
}
