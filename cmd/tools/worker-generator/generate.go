// cmd/tools/worker-generator/generate.go
package main

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"investlink-workers/pkg/registry"
)

var ErrWorkerExists = errors.New("worker directory already exists")

// WorkerData is what the templates render from.
type WorkerData struct {
	Module      string
	Name        string
	PackageName string
	Dir         string
	TaskType    string
	Description string
	Timeout     string
	Retries     int
	Input       []Field
	Output      []Field
	Sentinels   []Sentinel
}

type Field struct {
	Name    string
	Type    string
	JSONTag string
	Comment string
}

// Sentinel is a package-level error whose text is a registered error code.
type Sentinel struct {
	Name string
	Code string
}

func NewWorkerData(a registry.Activity, module string) WorkerData {
	category := strings.ToLower(strings.TrimSpace(a.Category))
	if category == "" {
		category = "matching"
	}

	codes := a.ErrorCodes
	if len(codes) == 0 {
		codes = []string{"INVALID_INPUT"}
	}
	sentinels := make([]Sentinel, 0, len(codes))
	for _, code := range codes {
		sentinels = append(sentinels, Sentinel{Name: "Err" + camel(strings.ToLower(code), "_"), Code: code})
	}

	return WorkerData{
		Module:      module,
		Name:        a.DisplayName,
		PackageName: strings.ReplaceAll(a.ID, "-", ""),
		Dir:         filepath.Join(category, a.ID),
		TaskType:    a.TaskType,
		Description: a.Description,
		Timeout:     durationExpr(a.Timeout),
		Retries:     a.Retries,
		Input:       fieldsFromSchema(a.InputSchema),
		Output:      fieldsFromSchema(a.OutputSchema),
		Sentinels:   sentinels,
	}
}

// Generate renders every template into root/<category>/<id> and gofmts the
// Go sources. It returns the written paths.
func Generate(data WorkerData, root string, force bool) ([]string, error) {
	dir := filepath.Join(root, data.Dir)
	if _, err := os.Stat(dir); err == nil && !force {
		return nil, fmt.Errorf("%w: %s", ErrWorkerExists, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		content, err := render(name, data)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, content, 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func render(name string, data WorkerData) ([]byte, error) {
	tmpl, err := template.New(name).Parse(templates[name])
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	if !strings.HasSuffix(name, ".go") {
		return buf.Bytes(), nil
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}
	return formatted, nil
}

// fieldsFromSchema turns the properties of a JSON schema object into struct
// fields, sorted by property name.
func fieldsFromSchema(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		comment, _ := details["description"].(string)
		fields = append(fields, Field{
			Name:    fieldName(name),
			Type:    goType(details["type"]),
			JSONTag: fmt.Sprintf("`json:%q`", name),
			Comment: comment,
		})
	}
	return fields
}

func goType(jsonType interface{}) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

// fieldName exports a camelCase property name, keeping initialisms upper case.
func fieldName(prop string) string {
	name := camel(prop, "-_")
	for _, suffix := range []string{"Id", "Url", "Arn"} {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix) + strings.ToUpper(suffix)
		}
	}
	return name
}

func camel(s, separators string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(separators, r) })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

// durationExpr renders a registry timeout as a Go expression, falling back
// to ten seconds.
func durationExpr(timeout string) string {
	d, err := time.ParseDuration(timeout)
	if err != nil || d <= 0 {
		return "10 * time.Second"
	}
	if d%time.Second == 0 {
		return fmt.Sprintf("%d * time.Second", d/time.Second)
	}
	return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
}
