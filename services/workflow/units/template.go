// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package units

import (
	"context"
	"fmt"
	"strings"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
	"trim":     strings.TrimSpace,
	"contains": strings.Contains,
	"replace":  strings.ReplaceAll,
}

// TemplateData is the value templates execute against.
type TemplateData struct {
	Input string
}

// Template renders a text/template against the input.
type Template struct {
	name        string
	description string
	tmpl        *template.Template
}

// NewTemplate parses text once. Missing keys are an execution error.
func NewTemplate(name, description, text string) (*Template, error) {
	tmpl, err := ParseTemplate(name, text)
	if err != nil {
		return nil, fmt.Errorf("unit %q: parse template: %w", name, err)
	}
	return &Template{name: name, description: description, tmpl: tmpl}, nil
}

func (t *Template) Name() string        { return t.name }
func (t *Template) Description() string { return t.description }

func (t *Template) Run(ctx context.Context, input string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out, err := RenderString(t.tmpl, input)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// RenderString executes a one-off template against input. Manifest edge
// transforms use it.
func RenderString(tmpl *template.Template, input string) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, TemplateData{Input: input}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ParseTemplate parses text with the unit template functions.
func ParseTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
}
