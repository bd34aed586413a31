// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package manifest loads workflow definitions from YAML and builds them
// into dag.Workflows.
//
// A manifest declares units and the edges between them:
//
//	name: review
//	start: [draft]
//	units:
//	  - name: draft
//	    kind: template
//	    template: "Draft about {{.Input}}"
//	  - name: critique
//	    kind: echo
//	    prefix: "critique: "
//	edges:
//	  - from: draft
//	    to: critique
//	    when: {contains: "Draft"}
//	    transform: {trim: true, suffix: "\n"}
//
// Edge conditions combine with AND. Transforms apply trim, then template,
// then prefix and suffix.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest wraps every validation failure.
var ErrInvalidManifest = errors.New("invalid manifest")

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Manifest is a workflow definition.
type Manifest struct {
	Name        string   `yaml:"name" json:"name" validate:"required,max=128"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Start       []string `yaml:"start" json:"start" validate:"required,min=1,dive,required"`
	Input       string   `yaml:"input,omitempty" json:"input,omitempty"`

	// NodeTimeout overrides the engine default of one hour.
	NodeTimeout time.Duration `yaml:"node_timeout,omitempty" json:"node_timeout,omitempty" validate:"gte=0"`

	// MaxConcurrency bounds concurrently running units. Zero is unbounded.
	MaxConcurrency int64 `yaml:"max_concurrency,omitempty" json:"max_concurrency,omitempty" validate:"gte=0"`

	Units []UnitSpec `yaml:"units" json:"units" validate:"required,min=1,dive"`
	Edges []EdgeSpec `yaml:"edges,omitempty" json:"edges,omitempty" validate:"dive"`
}

// UnitSpec declares one unit. Which fields apply depends on Kind.
type UnitSpec struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Kind        string   `yaml:"kind,omitempty" json:"kind,omitempty" validate:"omitempty,oneof=template command chat echo"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Template    string   `yaml:"template,omitempty" json:"template,omitempty"`
	Command     []string `yaml:"command,omitempty" json:"command,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`
	Prefix      string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// EdgeSpec declares one edge.
type EdgeSpec struct {
	From      string     `yaml:"from" json:"from" validate:"required"`
	To        string     `yaml:"to" json:"to" validate:"required"`
	When      *Condition `yaml:"when,omitempty" json:"when,omitempty"`
	Transform *Transform `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// Condition gates an edge. Every non-empty field must hold.
type Condition struct {
	Contains    string `yaml:"contains,omitempty" json:"contains,omitempty"`
	NotContains string `yaml:"not_contains,omitempty" json:"not_contains,omitempty"`
	Matches     string `yaml:"matches,omitempty" json:"matches,omitempty"`
}

// Transform rewrites the data an edge forwards.
type Transform struct {
	Trim     bool   `yaml:"trim,omitempty" json:"trim,omitempty"`
	Template string `yaml:"template,omitempty" json:"template,omitempty"`
	Prefix   string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix   string `yaml:"suffix,omitempty" json:"suffix,omitempty"`
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ValidationError lists every problem found in a manifest.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidManifest, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidManifest }

// Validate checks struct tags, then the references between units, edges
// and starts, then each kind's required fields. Cycles are left to Build.
func (m *Manifest) Validate() error {
	var problems []string

	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	declared := make(map[string]bool, len(m.Units))
	for _, u := range m.Units {
		if u.Name == "" {
			continue
		}
		if declared[u.Name] {
			problems = append(problems, fmt.Sprintf("unit %q declared twice", u.Name))
		}
		declared[u.Name] = true
		problems = append(problems, checkUnit(u)...)
	}

	for _, s := range m.Start {
		if s != "" && !declared[s] {
			problems = append(problems, fmt.Sprintf("start %q is not a declared unit", s))
		}
	}

	for i, e := range m.Edges {
		if e.From != "" && !declared[e.From] {
			problems = append(problems, fmt.Sprintf("edge %d: source %q is not a declared unit", i, e.From))
		}
		if e.To != "" && !declared[e.To] {
			problems = append(problems, fmt.Sprintf("edge %d: target %q is not a declared unit", i, e.To))
		}
		if _, err := compileCondition(e.When); err != nil {
			problems = append(problems, fmt.Sprintf("edge %d: %v", i, err))
		}
		if _, err := compileTransform(e.Transform, nil); err != nil {
			problems = append(problems, fmt.Sprintf("edge %d: %v", i, err))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func checkUnit(u UnitSpec) []string {
	switch u.Kind {
	case "template":
		if u.Template == "" {
			return []string{fmt.Sprintf("unit %q: template kind requires template", u.Name)}
		}
	case "command":
		if len(u.Command) == 0 {
			return []string{fmt.Sprintf("unit %q: command kind requires command", u.Name)}
		}
	}
	return nil
}
