// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manifest

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/M4n5ter/rigs/services/workflow/dag"
	"github.com/M4n5ter/rigs/services/workflow/units"
)

// UnitFactory builds a unit from its kind-independent spec.
type UnitFactory interface {
	New(spec units.Spec) (dag.Unit, error)
}

// Options returns the engine options the manifest sets.
func (m *Manifest) Options() []dag.Option {
	var opts []dag.Option
	if m.NodeTimeout > 0 {
		opts = append(opts, dag.WithNodeTimeout(m.NodeTimeout))
	}
	if m.MaxConcurrency > 0 {
		opts = append(opts, dag.WithMaxConcurrency(m.MaxConcurrency))
	}
	return opts
}

// Build validates m and assembles the workflow: units are registered in
// declaration order, then edges are connected in declaration order. opts
// are applied after the manifest's own options.
func Build(m *Manifest, factory UnitFactory, logger *slog.Logger, opts ...dag.Option) (*dag.Workflow, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	all := append(m.Options(), dag.WithLogger(logger))
	all = append(all, opts...)
	w := dag.New(m.Name, m.Description, all...)

	for _, spec := range m.Units {
		u, err := factory.New(units.Spec{
			Name:        spec.Name,
			Kind:        spec.Kind,
			Description: spec.Description,
			Template:    spec.Template,
			Command:     spec.Command,
			Prompt:      spec.Prompt,
			Model:       spec.Model,
			Prefix:      spec.Prefix,
		})
		if err != nil {
			return nil, err
		}
		if err := w.Register(u); err != nil {
			return nil, err
		}
	}

	for i, e := range m.Edges {
		cond, err := compileCondition(e.When)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		transform, err := compileTransform(e.Transform, logger)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		if _, err := w.Connect(e.From, e.To, dag.Flow{Condition: cond, Transform: transform}); err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	return w, nil
}

func compileCondition(c *Condition) (func(string) bool, error) {
	if c == nil || (c.Contains == "" && c.NotContains == "" && c.Matches == "") {
		return nil, nil
	}

	var re *regexp.Regexp
	if c.Matches != "" {
		var err error
		if re, err = regexp.Compile(c.Matches); err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
	}

	contains, notContains := c.Contains, c.NotContains
	return func(out string) bool {
		if contains != "" && !strings.Contains(out, contains) {
			return false
		}
		if notContains != "" && strings.Contains(out, notContains) {
			return false
		}
		if re != nil && !re.MatchString(out) {
			return false
		}
		return true
	}, nil
}

// compileTransform returns nil for an empty transform. A template that
// fails at run time forwards the value unchanged and logs the error.
func compileTransform(t *Transform, logger *slog.Logger) (func(string) string, error) {
	if t == nil || (!t.Trim && t.Template == "" && t.Prefix == "" && t.Suffix == "") {
		return nil, nil
	}

	var render func(string) (string, error)
	if t.Template != "" {
		tmpl, err := units.ParseTemplate("transform", t.Template)
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		if _, err := units.RenderString(tmpl, ""); err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		render = func(s string) (string, error) { return units.RenderString(tmpl, s) }
	}

	trim, prefix, suffix := t.Trim, t.Prefix, t.Suffix
	return func(s string) string {
		if trim {
			s = strings.TrimSpace(s)
		}
		if render != nil {
			out, err := render(s)
			if err != nil {
				if logger != nil {
					logger.Warn("edge transform failed", slog.String("error", err.Error()))
				}
			} else {
				s = out
			}
		}
		return prefix + s + suffix
	}, nil
}
