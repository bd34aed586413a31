// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package units provides the built-in dag.Unit kinds a manifest can
// declare: template, command, chat and echo.
package units

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/M4n5ter/rigs/services/workflow/dag"
)

// Kind names.
const (
	KindTemplate = "template"
	KindCommand  = "command"
	KindChat     = "chat"
	KindEcho     = "echo"
)

// ErrUnknownKind is returned by Factory.New for an unsupported kind.
var ErrUnknownKind = errors.New("unknown unit kind")

// Spec is the kind-independent description of a unit.
type Spec struct {
	Name        string
	Kind        string
	Description string

	Template string   // template
	Command  []string // command
	Prompt   string   // chat system prompt
	Model    string   // chat
	Prefix   string   // echo
}

// Factory builds units from specs. Chat settings apply to every chat unit
// that does not name its own model.
type Factory struct {
	Chat   ChatConfig
	Logger *slog.Logger
}

// New builds the unit described by spec.
func (f *Factory) New(spec Spec) (dag.Unit, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch spec.Kind {
	case KindTemplate:
		return NewTemplate(spec.Name, spec.Description, spec.Template)
	case KindCommand:
		return NewCommand(spec.Name, spec.Description, spec.Command)
	case KindChat:
		cfg := f.Chat
		if spec.Model != "" {
			cfg.Model = spec.Model
		}
		return NewChat(spec.Name, spec.Description, spec.Prompt, cfg, logger)
	case KindEcho, "":
		return NewEcho(spec.Name, spec.Description, spec.Prefix), nil
	default:
		return nil, fmt.Errorf("unit %q: %w %q", spec.Name, ErrUnknownKind, spec.Kind)
	}
}
