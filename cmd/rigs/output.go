// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/M4n5ter/rigs/services/workflow/dag"
	"github.com/M4n5ter/rigs/services/workflow/history"
)

var (
	colorOK    = lipgloss.Color("#2CD7C7")
	colorWarn  = lipgloss.Color("#F4D03F")
	colorError = lipgloss.Color("#E74C3C")
	colorMuted = lipgloss.Color("#5C7A84")
	colorTitle = lipgloss.Color("#20B9B4")
)

var styles = struct {
	Title  lipgloss.Style
	Muted  lipgloss.Style
	OK     lipgloss.Style
	Warn   lipgloss.Style
	Error  lipgloss.Style
	Output lipgloss.Style
}{
	Title:  lipgloss.NewStyle().Bold(true).Foreground(colorTitle),
	Muted:  lipgloss.NewStyle().Foreground(colorMuted),
	OK:     lipgloss.NewStyle().Foreground(colorOK),
	Warn:   lipgloss.NewStyle().Foreground(colorWarn),
	Error:  lipgloss.NewStyle().Foreground(colorError),
	Output: lipgloss.NewStyle().PaddingLeft(4),
}

// printer writes command results as styled text on a terminal, plain
// text otherwise, or JSON when asked.
type printer struct {
	w      io.Writer
	styled bool
	json   bool
}

func newPrinter(w io.Writer, jsonOut bool) *printer {
	return &printer{w: w, styled: !jsonOut && isTerminal(w), json: jsonOut}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) render(st lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return st.Render(s)
}

func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) Title(s string) {
	p.Line("%s", p.render(styles.Title, s))
}

func (p *printer) statusIcon(kind string) string {
	switch kind {
	case history.KindOK:
		return p.render(styles.OK, "✓")
	case history.KindCanceled, history.KindTimeout:
		return p.render(styles.Warn, "⚠")
	default:
		return p.render(styles.Error, "✗")
	}
}

// Record prints one run: a header, then every node that ran.
func (p *printer) Record(rec history.Record) error {
	if p.json {
		return p.JSON(rec)
	}

	p.Title(fmt.Sprintf("run %s", rec.RunID))
	p.Line("%s", p.render(styles.Muted, fmt.Sprintf("workflow %s · start %s · %s · %s",
		rec.Workflow,
		strings.Join(rec.Starts, ","),
		rec.StartedAt.Local().Format(time.DateTime),
		(time.Duration(rec.DurationMS)*time.Millisecond).String(),
	)))

	for _, n := range rec.Nodes {
		if n.Kind == history.KindOK {
			p.Line("%s %s", p.statusIcon(n.Kind), n.Name)
			if n.Output != "" {
				p.Line("%s", p.indent(n.Output))
			}
			continue
		}
		p.Line("%s %s %s", p.statusIcon(n.Kind), n.Name, p.render(styles.Muted, "("+n.Kind+")"))
		p.Line("%s", p.indent(p.render(styles.Error, n.Error)))
	}

	if failed := rec.Failed(); failed > 0 {
		p.Line("%s", p.render(styles.Error, fmt.Sprintf("%d of %d nodes failed", failed, len(rec.Nodes))))
	}
	return nil
}

// Records prints a run listing, newest first.
func (p *printer) Records(recs []history.Record) error {
	if p.json {
		return p.JSON(recs)
	}
	if len(recs) == 0 {
		p.Line("%s", p.render(styles.Muted, "no runs recorded"))
		return nil
	}
	for _, rec := range recs {
		kind := history.KindOK
		if rec.Failed() > 0 {
			kind = history.KindUnit
		}
		p.Line("%s %s  %s  %s  %d nodes",
			p.statusIcon(kind),
			rec.RunID,
			rec.StartedAt.Local().Format(time.DateTime),
			rec.Workflow,
			len(rec.Nodes),
		)
	}
	return nil
}

// Paths prints execution paths as arrows.
func (p *printer) Paths(paths [][]string) error {
	if p.json {
		return p.JSON(paths)
	}
	for _, path := range paths {
		p.Line("%s", strings.Join(path, p.render(styles.Muted, " → ")))
	}
	return nil
}

// Components prints strongly connected components.
func (p *printer) Components(components [][]string) error {
	if p.json {
		if components == nil {
			components = [][]string{}
		}
		return p.JSON(components)
	}
	if len(components) == 0 {
		p.Line("%s no cycles", p.statusIcon(history.KindOK))
		return nil
	}
	for _, c := range components {
		p.Line("%s cycle: %s", p.statusIcon(history.KindUnit), strings.Join(c, ", "))
	}
	return nil
}

// Structure prints each node and its outgoing edges in registration order.
func (p *printer) Structure(nodes []string, structure map[string][]dag.Connection) error {
	if p.json {
		return p.JSON(structure)
	}
	for _, name := range nodes {
		p.Line("%s", p.render(styles.Title, name))
		for _, c := range structure[name] {
			var tags []string
			if c.Conditional {
				tags = append(tags, "conditional")
			}
			if c.Transformed {
				tags = append(tags, "transformed")
			}
			line := "  → " + c.Target
			if len(tags) > 0 {
				line += " " + p.render(styles.Muted, "["+strings.Join(tags, ", ")+"]")
			}
			p.Line("%s", line)
		}
	}
	return nil
}

func (p *printer) indent(s string) string {
	if p.styled {
		return styles.Output.Render(s)
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
