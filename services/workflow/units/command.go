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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for orphaned children holding the
// output pipes after the process is killed.
const waitDelay = 2 * time.Second

// Command runs an external program. The input is written to its stdin and
// the trimmed stdout is the output.
type Command struct {
	name        string
	description string
	argv        []string
}

// NewCommand requires a non-empty argv.
func NewCommand(name, description string, argv []string) (*Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("unit %q: command is empty", name)
	}
	return &Command{name: name, description: description, argv: append([]string(nil), argv...)}, nil
}

func (c *Command) Name() string        { return c.name }
func (c *Command) Description() string { return c.description }

// Run kills the process when ctx ends. A non-zero exit is an error
// carrying the program's stderr.
func (c *Command) Run(ctx context.Context, input string) (string, error) {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s exited with code %d: %s",
				c.argv[0], exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("run %s: %w", c.argv[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
