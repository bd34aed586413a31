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

import "context"

// Echo returns its input behind an optional prefix.
type Echo struct {
	name        string
	description string
	prefix      string
}

func NewEcho(name, description, prefix string) *Echo {
	return &Echo{name: name, description: description, prefix: prefix}
}

func (e *Echo) Name() string        { return e.name }
func (e *Echo) Description() string { return e.description }

func (e *Echo) Run(_ context.Context, input string) (string, error) {
	return e.prefix + input, nil
}
