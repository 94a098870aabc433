// Copyright 2025 OpenClaw Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package prompt renders the worker, audit, and rework prompts from
// templates. The built-in templates can be overridden per-section by
// dropping <section>.tmpl files into a directory.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/pkg/errors"
)

const workerTemplate = `You are implementing issue {{.Identifier}}: {{.Title}}

{{.Description}}

Work in the worktree at {{.WorktreePath}}. Implement the issue fully,
run the tests, and commit your work on the issue branch. When you are
done, summarize what you changed and why.`

const reworkTemplate = `Your previous implementation of issue {{.Identifier}} ({{.Title}}) did
not pass audit. This is rework attempt {{.Attempt}}.

The audit found these gaps:
{{range .Gaps}}- {{.}}
{{end}}
Work in the worktree at {{.WorktreePath}}. Address every gap above,
re-run the tests, and commit. Do not start unrelated work.`

const auditTemplate = `You are auditing the implementation of issue {{.Identifier}}: {{.Title}}

The issue description is the source of truth:

{{.Description}}

Inspect the worktree at {{.WorktreePath}}. Verify each acceptance
criterion against the actual code and test results, not against any
claims made in comments or commit messages.

Reply with a single JSON object:
{"pass": bool, "criteria": [...], "gaps": [...], "testResults": "...", "prUrl": "..."}`

var builtins = map[dispatch.PromptSection]string{
	dispatch.PromptWorker: workerTemplate,
	dispatch.PromptRework: reworkTemplate,
	dispatch.PromptAudit:  auditTemplate,
}

// Builder renders prompts from parsed templates.
type Builder struct {
	templates map[dispatch.PromptSection]*template.Template
}

// NewBuilder creates a builder with the built-in templates. When dir is
// non-empty, a <section>.tmpl file there replaces the built-in for that
// section; missing files fall back silently.
func NewBuilder(dir string) (*Builder, error) {
	b := &Builder{templates: make(map[dispatch.PromptSection]*template.Template)}

	for section, text := range builtins {
		if dir != "" {
			path := filepath.Join(dir, string(section)+".tmpl")
			data, err := os.ReadFile(path)
			if err == nil {
				text = string(data)
			} else if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "reading prompt template %s", path)
			}
		}
		tmpl, err := template.New(string(section)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s prompt template", section)
		}
		b.templates[section] = tmpl
	}
	return b, nil
}

// Render implements dispatch.PromptBuilder.
func (b *Builder) Render(section dispatch.PromptSection, vars dispatch.PromptVars) (string, error) {
	tmpl, ok := b.templates[section]
	if !ok {
		return "", fmt.Errorf("prompt: unknown section %q", section)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", errors.Wrapf(err, "rendering %s prompt", section)
	}
	return sb.String(), nil
}
