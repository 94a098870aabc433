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

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdictPlainObject(t *testing.T) {
	v := ParseVerdict(`{"pass": true, "criteria": ["builds", "tests green"], "prUrl": "https://example.com/pr/7"}`)

	assert.True(t, v.Pass)
	assert.Equal(t, []string{"builds", "tests green"}, v.Criteria)
	assert.Equal(t, "https://example.com/pr/7", v.PRURL)
}

func TestParseVerdictSurroundedByProse(t *testing.T) {
	output := "Here is my final verdict:\n\n```json\n" +
		`{"pass": false, "gaps": ["missing error handling"]}` +
		"\n```\nLet me know if anything is unclear."

	v := ParseVerdict(output)

	assert.False(t, v.Pass)
	assert.Equal(t, []string{"missing error handling"}, v.Gaps)
}

func TestParseVerdictFirstObjectWins(t *testing.T) {
	output := `{"pass": true} some text {"pass": false, "gaps": ["later object"]}`

	v := ParseVerdict(output)

	assert.True(t, v.Pass)
	assert.Empty(t, v.Gaps)
}

func TestParseVerdictBracesInsideStrings(t *testing.T) {
	output := `{"pass": false, "gaps": ["handler ignores {} literals", "see func() { ... }"], "testResults": "3 failed"}`

	v := ParseVerdict(output)

	require.False(t, v.Pass)
	assert.Len(t, v.Gaps, 2)
	assert.Equal(t, "3 failed", v.TestResults)
}

func TestParseVerdictEscapedQuotes(t *testing.T) {
	output := `{"pass": false, "gaps": ["field \"name\" unused"]}`

	v := ParseVerdict(output)

	require.Len(t, v.Gaps, 1)
	assert.Equal(t, `field "name" unused`, v.Gaps[0])
}

func TestParseVerdictNoObject(t *testing.T) {
	v := ParseVerdict("the auditor produced prose only, no verdict here")

	assert.False(t, v.Pass)
	assert.Equal(t, []string{unparsableGap}, v.Gaps)
}

func TestParseVerdictMalformedObject(t *testing.T) {
	v := ParseVerdict(`{"pass": "not-a-bool", "gaps": 42}`)

	assert.False(t, v.Pass)
	assert.Equal(t, []string{unparsableGap}, v.Gaps)
}

func TestParseVerdictUnbalancedBraces(t *testing.T) {
	v := ParseVerdict(`{"pass": true, "gaps": [`)

	assert.False(t, v.Pass)
	assert.Equal(t, []string{unparsableGap}, v.Gaps)
}

func TestParseVerdictEmptyOutput(t *testing.T) {
	v := ParseVerdict("")

	assert.False(t, v.Pass)
	assert.Equal(t, []string{unparsableGap}, v.Gaps)
}
