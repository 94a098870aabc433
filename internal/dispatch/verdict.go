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

import "encoding/json"

// Verdict is the auditor's structured judgement.
type Verdict struct {
	Pass        bool     `json:"pass"`
	Criteria    []string `json:"criteria,omitempty"`
	Gaps        []string `json:"gaps,omitempty"`
	TestResults string   `json:"testResults,omitempty"`
	PRURL       string   `json:"prUrl,omitempty"`
}

// unparsableGap is the gap recorded when the auditor output holds no
// readable verdict. The pipeline then proceeds via the fail branch.
const unparsableGap = "audit output could not be parsed"

// ParseVerdict extracts the verdict from raw auditor output. The first
// complete {...} object in the text is authoritative; anything around it
// (prose, code fences, later objects) is ignored. Output with no
// parseable object degrades to a failing verdict rather than an error.
func ParseVerdict(output string) Verdict {
	raw, ok := firstJSONObject(output)
	if !ok {
		return Verdict{Pass: false, Gaps: []string{unparsableGap}}
	}

	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Verdict{Pass: false, Gaps: []string{unparsableGap}}
	}
	return v
}

// firstJSONObject scans for the first balanced top-level JSON object,
// respecting string literals and escapes.
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
