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

import "fmt"

// WorkerSessionKey builds the session key for a worker run.
func WorkerSessionKey(identifier string, attempt int) string {
	return fmt.Sprintf("linear-worker-%s-%d", identifier, attempt)
}

// AuditSessionKey builds the session key for an audit run.
func AuditSessionKey(identifier string, attempt int) string {
	return fmt.Sprintf("linear-audit-%s-%d", identifier, attempt)
}

// auditTriggerEventKey dedupes worker-completion deliveries per attempt.
func auditTriggerEventKey(identifier string, attempt int) string {
	return fmt.Sprintf("audit-trigger:%s:%d", identifier, attempt)
}

// verdictEventKey dedupes verdict deliveries per attempt.
func verdictEventKey(identifier string, attempt int) string {
	return fmt.Sprintf("verdict:%s:%d", identifier, attempt)
}
