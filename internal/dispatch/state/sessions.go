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

package state

// RegisterSession records a session-key mapping. An existing mapping for
// the same key is overwritten.
func RegisterSession(doc *Document, sessionKey string, mapping SessionMapping) {
	doc.SessionMap[sessionKey] = mapping
}

// LookupSession returns the mapping for a session key, if present.
func LookupSession(doc *Document, sessionKey string) (SessionMapping, bool) {
	m, ok := doc.SessionMap[sessionKey]
	return m, ok
}

// RemoveSession drops a single session mapping. Missing keys are a no-op.
func RemoveSession(doc *Document, sessionKey string) {
	delete(doc.SessionMap, sessionKey)
}

// MarkEventProcessed records an event key for deduplication. Returns true
// on first sight, false if the key was already processed. The FIFO is
// bounded at MaxProcessedEvents; the oldest entry is evicted first.
func MarkEventProcessed(doc *Document, eventKey string) bool {
	for _, k := range doc.ProcessedEvents {
		if k == eventKey {
			return false
		}
	}
	doc.ProcessedEvents = append(doc.ProcessedEvents, eventKey)
	if len(doc.ProcessedEvents) > MaxProcessedEvents {
		doc.ProcessedEvents = doc.ProcessedEvents[len(doc.ProcessedEvents)-MaxProcessedEvents:]
	}
	return true
}
