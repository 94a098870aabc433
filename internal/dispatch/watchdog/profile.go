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

package watchdog

import "log/slog"

// ProfileLookup reads per-agent watchdog overrides from an external
// document (for example an agent profile file). A zero field means no
// override for that tunable.
type ProfileLookup func(agentID string) (Config, bool)

// Resolve computes the effective config for an agent run. Precedence,
// highest first: per-agent profile override, caller-supplied config,
// hardcoded defaults. The profile lookup is a side-effecting read and
// must not take the run down with it; panics are logged and treated as
// no-override.
func Resolve(agentID string, caller Config, lookup ProfileLookup, logger *slog.Logger) Config {
	result := caller.WithDefaults()

	if lookup == nil {
		return result
	}

	profile, ok := safeLookup(agentID, lookup, logger)
	if !ok {
		return result
	}

	if profile.Inactivity > 0 {
		result.Inactivity = profile.Inactivity
	}
	if profile.MaxTotal > 0 {
		result.MaxTotal = profile.MaxTotal
	}
	if profile.ToolTimeout > 0 {
		result.ToolTimeout = profile.ToolTimeout
	}
	return result
}

func safeLookup(agentID string, lookup ProfileLookup, logger *slog.Logger) (cfg Config, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("agent profile lookup panicked",
				slog.String("agent_id", agentID), slog.Any("panic", r))
			cfg, ok = Config{}, false
		}
	}()
	return lookup(agentID)
}
