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

package notify

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/openclaw/openclaw/internal/dispatch"
	"github.com/openclaw/openclaw/pkg/errors"
)

// slackAPI is the slice of the Slack client the notifier uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackConfig configures the Slack backend.
type SlackConfig struct {
	// Token is the bot token (xoxb-...).
	Token string `yaml:"token"`

	// Channel is the channel ID or name to post to.
	Channel string `yaml:"channel"`
}

// Slack posts pipeline notifications to a Slack channel.
type Slack struct {
	api     slackAPI
	channel string
	logger  *slog.Logger
}

// NewSlack creates a Slack notifier.
func NewSlack(cfg SlackConfig, logger *slog.Logger) (*Slack, error) {
	if cfg.Token == "" {
		return nil, errors.New("slack: token is required")
	}
	if cfg.Channel == "" {
		return nil, errors.New("slack: channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Slack{
		api:     slack.New(cfg.Token),
		channel: cfg.Channel,
		logger:  logger.With(slog.String("component", "notify.slack")),
	}, nil
}

// Notify implements dispatch.Notifier.
func (s *Slack) Notify(ctx context.Context, n dispatch.Notification) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(Text(n), false))
	if err != nil {
		return errors.Wrapf(err, "posting %s notification to slack", n.Kind)
	}
	return nil
}
