// Package notify surfaces job progress to the user through Slack. The
// placeholder message posted at enqueue time is updated in place by its
// timestamp, never re-posted, so a retried job cannot leave duplicate
// visible messages.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

type SlackNotifier struct {
	api     *slack.Client
	channel string
	logger  *zap.Logger
}

// NewSlackNotifier creates a notifier bound to one channel. The token is
// verified up front so a misconfiguration fails at startup, not mid-job.
func NewSlackNotifier(token, channel string, logger *zap.Logger) (*SlackNotifier, error) {
	api := slack.New(token)
	if _, err := api.AuthTest(); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Slack: %w", err)
	}
	return &SlackNotifier{api: api, channel: channel, logger: logger}, nil
}

// PostProcessing posts the placeholder message and returns its timestamp
// as the reference for later targeted updates.
func (n *SlackNotifier) PostProcessing(ctx context.Context, ownerID, text string) (string, error) {
	_, ts, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("failed to post processing message: %w", err)
	}
	n.logger.Debug("posted processing placeholder", zap.String("owner", ownerID), zap.String("ts", ts))
	return ts, nil
}

// UpdateResult rewrites the placeholder identified by ref.
func (n *SlackNotifier) UpdateResult(ctx context.Context, ref, text string) error {
	_, _, _, err := n.api.UpdateMessageContext(ctx, n.channel, ref, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to update message %s: %w", ref, err)
	}
	return nil
}
