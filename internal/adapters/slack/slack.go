// Package slack implements the Slack SourceAdapter: it walks a channel's
// history and yields each message as a chat-stream item. There is no
// upstream relabeling for Slack, so Ack does nothing and returns nil.
package slack

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/pipeline"
)

// Config configures an Adapter.
type Config struct {
	Client    *slack.Client
	ChannelID string
	Oldest    string // Slack ts cursor; "" means from the beginning
	Max       int
}

// Adapter is the Slack SourceAdapter over one channel's history.
type Adapter struct {
	cfg      Config
	messages []slack.Message
	pos      int
	fetched  bool
}

var _ pipeline.SourceAdapter = (*Adapter)(nil)

// New creates a Slack Adapter.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) ensureFetched(ctx context.Context) error {
	if a.fetched {
		return nil
	}
	a.fetched = true

	params := &slack.GetConversationHistoryParameters{
		ChannelID: a.cfg.ChannelID,
		Oldest:    a.cfg.Oldest,
		Limit:     a.cfg.Max,
	}
	hist, err := a.cfg.Client.GetConversationHistoryContext(ctx, params)
	if err != nil {
		return errs.New(errs.Transient, "slack-history", err)
	}
	a.messages = hist.Messages
	return nil
}

// Next yields the channel's messages one at a time, oldest-fetch-first.
func (a *Adapter) Next(ctx context.Context) (*pipeline.SourceItem, bool, error) {
	if err := a.ensureFetched(ctx); err != nil {
		return nil, false, err
	}
	if a.pos >= len(a.messages) {
		return nil, false, nil
	}
	msg := a.messages[a.pos]
	a.pos++

	origin := map[string]any{
		"message_id": msg.Timestamp,
		"from":       msg.User,
		"channel":    a.cfg.ChannelID,
		"permalink":  fmt.Sprintf("slack://channel?id=%s&message=%s", a.cfg.ChannelID, msg.Timestamp),
	}
	if ts, ok := parseSlackTimestamp(msg.Timestamp); ok {
		origin["date"] = ts
	}

	return &pipeline.SourceItem{
		ID: msg.Timestamp,
		Raw: feature.RawItem{
			Source:   "slack",
			RawBytes: []byte(msg.Text),
			Origin:   origin,
		},
	}, true, nil
}

// Ack is a no-op: Slack has no per-message processed label to set.
func (a *Adapter) Ack(ctx context.Context, id string, result pipeline.AckResult) error {
	return nil
}

func parseSlackTimestamp(ts string) (time.Time, bool) {
	var sec, nsec int64
	if _, err := fmt.Sscanf(ts, "%d.%d", &sec, &nsec); err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, nsec*1000).UTC(), true
}
