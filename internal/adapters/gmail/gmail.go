// Package gmail implements the Gmail SourceAdapter: it lists messages
// matching a search query and label, yields their raw RFC822 bytes, and
// acks by relabeling the message upstream.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/juanre/mail-flow/internal/errs"
	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/pipeline"
)

const apiBase = "https://gmail.googleapis.com/gmail/v1/users/me"

// Config configures an Adapter.
type Config struct {
	TokenSource     oauth2.TokenSource
	Query           string
	Label           string
	ProcessedLabel  string
	Max             int
	RemoveFromInbox bool
}

// Adapter is the Gmail SourceAdapter. It lists matching message IDs once on
// first Next call, then yields their bodies one at a time.
type Adapter struct {
	cfg    Config
	client *http.Client

	ids []string
	pos int
}

var _ pipeline.SourceAdapter = (*Adapter)(nil)

// New creates a Gmail Adapter authorized via cfg.TokenSource.
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: oauth2.NewClient(context.Background(), cfg.TokenSource),
	}
}

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (a *Adapter) ensureListed(ctx context.Context) error {
	if a.ids != nil {
		return nil
	}
	q := url.Values{}
	query := a.cfg.Query
	if a.cfg.Label != "" {
		query = fmt.Sprintf("label:%s %s", a.cfg.Label, query)
	}
	q.Set("q", query)
	if a.cfg.Max > 0 {
		q.Set("maxResults", fmt.Sprintf("%d", a.cfg.Max))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/messages?"+q.Encode(), nil)
	if err != nil {
		return errs.New(errs.IOError, "gmail-list", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return errs.New(errs.Transient, "gmail-list", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return errs.New(errs.Transient, "gmail-list", fmt.Errorf("gmail list returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.IOError, "gmail-list", fmt.Errorf("gmail list returned %d", resp.StatusCode))
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return errs.New(errs.InputParseError, "gmail-list-decode", err)
	}
	for _, m := range lr.Messages {
		a.ids = append(a.ids, m.ID)
	}
	if a.ids == nil {
		a.ids = []string{}
	}
	return nil
}

type messageResponse struct {
	ID      string `json:"id"`
	Raw     string `json:"raw"`
	Payload struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
}

func (a *Adapter) fetchMessage(ctx context.Context, id string) (*messageResponse, error) {
	u := apiBase + "/messages/" + id + "?format=raw"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.New(errs.IOError, "gmail-get", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.Transient, "gmail-get", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, errs.New(errs.Transient, "gmail-get", fmt.Errorf("gmail get returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.IOError, "gmail-get", fmt.Errorf("gmail get returned %d", resp.StatusCode))
	}

	var mr messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, errs.New(errs.InputParseError, "gmail-get-decode", err)
	}
	return &mr, nil
}

// Next lists matching messages on first call, then yields their raw bytes
// one at a time until exhausted.
func (a *Adapter) Next(ctx context.Context) (*pipeline.SourceItem, bool, error) {
	if err := a.ensureListed(ctx); err != nil {
		return nil, false, err
	}
	if a.pos >= len(a.ids) {
		return nil, false, nil
	}
	id := a.ids[a.pos]
	a.pos++

	mr, err := a.fetchMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}

	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(mr.Raw)
	if err != nil {
		return nil, false, errs.New(errs.InputParseError, "gmail-decode-raw", err)
	}

	origin := map[string]any{"message_id": mr.ID}
	for _, h := range mr.Payload.Headers {
		switch h.Name {
		case "Subject":
			origin["subject"] = h.Value
		case "From":
			origin["from"] = h.Value
		case "To":
			origin["to"] = h.Value
		case "Date":
			origin["date"] = h.Value
		}
	}

	return &pipeline.SourceItem{
		ID: id,
		Raw: feature.RawItem{
			Source:   "mail",
			RawBytes: raw,
			Origin:   origin,
		},
	}, true, nil
}

// Ack relabels the message upstream: adds ProcessedLabel, optionally
// removes INBOX, on archived/skipped results; leaves errored messages
// untouched so a retry sees them again.
func (a *Adapter) Ack(ctx context.Context, id string, result pipeline.AckResult) error {
	if result == pipeline.AckError {
		return nil
	}
	if a.cfg.ProcessedLabel == "" && !a.cfg.RemoveFromInbox {
		return nil
	}

	body := map[string]any{}
	if a.cfg.ProcessedLabel != "" {
		body["addLabelIds"] = []string{a.cfg.ProcessedLabel}
	}
	if a.cfg.RemoveFromInbox {
		body["removeLabelIds"] = []string{"INBOX"}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return errs.New(errs.IOError, "gmail-ack-marshal", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/messages/"+id+"/modify",
		bytes.NewReader(raw))
	if err != nil {
		return errs.New(errs.IOError, "gmail-ack", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return errs.New(errs.Transient, "gmail-ack", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errs.New(errs.Transient, "gmail-ack", fmt.Errorf("gmail modify returned %d", resp.StatusCode))
	}
	return nil
}
