// Package stdin implements the simplest SourceAdapter: one item read from
// standard input, used by `ingest stdin` for interactive single-item
// classification.
package stdin

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/juanre/mail-flow/internal/feature"
	"github.com/juanre/mail-flow/internal/pipeline"
)

// Adapter yields exactly one item, read in full from r, then reports
// exhausted.
type Adapter struct {
	r    io.Reader
	read bool
	acks map[string]pipeline.AckResult
}

var _ pipeline.SourceAdapter = (*Adapter)(nil)

// New creates an Adapter reading from r (typically os.Stdin).
func New(r io.Reader) *Adapter {
	return &Adapter{r: r, acks: map[string]pipeline.AckResult{}}
}

// Next reads all of r on its first call and yields it as a single item;
// subsequent calls report exhaustion.
func (a *Adapter) Next(ctx context.Context) (*pipeline.SourceItem, bool, error) {
	if a.read {
		return nil, false, nil
	}
	a.read = true

	raw, err := io.ReadAll(bufio.NewReader(a.r))
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}

	return &pipeline.SourceItem{
		ID: "stdin-" + time.Now().UTC().Format(time.RFC3339Nano),
		Raw: feature.RawItem{
			Source:   "other",
			RawBytes: raw,
			Origin:   map[string]any{},
		},
	}, true, nil
}

// Ack records the outcome; stdin has no upstream to relabel.
func (a *Adapter) Ack(ctx context.Context, id string, result pipeline.AckResult) error {
	a.acks[id] = result
	return nil
}

// LastAck returns the recorded outcome for id, for callers that want to
// report it back to an interactive user.
func (a *Adapter) LastAck(id string) (pipeline.AckResult, bool) {
	r, ok := a.acks[id]
	return r, ok
}
