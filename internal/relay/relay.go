// Package relay exchanges an assembled chat context for assistant text,
// preferring a live token stream from the upstream provider and
// normalizing whatever chunk schema the provider speaks into a single
// event shape.
package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"time"

	"grudai/internal/logging"
)

// Relay drives one streaming completion per call and performs the
// one-shot non-streaming fallback when the stream yields no content.
type Relay struct {
	client *Client
}

// New creates a Relay over the given provider client.
func New(client *Client) *Relay {
	return &Relay{client: client}
}

// Stream opens a streaming completion and emits normalized events:
// zero or more {Content}, then exactly one {Done} — or a single {Err}
// when the stream cannot be opened. The channel is always closed.
//
// Decode anomalies (unparseable lines, unknown chunk shapes) are logged
// and skipped, never escalated. If the upstream stream ends with zero
// extracted content, exactly one non-streaming fallback request is made
// with the same context and model.
func (r *Relay) Stream(ctx context.Context, model string, messages []Message) <-chan Event {
	events := make(chan Event, 64)

	go func() {
		defer close(events)

		startTime := time.Now()

		body, err := r.client.openStream(ctx, model, messages)
		if err != nil {
			logging.RelayError("Stream open failed: model=%s: %v", model, err)
			events <- Event{Err: err.Error()}
			return
		}
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var accumulated strings.Builder
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			// Provider end-of-stream sentinel, not JSON.
			if data == "[DONE]" {
				continue
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Tolerates chunks split across network reads.
				logging.RelayDebug("Skipping unparseable chunk (%d bytes): %v", len(data), err)
				continue
			}
			if chunk.Error != nil {
				logging.RelayError("Upstream error chunk: %s", chunk.Error.Message)
				select {
				case events <- Event{Err: chunk.Error.Message}:
				case <-ctx.Done():
				}
				return
			}

			content, shape := extractContent(&chunk)
			if shape == ShapeUnknown {
				logging.RelayDebug("Chunk matched no known schema shape, skipping")
				continue
			}
			if content == "" {
				continue
			}

			accumulated.WriteString(content)
			select {
			case events <- Event{Content: content}:
			case <-ctx.Done():
				logging.RelayWarn("Stream cancelled after %v", time.Since(startTime))
				return
			}
		}
		if err := scanner.Err(); err != nil {
			// Partial accumulation survives; the caller decides what to keep.
			logging.RelayWarn("Stream read ended early: %v", err)
		}

		if accumulated.Len() == 0 {
			// Sole retry path: one non-streaming attempt, never repeated.
			logging.Relay("Stream produced no content, trying non-streaming fallback: model=%s", model)
			text, _, err := r.client.Complete(ctx, model, messages)
			if err != nil {
				logging.RelayError("Fallback completion failed: %v", err)
			} else if text != "" {
				accumulated.WriteString(text)
				select {
				case events <- Event{Content: text}:
				case <-ctx.Done():
					return
				}
			}
		}

		logging.Relay("Stream completed in %v: %d chars", time.Since(startTime), accumulated.Len())
		select {
		case events <- Event{Done: true}:
		case <-ctx.Done():
		}
	}()

	return events
}

// Complete performs a single non-streaming completion with the same
// context shape as Stream. Used for non-streaming turn mode.
func (r *Relay) Complete(ctx context.Context, model string, messages []Message) (string, *Usage, error) {
	return r.client.Complete(ctx, model, messages)
}
