// Package submit consumes winning matches from the miner and either POSTs
// them to the PLC directory or, under dry-run, just logs them. It is the
// only part of this program that performs network I/O, and none of its
// failures propagate back into the core: a failed POST is logged and the
// loop continues with the next match.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vanitydid/plcminer/internal/miner"
)

// Client posts winning matches to a PLC directory, or logs them when
// DryRun is set.
type Client struct {
	DirectoryURL string
	DryRun       bool
	HTTP         *http.Client
	Logger       *zap.Logger
}

// NewClient returns a Client with sensible defaults (a 30s-timeout HTTP
// client, a no-op logger) for any zero-valued fields.
func NewClient(directoryURL string, dryRun bool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		DirectoryURL: directoryURL,
		DryRun:       dryRun,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		Logger:       logger,
	}
}

// Run drains matches until the channel is closed or ctx is canceled,
// submitting (or logging) each one. It returns nil on a clean channel
// close; a canceled context returns ctx.Err().
func (c *Client) Run(ctx context.Context, matches <-chan miner.Match) error {
	for {
		select {
		case m, ok := <-matches:
			if !ok {
				return nil
			}
			c.submitOne(ctx, m)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) submitOne(ctx context.Context, m miner.Match) {
	if c.DryRun {
		c.Logger.Info("found DID (dry run, not submitted)", zap.String("did", m.DID))
		return
	}

	if err := c.post(ctx, m); err != nil {
		c.Logger.Error("submitting DID failed", zap.String("did", m.DID), zap.Error(err))
		return
	}
	c.Logger.Info("submitted DID", zap.String("did", m.DID))
}

func (c *Client) post(ctx context.Context, m miner.Match) error {
	body, err := json.Marshal(m.Op)
	if err != nil {
		return fmt.Errorf("submit: encoding operation as json: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.DirectoryURL, m.DID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submit: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("submit: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("submit: directory responded with status %d", resp.StatusCode)
	}
	return nil
}
