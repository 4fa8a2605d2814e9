package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lendstate/lendstate/pkg/models"
)

const (
	anonymizerTimeout    = 30 * time.Second
	anonymizerMaxElapsed = 2 * time.Minute
)

var (
	// ErrAnonymizerNotConfigured is returned when a run would move customers
	// to DELETED without anything scrubbing their data.
	ErrAnonymizerNotConfigured = errors.New("no anonymizer configured: set --anonymizer-url or use --dry-run")
	// ErrAnonymizerRejected is returned when the customer data service refuses a request.
	ErrAnonymizerRejected = errors.New("anonymization rejected")
)

type anonymizeRequest struct {
	EntityID   string `json:"entity_id"`
	WorkflowID string `json:"workflow_id"`
}

// httpAnonymizer asks the customer data service to scrub a customer. Server
// errors are retried, anything else below 200 or from 300 up is final.
type httpAnonymizer struct {
	url        string
	client     *http.Client
	maxElapsed time.Duration
	logger     *slog.Logger
}

func newAnonymizer(url string, logger *slog.Logger) (*httpAnonymizer, error) {
	if url == "" {
		return nil, ErrAnonymizerNotConfigured
	}

	return &httpAnonymizer{
		url:        url,
		client:     &http.Client{Timeout: anonymizerTimeout},
		maxElapsed: anonymizerMaxElapsed,
		logger:     logger.With("module", "http_anonymizer"),
	}, nil
}

func (a *httpAnonymizer) Anonymize(ctx context.Context, customer models.Entity) error {
	body, err := json.Marshal(anonymizeRequest{EntityID: customer.ID, WorkflowID: customer.WorkflowID})
	if err != nil {
		return fmt.Errorf("failed to encode anonymize request: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = a.maxElapsed

	return backoff.RetryNotify(func() error {
		return a.send(ctx, body)
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		a.logger.WarnContext(ctx, "Anonymize request failed, retrying",
			"entity_id", customer.ID, "error", err, "wait", wait)
	})
}

func (a *httpAnonymizer) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build anonymize request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("anonymize request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("customer data service returned %d", resp.StatusCode)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrAnonymizerRejected, resp.StatusCode))
	}

	return nil
}
