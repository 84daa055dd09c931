package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pass-service/internal/util"

	"go.uber.org/zap"
)

// DispatchClient enqueues delayed callbacks on the external dispatch
// service. Delivery is at-least-once at best; the claim protocol is what
// makes duplicate or missing triggers safe.
type DispatchClient interface {
	EnqueueIssuanceTrigger(ctx context.Context, delay time.Duration, issuanceID int64) error
	EnqueueRebuyReminder(ctx context.Context, delay time.Duration, passID int64) error
}

// HTTPDispatchClient talks to the dispatch service over its HTTP enqueue API
type HTTPDispatchClient struct {
	baseURL     string
	callbackURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewHTTPDispatchClient creates a new dispatch client. callbackURL is the
// externally reachable base URL of this service.
func NewHTTPDispatchClient(baseURL, callbackURL string) *HTTPDispatchClient {
	return &HTTPDispatchClient{
		baseURL:     baseURL,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      util.GetLogger(),
	}
}

type dispatchRequest struct {
	DelaySeconds int64                  `json:"delay_seconds"`
	URL          string                 `json:"url"`
	Payload      map[string]interface{} `json:"payload"`
}

// EnqueueIssuanceTrigger schedules the push trigger for one issuance
func (c *HTTPDispatchClient) EnqueueIssuanceTrigger(ctx context.Context, delay time.Duration, issuanceID int64) error {
	return c.enqueue(ctx, dispatchRequest{
		DelaySeconds: int64(delay.Seconds()),
		URL:          fmt.Sprintf("%s/api/v1/issuances/%d/trigger", c.callbackURL, issuanceID),
		Payload:      map[string]interface{}{"scheduled_issuance_id": issuanceID},
	})
}

// EnqueueRebuyReminder schedules the delayed rebuy email for a pass
func (c *HTTPDispatchClient) EnqueueRebuyReminder(ctx context.Context, delay time.Duration, passID int64) error {
	return c.enqueue(ctx, dispatchRequest{
		DelaySeconds: int64(delay.Seconds()),
		URL:          fmt.Sprintf("%s/api/v1/passes/%d/rebuy", c.callbackURL, passID),
		Payload:      map[string]interface{}{"pass_id": passID},
	})
}

func (c *HTTPDispatchClient) enqueue(ctx context.Context, dr dispatchRequest) error {
	body, err := json.Marshal(dr)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/schedule", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch service rejected enqueue: status=%d", resp.StatusCode)
	}

	c.logger.Debug("Dispatch enqueued",
		zap.String("url", dr.URL),
		zap.Int64("delay_seconds", dr.DelaySeconds))
	return nil
}
