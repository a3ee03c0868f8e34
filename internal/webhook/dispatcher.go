package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	dbpkg "trackverse/internal/db"
)

const (
	// maxAttempts caps total delivery attempts per record.
	maxAttempts = 3

	// maxBodyChars is how much of a subscriber's response body gets
	// stored with the delivery record.
	maxBodyChars = 1000

	testTimeout = 10 * time.Second

	// retryBatchSize bounds how many due deliveries one retry pass
	// picks up.
	retryBatchSize = 100
)

// Dispatcher fans domain events out to subscriber webhooks and drives
// the retry schedule.
type Dispatcher struct {
	store   Store
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
}

// NewDispatcher creates a dispatcher delivering through the given
// store with the given per-delivery timeout.
func NewDispatcher(store Store, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		store:   store,
		client:  &http.Client{},
		timeout: timeout,
		now:     time.Now,
	}
}

// envelope is the wire body of every delivery POST.
type envelope struct {
	ID        string            `json:"id"`
	Event     string            `json:"event"`
	Data      datatypes.JSONMap `json:"data"`
	CreatedAt string            `json:"createdAt"`
}

// Queue creates a pending delivery record for one webhook+event+payload
// triple. It does not attempt delivery.
func (d *Dispatcher) Queue(wh *dbpkg.Webhook, event string, payload datatypes.JSONMap) (*dbpkg.WebhookDelivery, error) {
	delivery := &dbpkg.WebhookDelivery{
		ID:        uuid.NewString(),
		CreatedAt: d.now(),
		WebhookID: wh.ID,
		Event:     event,
		Payload:   payload,
		Status:    dbpkg.DeliveryStatusPending,
	}
	if err := d.store.CreateDelivery(delivery); err != nil {
		return nil, fmt.Errorf("queue delivery: %w", err)
	}
	return delivery, nil
}

// Process performs one delivery attempt: sign, POST, record the
// outcome, and schedule the next retry if one is owed. Transport
// errors and non-2xx responses land on the same failed path; they are
// recorded, never returned. The returned error covers persistence
// problems only.
func (d *Dispatcher) Process(delivery *dbpkg.WebhookDelivery, wh *dbpkg.Webhook) error {
	body, err := json.Marshal(envelope{
		ID:        delivery.ID,
		Event:     delivery.Event,
		Data:      delivery.Payload,
		CreatedAt: delivery.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal delivery %s: %w", delivery.ID, err)
	}

	start := d.now()
	code, respBody, reqErr := d.post(wh.URL, body, map[string]string{
		"X-TrackVerse-Signature": Sign(body, wh.Secret),
		"X-TrackVerse-Event":     delivery.Event,
		"X-TrackVerse-Delivery":  delivery.ID,
	}, d.timeout)
	finished := d.now()

	delivery.Attempts++
	delivery.DurationMs = finished.Sub(start).Milliseconds()
	delivery.ResponseCode = nil
	delivery.ResponseBody = ""

	success := false
	if reqErr == nil {
		delivery.ResponseCode = &code
		delivery.ResponseBody = respBody
		success = code >= 200 && code < 300
	}

	outcome := OutcomeTerminalFailure
	if success {
		delivery.Status = dbpkg.DeliveryStatusSuccess
		delivery.NextRetryAt = nil
		outcome = OutcomeSuccess
	} else {
		delivery.Status = dbpkg.DeliveryStatusFailed
		if delivery.Attempts < maxAttempts {
			// Backoff doubles per attempt: 2, 4 minutes after
			// attempts 1 and 2. After attempt 3 nothing is scheduled.
			next := finished.Add(time.Duration(1<<delivery.Attempts) * time.Minute)
			delivery.NextRetryAt = &next
			outcome = OutcomeRetrying
		} else {
			delivery.NextRetryAt = nil
		}
	}

	observeDelivery(delivery.Event, delivery.Status, delivery.DurationMs)

	if err := d.store.SaveDelivery(delivery); err != nil {
		return fmt.Errorf("save delivery %s: %w", delivery.ID, err)
	}
	if err := d.store.RecordAttempt(wh.ID, delivery.ResponseCode, finished, outcome); err != nil {
		return fmt.Errorf("record attempt for webhook %s: %w", wh.ID, err)
	}
	return nil
}

// Trigger fans event out to every active, subscribed webhook in the
// given list. Each match is queued and then delivered on its own
// goroutine; the caller gets the queued records back immediately and
// never sees delivery errors.
func (d *Dispatcher) Trigger(webhooks []dbpkg.Webhook, event string, payload datatypes.JSONMap) []*dbpkg.WebhookDelivery {
	var queued []*dbpkg.WebhookDelivery
	for i := range webhooks {
		wh := webhooks[i]
		if wh.Status != dbpkg.WebhookStatusActive || !wh.Subscribed(event) {
			continue
		}

		delivery, err := d.Queue(&wh, event, payload)
		if err != nil {
			log.Printf("webhook %s: %v", wh.ID, err)
			continue
		}
		queued = append(queued, delivery)

		go func() {
			if err := d.Process(delivery, &wh); err != nil {
				log.Printf("webhook %s delivery %s: %v", wh.ID, delivery.ID, err)
			}
		}()
	}
	return queued
}

// TestResult is the outcome of a registration-time endpoint check.
type TestResult struct {
	Success    bool   `json:"success"`
	StatusCode *int   `json:"statusCode,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Test sends a synthetic test event to the webhook URL with a short
// timeout. It runs outside the delivery pipeline: nothing is queued or
// retried, and the result goes straight back to the caller.
func (d *Dispatcher) Test(wh *dbpkg.Webhook) TestResult {
	body, err := json.Marshal(envelope{
		ID:    uuid.NewString(),
		Event: EventTest,
		Data: datatypes.JSONMap{
			"message": "TrackVerse webhook test",
		},
		CreatedAt: d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return TestResult{Error: err.Error()}
	}

	start := d.now()
	code, _, reqErr := d.post(wh.URL, body, map[string]string{
		"X-TrackVerse-Signature": Sign(body, wh.Secret),
		"X-TrackVerse-Event":     EventTest,
	}, testTimeout)
	duration := d.now().Sub(start).Milliseconds()

	if reqErr != nil {
		return TestResult{DurationMs: duration, Error: reqErr.Error()}
	}
	return TestResult{
		Success:    code >= 200 && code < 300,
		StatusCode: &code,
		DurationMs: duration,
	}
}

// RunRetriesOnce re-attempts failed deliveries whose retry time has
// arrived. Returns how many were picked up.
func (d *Dispatcher) RunRetriesOnce() (int, error) {
	due, err := d.store.DueRetries(d.now(), retryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("scan due retries: %w", err)
	}

	processed := 0
	for i := range due {
		delivery := due[i]
		wh, err := d.store.GetWebhook(delivery.WebhookID)
		if err != nil {
			log.Printf("retry delivery %s: load webhook %s: %v", delivery.ID, delivery.WebhookID, err)
			continue
		}
		if err := d.Process(&delivery, wh); err != nil {
			log.Printf("retry delivery %s: %v", delivery.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// StartRetryWorker launches the retry driver: a background goroutine
// that scans for due deliveries on a fixed interval. The backoff
// computation in Process only stores when to retry; this worker is
// what actually re-attempts.
func (d *Dispatcher) StartRetryWorker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if _, err := d.RunRetriesOnce(); err != nil {
				log.Printf("retry worker: %v", err)
			}
		}
	}()
}

// post issues one signed delivery request and returns the status code
// plus the response body truncated to maxBodyChars. The body is read
// before the timeout context is released.
func (d *Dispatcher) post(url string, body []byte, headers map[string]string, timeout time.Duration) (int, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyChars))
	// Drain whatever is left so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(b), nil
}
