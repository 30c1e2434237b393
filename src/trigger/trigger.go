// Package trigger hands a batch off to the downstream processor.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProcessBatchPath is the downstream endpoint that computes one batch.
const ProcessBatchPath = "/api/process-batch"

type Trigger interface {
	Trigger(ctx context.Context, batchID int) error
}

// HTTPTrigger calls <baseURL>/api/process-batch?batchId=N with the shared bearer token.
// The response status and body are not inspected.
type HTTPTrigger struct {
	client  *http.Client
	baseURL string
	secret  string
}

func NewHTTPTrigger(client *http.Client, baseURL, secret string) *HTTPTrigger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTrigger{client: client, baseURL: baseURL, secret: secret}
}

func (t *HTTPTrigger) URL(batchID int) string {
	q := url.Values{}
	q.Set("batchId", strconv.Itoa(batchID))
	return t.baseURL + ProcessBatchPath + "?" + q.Encode()
}

func (t *HTTPTrigger) Trigger(ctx context.Context, batchID int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(batchID), nil)
	if err != nil {
		return fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.secret)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to trigger batch %d: %w", batchID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ProcessingJob is the queue message for one batch.
type ProcessingJob struct {
	JobID     string    `json:"job_id"`
	BatchID   int       `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
}

// QueueTrigger pushes jobs onto a redis list consumed with BRPOP by workers.
type QueueTrigger struct {
	redis *redis.Client
	queue string
}

func NewQueueTrigger(client *redis.Client, queue string) *QueueTrigger {
	return &QueueTrigger{redis: client, queue: queue}
}

func (t *QueueTrigger) Trigger(ctx context.Context, batchID int) error {
	job := ProcessingJob{
		JobID:     uuid.New().String(),
		BatchID:   batchID,
		CreatedAt: time.Now(),
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := t.redis.LPush(ctx, t.queue, jobData).Err(); err != nil {
		return fmt.Errorf("failed to push job to queue: %w", err)
	}
	return nil
}
