package services

import (
	"context"
	"encoding/json"
	"fmt"

	"time"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/broker"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
	"github.com/api-sage/txn-settlement-processor/internal/logger"
	"github.com/api-sage/txn-settlement-processor/pkg/backoff"
	"github.com/api-sage/txn-settlement-processor/pkg/metrics"
)

// DispatchService serializes verification requests onto the message
// channel. Messages are keyed by account id and carry the transaction
// id as the idempotency token, so the verifier side can deduplicate
// republished requests.
type DispatchService struct {
	publisher   broker.Publisher
	queue       string
	maxAttempts int
	backoffBase time.Duration
	collector   *metrics.Collector
}

func NewDispatchService(
	publisher broker.Publisher,
	queue string,
	maxAttempts int,
	backoffBase time.Duration,
	collector *metrics.Collector,
) *DispatchService {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return &DispatchService{
		publisher:   publisher,
		queue:       queue,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		collector:   collector,
	}
}

func (s *DispatchService) Dispatch(ctx context.Context, request domain.TransactionRequest) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal transaction request: %w", err)
	}

	msg := broker.Message{
		Key:       request.AccountID,
		MessageID: request.TransactionID,
		Body:      body,
	}

	var publishErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			s.collector.RecordDispatchRetry()
			if err := backoff.SleepWithContext(ctx, backoff.ExponentialWithJitter(s.backoffBase, attempt)); err != nil {
				return err
			}
		}

		publishErr = s.publisher.Publish(ctx, s.queue, msg)
		if publishErr == nil {
			return nil
		}

		logger.Error("dispatch service publish attempt failed", publishErr, logger.Fields{
			"transactionId": request.TransactionID,
			"attempt":       attempt + 1,
		})
	}

	s.collector.RecordDispatchFailure()
	return fmt.Errorf("dispatch after %d attempts: %w", s.maxAttempts, publishErr)
}
