package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docchat/internal/app"
	"docchat/internal/logging"
	"docchat/internal/model"
	"docchat/internal/platform/rabbitmq"
)

// ProvisionWorker consumes provisioning jobs and populates each document's
// vector namespace. A failed job is dropped; the next question about the
// document provisions it synchronously.
type ProvisionWorker struct {
	conn        *amqp.Connection
	provisioner app.EmbeddingProvisioner
	queueName   string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProvisionWorker(conn *amqp.Connection, provisioner app.EmbeddingProvisioner, queueName string) *ProvisionWorker {
	return &ProvisionWorker{
		conn:        conn,
		provisioner: provisioner,
		queueName:   queueName,
	}
}

func (w *ProvisionWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	// Embedding a document is slow; take one job at a time.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	logging.FromContext(ctx).Info("provision worker started", "queue", w.queueName)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *ProvisionWorker) handle(ctx context.Context, d amqp.Delivery) {
	log := logging.FromContext(ctx)

	var job model.ProvisionJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Error("decode provision job failed", "error", err)
		_ = d.Nack(false, false)
		return
	}

	log = log.With("document_id", job.DocumentID, "user_id", job.UserID)
	ctx = logging.WithLogger(ctx, log)
	if _, err := w.provisioner.EnsureEmbeddings(ctx, job.UserID, job.DocumentID); err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutting down: leave the job for the next consumer.
			_ = d.Nack(false, true)
			return
		}
		log.Error("provision job failed", "error", err)
		_ = d.Nack(false, false)
		return
	}

	log.Info("provision job done")
	_ = d.Ack(false)
}

func (w *ProvisionWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
