package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/illegalcall/weight-insights/internal/apperror"
	"github.com/illegalcall/weight-insights/internal/config"
	"github.com/illegalcall/weight-insights/internal/insights"
	"github.com/illegalcall/weight-insights/internal/models"
)

// Runner executes one insights request.
type Runner interface {
	Run(ctx context.Context, userID string) (insights.Result, error)
}

// Worker consumes queued insights requests. Each message is run exactly
// once; a failed run is recorded, never retried.
type Worker struct {
	cfg       *config.Config
	runner    Runner
	statuses  *insights.StatusStore
	consumer  sarama.ConsumerGroup
	log       *slog.Logger
	ready     chan bool
	readyOnce sync.Once
}

func NewWorker(cfg *config.Config, runner Runner, statuses *insights.StatusStore, consumer sarama.ConsumerGroup, log *slog.Logger) *Worker {
	log.Info("Initializing new Worker")
	return &Worker{
		cfg:      cfg,
		runner:   runner,
		statuses: statuses,
		consumer: consumer,
		log:      log,
		ready:    make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	w.log.Info("Starting worker", "topics", topics)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for err := range w.consumer.Errors() {
			w.log.Error("Kafka consumer error received", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				w.log.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case <-w.ready:
		w.log.Info("Worker setup complete; consumer ready")
	case <-ctx.Done():
	}

	select {
	case sig := <-sigChan:
		w.log.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		w.log.Info("Context cancelled; shutting down worker")
	}

	cancel()
	<-done
	w.log.Info("Worker shut down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	w.readyOnce.Do(func() { close(w.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.processRequest(session.Context(), message); err != nil {
			w.log.Error("Failed to process insights request", "offset", message.Offset, "error", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) processRequest(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var req models.InsightsRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("failed to parse insights request: %w", err)
	}
	w.log.Info("Processing insights request", "request_id", req.RequestID, "user_id", req.UserID)

	status := models.InsightsRequestStatus{RequestID: req.RequestID, UserID: req.UserID}

	res, runErr := w.runner.Run(ctx, req.UserID)
	if runErr != nil {
		status.Status = models.RequestStatusFailed
		status.Error = apperror.UserMessage(runErr)
		status.LogID = res.LogID
		w.log.Warn("Insights request failed", "request_id", req.RequestID, "error", runErr)
	} else {
		status.Status = models.RequestStatusCompleted
		status.Message = res.Message
		status.LogID = res.LogID
	}

	// Store the outcome even when the session is shutting down.
	if err := w.statuses.Save(context.WithoutCancel(ctx), status); err != nil {
		return err
	}
	return runErr
}
