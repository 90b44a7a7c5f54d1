package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Sink is the fire-and-forget notification surface. Delivery failures are
// logged, never returned to lifecycle callers.
type Sink interface {
	Enqueue(ctx context.Context, recipientEmail, subject, body string, userID *int64)
}

type mailJob struct {
	RecipientEmail string
	Subject        string
	Body           string
	UserID         *int64
}

type worker struct {
	id         int
	workerPool chan chan mailJob
	jobChannel chan mailJob
	logger     *slog.Logger
}

func newWorker(id int, workerPool chan chan mailJob, logger *slog.Logger) *worker {
	return &worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan mailJob),
		logger:     logger,
	}
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup, deliver func(mailJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.workerPool <- w.jobChannel

			select {
			case job := <-w.jobChannel:
				w.logger.Debug("worker delivering mail", "worker_id", w.id, "recipient", job.RecipientEmail)
				deliver(job)
			case <-ctx.Done():
				w.logger.Debug("mail worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

type MailerConfig struct {
	MailAPIURL     string
	SenderAddress  string
	RequestTimeout time.Duration
	MaxWorkers     int
	QueueSize      int
}

// Mailer delivers emails through the mail API on a bounded worker pool. A
// full queue drops the message with a warning; notifications never apply
// backpressure to the lifecycle engine.
type Mailer struct {
	apiURL        string
	senderAddress string
	httpClient    *http.Client
	logger        *slog.Logger

	jobQueue   chan mailJob
	workerPool chan chan mailJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewMailer(config MailerConfig, logger *slog.Logger) *Mailer {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	m := &Mailer{
		apiURL:        config.MailAPIURL,
		senderAddress: config.SenderAddress,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan mailJob, queueSize),
		workerPool: make(chan chan mailJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	m.startWorkerPool()

	return m
}

func (m *Mailer) startWorkerPool() {
	m.once.Do(func() {
		for i := 0; i < m.maxWorkers; i++ {
			w := newWorker(i, m.workerPool, m.logger)
			w.start(m.ctx, &m.wg, m.deliver)
		}

		m.wg.Add(1)
		go m.dispatch()

		m.logger.Info("mailer worker pool started",
			"max_workers", m.maxWorkers,
			"queue_size", cap(m.jobQueue))
	})
}

func (m *Mailer) dispatch() {
	defer m.wg.Done()

	for {
		select {
		case job := <-m.jobQueue:
			select {
			case jobChannel := <-m.workerPool:
				select {
				case jobChannel <- job:
				case <-m.ctx.Done():
					m.logger.Info("mail dispatcher shutting down")
					return
				}
			case <-m.ctx.Done():
				m.logger.Info("mail dispatcher shutting down")
				return
			}
		case <-m.ctx.Done():
			m.logger.Info("mail dispatcher shutting down")
			return
		}
	}
}

func (m *Mailer) Shutdown() {
	m.logger.Info("shutting down mailer")
	m.cancel()
	m.wg.Wait()
	m.logger.Info("mailer shutdown complete")
}

// Enqueue queues an email without blocking. Dropped messages are logged;
// correctness of the lifecycle never depends on a notification landing.
func (m *Mailer) Enqueue(ctx context.Context, recipientEmail, subject, body string, userID *int64) {
	job := mailJob{
		RecipientEmail: recipientEmail,
		Subject:        subject,
		Body:           body,
		UserID:         userID,
	}

	select {
	case m.jobQueue <- job:
		m.logger.Debug("mail queued", "recipient", recipientEmail, "subject", subject)
	default:
		m.logger.Warn("mail queue full, dropping notification",
			"recipient", recipientEmail,
			"subject", subject,
			"queue_capacity", cap(m.jobQueue))
	}
}

func (m *Mailer) deliver(job mailJob) {
	payload := map[string]interface{}{
		"from":    m.senderAddress,
		"to":      job.RecipientEmail,
		"subject": job.Subject,
		"body":    job.Body,
	}
	if job.UserID != nil {
		payload["user_id"] = *job.UserID
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("failed to marshal mail payload", "error", err, "recipient", job.RecipientEmail)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		m.logger.Error("failed to build mail request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Error("mail delivery failed", "error", err, "recipient", job.RecipientEmail)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.Error("mail API returned error status",
			"status", resp.StatusCode,
			"recipient", job.RecipientEmail)
		return
	}

	m.logger.Info("mail delivered", "recipient", job.RecipientEmail, "subject", job.Subject)
}

var _ Sink = (*Mailer)(nil)
