package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/movielix/auth-api/pkg/jobs"
	"github.com/movielix/auth-api/pkg/mailer"
)

// NotifierConfig tunes the background dispatch of reset codes.
type NotifierConfig struct {
	DispatchTimeout time.Duration
	Workers         int
	MaxRetries      int
}

type otpMailPayload struct {
	To   string
	Code int
}

// NotifierService delivers OTP mail off the request path on a worker queue.
// Each dispatch is bounded by a timeout so a slow transport cannot stall the
// issuing call; failed sends are retried by the queue.
type NotifierService struct {
	queue   *jobs.Queue
	sender  mailer.Sender
	timeout time.Duration
	logger  *zap.Logger
}

// NewNotifierService builds the service and its backing queue. Start must be
// called before any notification is enqueued.
func NewNotifierService(sender mailer.Sender, logger *zap.Logger, cfg NotifierConfig) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}

	svc := &NotifierService{sender: sender, timeout: cfg.DispatchTimeout, logger: logger}
	svc.queue = jobs.NewQueue("otp-mail", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return svc
}

// Start launches the queue workers.
func (s *NotifierService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotifierService) Stop() {
	s.queue.Stop()
}

// NotifyOtp enqueues a reset-code mail for background delivery.
func (s *NotifierService) NotifyOtp(email string, code int) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "otp_mail",
		Payload: otpMailPayload{To: email, Code: code},
	})
}

func (s *NotifierService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(otpMailPayload)
	if !ok {
		s.logger.Error("unexpected payload on otp-mail queue", zap.String("job_id", job.ID))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	subject := "OTP for Forgot Password request"
	body := fmt.Sprintf("This is the OTP for your Forgot Password request: %06d", payload.Code)
	return s.sender.Send(ctx, payload.To, subject, body)
}
