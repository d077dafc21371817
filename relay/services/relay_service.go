package services

import (
	"context"
	"time"

	"github.com/qolzam/telar/apps/relay/internal/auth/replay"
	"github.com/qolzam/telar/apps/relay/internal/auth/signature"
	"github.com/qolzam/telar/apps/relay/internal/pkg/log"
	"github.com/qolzam/telar/apps/relay/internal/platform/email"
	relayErrors "github.com/qolzam/telar/apps/relay/relay/errors"
	"github.com/qolzam/telar/apps/relay/relay/models"
	"github.com/qolzam/telar/apps/relay/relay/templates"
	"github.com/qolzam/telar/apps/relay/relay/validation"
)

// OutcomeSent is reported to the Observer for a delivered message
const OutcomeSent = "SENT"

// ServiceConfig holds the relay settings the service needs
type ServiceConfig struct {
	From              string
	FromName          string
	AppName           string
	MaxAttachmentSize int64
	SummaryFields     []string
}

// Service runs a relay request through an ordered list of checks and then
// sends the email. The first failing step ends the request.
type Service struct {
	verifier  *signature.Verifier
	freshness signature.FreshnessChecker
	replay    replay.Guard
	sender    email.Sender
	renderer  *templates.Renderer
	config    ServiceConfig
	observer  Observer
	now       func() time.Time
	pipeline  []step
}

// relayState carries values between steps of one request.
type relayState struct {
	req       *models.RelayRequest
	timestamp int64
	payload   map[string]any
	digest    string
	to        []string
	cc        []string
	record    models.Record
	html      string
}

type step struct {
	name string
	run  func(ctx context.Context, st *relayState) error
}

// NewService creates a relay service. A nil guard disables replay checks.
func NewService(
	verifier *signature.Verifier,
	freshness signature.FreshnessChecker,
	guard replay.Guard,
	sender email.Sender,
	renderer *templates.Renderer,
	config ServiceConfig,
) *Service {
	if guard == nil {
		guard = replay.Disabled{}
	}
	s := &Service{
		verifier:  verifier,
		freshness: freshness,
		replay:    guard,
		sender:    sender,
		renderer:  renderer,
		config:    config,
		observer:  noopObserver{},
		now:       time.Now,
	}
	s.pipeline = []step{
		{"required_fields", s.checkRequired},
		{"signature", s.verifySignature},
		{"freshness", s.checkFreshness},
		{"recipients", s.checkRecipients},
		{"attachment", s.checkAttachment},
		{"record", s.buildRecord},
		{"render", s.render},
		{"replay", s.checkReplay},
		{"send", s.send},
	}
	return s
}

// WithObserver sets the outcome observer
func (s *Service) WithObserver(observer Observer) *Service {
	if observer != nil {
		s.observer = observer
	}
	return s
}

// Relay implements RelayService
func (s *Service) Relay(ctx context.Context, req *models.RelayRequest) error {
	if req == nil {
		return relayErrors.NewMissingFieldError("to")
	}

	st := &relayState{req: req}
	for _, stage := range s.pipeline {
		if err := stage.run(ctx, st); err != nil {
			relayErr := relayErrors.FromError(err)
			s.observer.ObserveOutcome(relayErr.Code)
			if relayErr.Kind == relayErrors.KindDelivery || relayErr.Kind == relayErrors.KindInternal {
				log.ErrorWithContext(ctx, "Relay failed at %s: %v", stage.name, relayErr)
			} else {
				log.WarnWithContext(ctx, "Relay rejected at %s: %v", stage.name, relayErr)
			}
			return relayErr
		}
	}

	s.observer.ObserveOutcome(OutcomeSent)
	log.InfoWithContext(ctx, "Relayed %q to %d recipient(s)", req.Submission.Subject, len(st.to)+len(st.cc))
	return nil
}

func (s *Service) checkRequired(_ context.Context, st *relayState) error {
	if err := validation.ValidateRequired(st.req.Submission); err != nil {
		return err
	}
	ts, err := signature.ParseTimestamp(st.req.Submission.Timestamp)
	if err != nil {
		return err
	}
	st.timestamp = ts
	return nil
}

func (s *Service) verifySignature(_ context.Context, st *relayState) error {
	payload, err := signature.ParsePayload(st.req.Submission.Payload)
	if err != nil {
		return err
	}
	canonical, err := signature.Canonicalize(payload, st.timestamp)
	if err != nil {
		return err
	}
	if !s.verifier.VerifyCanonical(canonical, st.req.Submission.Signature) {
		return signature.ErrInvalidSignature
	}
	st.payload = payload
	st.digest = s.verifier.Digest(canonical)
	return nil
}

func (s *Service) checkFreshness(_ context.Context, st *relayState) error {
	return s.freshness.Check(st.timestamp)
}

func (s *Service) checkReplay(ctx context.Context, st *relayState) error {
	return s.replay.Remember(ctx, st.digest, st.timestamp)
}

func (s *Service) checkRecipients(_ context.Context, st *relayState) error {
	to, cc, err := validation.ValidateRecipients(st.req.Submission.To, st.req.Submission.Cc)
	if err != nil {
		return err
	}
	st.to, st.cc = to, cc
	return nil
}

func (s *Service) checkAttachment(_ context.Context, st *relayState) error {
	att := st.req.Attachment
	if att == nil || s.config.MaxAttachmentSize <= 0 {
		return nil
	}
	if att.Size > s.config.MaxAttachmentSize || int64(len(att.Content)) > s.config.MaxAttachmentSize {
		return relayErrors.NewAttachmentTooLargeError(att.Size, s.config.MaxAttachmentSize)
	}
	return nil
}

func (s *Service) buildRecord(_ context.Context, st *relayState) error {
	record, err := templates.BuildRecord(st.payload, s.config.SummaryFields)
	if err != nil {
		return relayErrors.NewValidationError(relayErrors.CodeBadPayload, "Invalid payload", err)
	}
	st.record = record
	return nil
}

func (s *Service) render(_ context.Context, st *relayState) error {
	html, err := s.renderer.Render(templates.EmailData{
		AppName:     s.config.AppName,
		Subject:     st.req.Submission.Subject,
		Text:        st.req.Submission.Text,
		SubmittedAt: s.now().UTC().Format(time.RFC1123),
		Fields:      st.record.Fields,
	})
	if err != nil {
		return relayErrors.NewSystemError(err)
	}
	st.html = html
	return nil
}

func (s *Service) send(ctx context.Context, st *relayState) error {
	msg := email.Message{
		From:     s.config.From,
		FromName: s.config.FromName,
		To:       st.to,
		Cc:       st.cc,
		Subject:  st.req.Submission.Subject,
		Text:     st.req.Submission.Text,
		HTML:     st.html,
	}
	if att := st.req.Attachment; att != nil {
		msg.Attachments = []email.Attachment{{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     att.Content,
		}}
	}

	start := time.Now()
	err := s.sender.Send(ctx, msg)
	s.observer.ObserveSend(time.Since(start))
	if err == nil {
		return nil
	}

	// Nothing was delivered, so the same signed request may be retried.
	if forgetErr := s.replay.Forget(ctx, st.digest); forgetErr != nil {
		log.WarnWithContext(ctx, "Failed to release replay entry: %v", forgetErr)
	}
	return relayErrors.NewDeliveryError(err)
}
