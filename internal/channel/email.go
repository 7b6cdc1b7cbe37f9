package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/okonski/portalwatch/internal/calendar"
	"github.com/okonski/portalwatch/internal/event"
)

// EmailConfig configures the SMTP adapter.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

// Email composes a message per event and hands it to the SMTP collaborator.
type Email struct {
	client *mail.Client
	cfg    EmailConfig
	log    zerolog.Logger
}

// NewEmail creates the email adapter.
func NewEmail(cfg EmailConfig, log zerolog.Logger) (*Email, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("sender and at least one recipient are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	opts := []mail.Option{
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	return &Email{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("channel", "email").Logger(),
	}, nil
}

func (e *Email) Name() string { return "email" }

// Send composes and delivers one notification message.
func (e *Email) Send(ctx context.Context, evt event.Event) Result {
	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return Reject(fmt.Sprintf("invalid sender: %v", err))
	}
	if err := msg.To(e.cfg.To...); err != nil {
		return Reject(fmt.Sprintf("invalid recipient: %v", err))
	}
	msg.Subject("Portal event: " + evt.Title)
	msg.SetBodyString(mail.TypeTextPlain, FormatEventMessage(evt))

	// Scheduled events carry a calendar invite so the recipient can add
	// them with one click.
	if ics := calendar.GenerateICS(evt); ics != "" {
		if err := msg.AttachReader("event.ics", strings.NewReader(ics),
			mail.WithFileContentType(mail.ContentType("text/calendar"))); err != nil {
			return Reject(fmt.Sprintf("attaching invite: %v", err))
		}
	}

	return classifySMTP(e.client.DialAndSendWithContext(ctx, msg))
}

// classifySMTP maps the SMTP collaborator's failure modes onto the
// dispatcher's retry/skip taxonomy. Network-level dial failures are
// treated as transient; protocol rejections follow the server's verdict.
func classifySMTP(err error) Result {
	if err == nil {
		return Ok()
	}
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		if sendErr.IsTemp() {
			return Retry(sendErr.Error())
		}
		return Reject(sendErr.Error())
	}
	return Retry(err.Error())
}
