package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender and EmailSender keep the vendor clients swappable in tests.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, plainText, html string) error
}

type TwilioSMSSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSMSSender(accountSID, authToken, from string) *TwilioSMSSender {
	return &TwilioSMSSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
	}
}

func (s *TwilioSMSSender) SendSMS(_ context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)
	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("%w: twilio: %v", utils.ErrExternalServiceFailure, err)
	}
	return nil
}

type SendGridEmailSender struct {
	client   *sendgrid.Client
	fromName string
	from     string
	sandbox  bool
}

func NewSendGridEmailSender(apiKey, fromName, from string, sandbox bool) *SendGridEmailSender {
	return &SendGridEmailSender{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		from:     from,
		sandbox:  sandbox,
	}
}

func (s *SendGridEmailSender) SendEmail(ctx context.Context, toName, toEmail, subject, plainText, html string) error {
	msg := mail.NewSingleEmail(mail.NewEmail(s.fromName, s.from), subject, mail.NewEmail(toName, toEmail), plainText, html)
	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: sendgrid: %v", utils.ErrExternalServiceFailure, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid status %d", utils.ErrExternalServiceFailure, resp.StatusCode)
	}
	return nil
}

// NotificationService sends the side-channel messages around a booking.
// Either sender may be nil, in which case that channel is skipped.
type NotificationService struct {
	sms   SMSSender
	email EmailSender
}

func NewNotificationService(sms SMSSender, email EmailSender) *NotificationService {
	return &NotificationService{sms: sms, email: email}
}

// NotifyBookingConfirmed texts the requester the confirmed worker's contact.
func (n *NotificationService) NotifyBookingConfirmed(ctx context.Context, to string, contact WorkerContact, bookingID string) error {
	if n == nil || n.sms == nil || to == "" {
		return nil
	}
	if !utils.IsE164(to) {
		return fmt.Errorf("contact number %q is not E.164", to)
	}
	body := fmt.Sprintf(constants.ConfirmationSMSTemplate, contact.Name, bookingID, contact.PhoneNumber)
	return n.sms.SendSMS(ctx, to, body)
}

// AlertPartialDispatch emails ops when some records of a fan-out are live
// while others were never created.
func (n *NotificationService) AlertPartialDispatch(ctx context.Context, result *DispatchResult) error {
	if n == nil || n.email == nil || result == nil {
		return nil
	}
	subject := fmt.Sprintf(constants.EmailSubjectPartialDispatch, result.BookingID)

	var plain, html strings.Builder
	fmt.Fprintf(&plain, "Booking %s was only partially dispatched.\n\nLive records for workers: %v\n\nFailed:\n",
		result.BookingID, result.Succeeded)
	fmt.Fprintf(&html, "<p>Booking <b>%s</b> was only partially dispatched.</p><p>Live records for workers: %v</p><ul>",
		result.BookingID, result.Succeeded)
	for _, f := range result.Failed {
		fmt.Fprintf(&plain, "- worker %d: %s\n", f.WorkerID, f.Error)
		fmt.Fprintf(&html, "<li>worker %d: %s</li>", f.WorkerID, f.Error)
	}
	html.WriteString("</ul>")

	return n.email.SendEmail(ctx, constants.OpsTeamName, utils.OpsTeamEmail, subject, plain.String(), html.String())
}
