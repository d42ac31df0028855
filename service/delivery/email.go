package delivery

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	mail "github.com/wneessen/go-mail"

	"github.com/openhouselabs/dealdesk/service/config"
	"github.com/openhouselabs/dealdesk/service/normalize"
)

// MessageSender abstracts the SMTP transport so the email destination can be
// tested without a mail server.
type MessageSender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// smtpSender sends through a go-mail client.
type smtpSender struct {
	client *mail.Client
}

// NewSMTPSender creates a MessageSender backed by the configured SMTP host.
func NewSMTPSender(cfg config.SMTPConfig) (MessageSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return &smtpSender{client: client}, nil
}

func (s *smtpSender) Send(ctx context.Context, msg *mail.Msg) error {
	return s.client.DialAndSendWithContext(ctx, msg)
}

// EmailDestination dispatches the rendered document as an attachment on a
// templated HTML+plain-text summary of the transaction. Email failure is
// recoverable: it is reported and does not block later destinations.
type EmailDestination struct {
	sender MessageSender
	from   string
	to     string
	logger *slog.Logger
}

// NewEmailDestination creates the email destination.
func NewEmailDestination(sender MessageSender, from, to string, logger *slog.Logger) *EmailDestination {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &EmailDestination{
		sender: sender,
		from:   from,
		to:     to,
		logger: logger,
	}
}

func (d *EmailDestination) Name() string { return "email" }

// Deliver builds and sends the submission summary message.
func (d *EmailDestination) Deliver(ctx context.Context, job *Job) Result {
	msg := mail.NewMsg()
	if err := msg.From(d.from); err != nil {
		return failure(d.Name(), fmt.Sprintf("invalid sender address: %v", err))
	}
	if err := msg.To(d.to); err != nil {
		return failure(d.Name(), fmt.Sprintf("invalid recipient address: %v", err))
	}

	msg.Subject(emailSubject(job.Record))
	msg.SetBodyString(mail.TypeTextPlain, plainBody(job.Record))
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody(job))

	if err := msg.AttachReader(job.Doc.Filename, bytes.NewReader(job.Doc.Bytes)); err != nil {
		return failure(d.Name(), fmt.Sprintf("failed to attach document: %v", err))
	}

	// QR code linking to the submission status page. Optional: skipped on
	// encode failure, same as the rest of the message still going out.
	if job.StatusURL != "" {
		if png, err := qrcode.Encode(job.StatusURL, qrcode.Medium, 256); err == nil {
			if err := msg.EmbedReader("status-qr.png", bytes.NewReader(png)); err != nil {
				d.logger.Warn("failed to embed status QR code", "error", err)
			}
		} else {
			d.logger.Warn("failed to encode status QR code", "error", err)
		}
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		return failure(d.Name(), fmt.Sprintf("send failed: %v", err))
	}

	d.logger.Info("submission email sent",
		"to", d.to,
		"filename", job.Doc.Filename,
		"submission_id", job.SubmissionID,
	)
	return success(d.Name())
}

func emailSubject(rec *normalize.Record) string {
	subject := "New Transaction Submission"
	if rec.Property.Address != "" {
		subject += " - " + rec.Property.Address
	} else if rec.Property.MLSNumber != "" {
		subject += " - MLS " + rec.Property.MLSNumber
	}
	return subject
}

func plainBody(rec *normalize.Record) string {
	var b strings.Builder
	b.WriteString("A new transaction has been submitted.\n\n")
	writeLine := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	writeLine("Property", rec.Property.Address)
	writeLine("MLS Number", rec.Property.MLSNumber)
	writeLine("Sale Price", rec.Property.SalePrice)
	writeLine("Closing Date", rec.Property.ClosingDate)
	writeLine("Agent", rec.Agent.Name)
	writeLine("Role", rec.Agent.Role)
	writeLine("Total Commission", rec.Commission.TotalPct)
	writeLine("Title Company", rec.TitleCompany)
	for _, c := range rec.Clients {
		fmt.Fprintf(&b, "%s: %s\n", titleCase(c.Type), c.Name)
	}
	b.WriteString("\nThe contract summary is attached.\n")
	return b.String()
}

// titleCase renders "BUYER" as "Buyer" for the plain-text body.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

var emailTemplate = template.Must(template.New("submission").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>New Transaction Submission</h2>
  <table cellpadding="4">
    {{if .Record.Property.Address}}<tr><td><b>Property</b></td><td>{{.Record.Property.Address}}</td></tr>{{end}}
    {{if .Record.Property.MLSNumber}}<tr><td><b>MLS Number</b></td><td>{{.Record.Property.MLSNumber}}</td></tr>{{end}}
    {{if .Record.Property.SalePrice}}<tr><td><b>Sale Price</b></td><td>{{.Record.Property.SalePrice}}</td></tr>{{end}}
    {{if .Record.Property.ClosingDate}}<tr><td><b>Closing Date</b></td><td>{{.Record.Property.ClosingDate}}</td></tr>{{end}}
    {{if .Record.Agent.Name}}<tr><td><b>Agent</b></td><td>{{.Record.Agent.Name}} {{if .Record.Agent.Role}}({{.Record.Agent.Role}}){{end}}</td></tr>{{end}}
    {{if .Record.Commission.TotalPct}}<tr><td><b>Total Commission</b></td><td>{{.Record.Commission.TotalPct}}</td></tr>{{end}}
    {{if .Record.TitleCompany}}<tr><td><b>Title Company</b></td><td>{{.Record.TitleCompany}}</td></tr>{{end}}
    {{range .Record.Clients}}<tr><td><b>{{.Type}}</b></td><td>{{.Name}}</td></tr>{{end}}
  </table>
  <p>The contract summary is attached.</p>
  {{if .StatusURL}}
  <p>Track this submission: <a href="{{.StatusURL}}">{{.StatusURL}}</a></p>
  <p><img src="cid:status-qr.png" alt="Submission status QR code" width="128" height="128"></p>
  {{end}}
</body>
</html>`))

func htmlBody(job *Job) string {
	var buf bytes.Buffer
	data := struct {
		Record    *normalize.Record
		StatusURL string
	}{Record: job.Record, StatusURL: job.StatusURL}
	if err := emailTemplate.Execute(&buf, data); err != nil {
		// Fall back to the plain body wrapped in <pre>; the message still goes out.
		return "<pre>" + template.HTMLEscapeString(plainBody(job.Record)) + "</pre>"
	}
	return buf.String()
}
