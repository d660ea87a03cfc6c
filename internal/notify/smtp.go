package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/projecthub/projecthub/internal/config"
)

// implicitTLSPort is the SMTPS port; every other port upgrades with STARTTLS.
const implicitTLSPort = 465

// SMTPDispatcher sends mail through an SMTP relay. The deadline of the context
// passed to Send bounds the whole conversation including the dial.
type SMTPDispatcher struct {
	cfg      config.SMTPConfig
	fromName string
	// tlsConfig is overridden in tests.
	tlsConfig *tls.Config
}

// NewSMTPDispatcher creates a dispatcher for the given relay.
func NewSMTPDispatcher(cfg config.SMTPConfig, fromName string) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:      cfg,
		fromName: fromName,
		tlsConfig: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}
}

// Send delivers msg. When UseTLS is set the connection is encrypted, either
// with implicit TLS on port 465 or with a mandatory STARTTLS upgrade.
func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("smtp: message has no recipient")
	}
	body, err := d.compose(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("smtp set deadline: %w", err)
		}
	}
	// Closing the connection unblocks any pending read or write on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if d.cfg.UseTLS && d.cfg.Port == implicitTLSPort {
		conn = tls.Client(conn, d.tlsConfig)
	}

	c, err := smtp.NewClient(conn, d.cfg.Host)
	if err != nil {
		return wrapCtx(ctx, fmt.Errorf("smtp new client: %w", err))
	}
	defer c.Close()

	if d.cfg.UseTLS && d.cfg.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("smtp: server does not support STARTTLS")
		}
		if err := c.StartTLS(d.tlsConfig); err != nil {
			return wrapCtx(ctx, fmt.Errorf("smtp STARTTLS: %w", err))
		}
	}

	if d.cfg.Username != "" {
		auth := smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return wrapCtx(ctx, fmt.Errorf("smtp auth: %w", err))
		}
	}
	if err := c.Mail(d.cfg.From); err != nil {
		return wrapCtx(ctx, fmt.Errorf("smtp MAIL FROM: %w", err))
	}
	if err := c.Rcpt(msg.To); err != nil {
		return wrapCtx(ctx, fmt.Errorf("smtp RCPT TO %s: %w", msg.To, err))
	}
	w, err := c.Data()
	if err != nil {
		return wrapCtx(ctx, fmt.Errorf("smtp DATA: %w", err))
	}
	if _, err := w.Write(body); err != nil {
		return wrapCtx(ctx, fmt.Errorf("smtp write: %w", err))
	}
	if err := w.Close(); err != nil {
		return wrapCtx(ctx, fmt.Errorf("smtp end of data: %w", err))
	}
	return c.Quit()
}

// wrapCtx prefers the context error when the connection was torn down by it.
func wrapCtx(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// compose renders a multipart/alternative message with text and HTML parts.
func (d *SMTPDispatcher) compose(msg Message) ([]byte, error) {
	from := (&mail.Address{Name: d.fromName, Address: d.cfg.From}).String()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	var head bytes.Buffer
	fmt.Fprintf(&head, "From: %s\r\n", from)
	fmt.Fprintf(&head, "To: %s\r\n", msg.To)
	fmt.Fprintf(&head, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&head, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&head, "Message-ID: <%s@%s>\r\n", uuid.New().String(), d.cfg.Host)
	head.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&head, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("compose email: %w", err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("compose email: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("compose email: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("compose email: %w", err)
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}
