package notify

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/projecthub/projecthub/internal/config"
)

// ---------------------------------------------------------------------------
// Fake SMTP server
// ---------------------------------------------------------------------------

type fakeSMTP struct {
	port     int
	received chan string
	commands chan string
}

// startFakeSMTP accepts one connection and speaks just enough SMTP for
// net/smtp. When silent is true it never sends the greeting.
func startFakeSMTP(t *testing.T, extensions []string, silent bool) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	f := &fakeSMTP{
		port:     ln.Addr().(*net.TCPAddr).Port,
		received: make(chan string, 1),
		commands: make(chan string, 32),
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if silent {
			time.Sleep(2 * time.Second)
			return
		}
		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 fake ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			f.commands <- cmd
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				tp.PrintfLine("250-fake greets you")
				for _, ext := range extensions {
					tp.PrintfLine("250-%s", ext)
				}
				tp.PrintfLine("250 HELP")
			case strings.HasPrefix(cmd, "HELO"),
				strings.HasPrefix(cmd, "MAIL FROM"),
				strings.HasPrefix(cmd, "RCPT TO"):
				tp.PrintfLine("250 OK")
			case cmd == "DATA":
				tp.PrintfLine("354 go ahead")
				data, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				f.received <- string(data)
				tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("502 not implemented")
			}
		}
	}()
	return f
}

func smtpConfig(port int, useTLS bool) config.SMTPConfig {
	return config.SMTPConfig{
		Host:   "127.0.0.1",
		Port:   port,
		From:   "noreply@projecthub.local",
		UseTLS: useTLS,
	}
}

// ---------------------------------------------------------------------------
// SMTPDispatcher.Send
// ---------------------------------------------------------------------------

func TestSMTPDispatcher_Send_DeliversMultipart(t *testing.T) {
	srv := startFakeSMTP(t, []string{"8BITMIME"}, false)
	d := NewSMTPDispatcher(smtpConfig(srv.port, false), "ProjectHub")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.Send(ctx, Message{
		To:      "bob@example.com",
		Subject: "Invitation to join team: Platform",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case data := <-srv.received:
		for _, want := range []string{
			"To: bob@example.com",
			`From: "ProjectHub" <noreply@projecthub.local>`,
			"multipart/alternative",
			"text/plain; charset=utf-8",
			"text/html; charset=utf-8",
			"plain body",
			"<p>html body</p>",
		} {
			if !strings.Contains(data, want) {
				t.Errorf("message missing %q\n%s", want, data)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received DATA")
	}
}

func TestSMTPDispatcher_Send_RequiresSTARTTLSWhenTLSEnabled(t *testing.T) {
	srv := startFakeSMTP(t, nil, false)
	d := NewSMTPDispatcher(smtpConfig(srv.port, true), "ProjectHub")

	err := d.Send(context.Background(), Message{To: "bob@example.com", Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "STARTTLS") {
		t.Fatalf("err = %v, want STARTTLS error", err)
	}
	select {
	case <-srv.received:
		t.Error("message delivered over an unencrypted connection")
	default:
	}
}

func TestSMTPDispatcher_Send_TimesOut(t *testing.T) {
	srv := startFakeSMTP(t, nil, true)
	d := NewSMTPDispatcher(smtpConfig(srv.port, false), "ProjectHub")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.Send(ctx, Message{To: "bob@example.com", Text: "x"})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send took %v, want it bounded by the context deadline", elapsed)
	}
}

func TestSMTPDispatcher_Send_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := NewSMTPDispatcher(smtpConfig(port, false), "ProjectHub")
	err = d.Send(context.Background(), Message{To: "bob@example.com", Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "smtp dial 127.0.0.1:"+strconv.Itoa(port)) {
		t.Errorf("err = %v, want dial error", err)
	}
}

func TestSMTPDispatcher_Send_NoRecipient(t *testing.T) {
	d := NewSMTPDispatcher(smtpConfig(25, false), "ProjectHub")
	if err := d.Send(context.Background(), Message{Text: "x"}); err == nil {
		t.Error("expected error for empty recipient")
	}
}

// ---------------------------------------------------------------------------
// NewDispatcher
// ---------------------------------------------------------------------------

func TestNewDispatcher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.NotificationsConfig
		wantLog bool
	}{
		{"disabled", config.NotificationsConfig{Enabled: false, SMTP: config.SMTPConfig{Host: "smtp.example.com"}}, true},
		{"no host", config.NotificationsConfig{Enabled: true}, true},
		{"smtp", config.NotificationsConfig{Enabled: true, SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(&tt.cfg)
			_, isLog := d.(LogDispatcher)
			if isLog != tt.wantLog {
				t.Errorf("NewDispatcher() = %T, wantLog %v", d, tt.wantLog)
			}
		})
	}
}

func TestLogDispatcher_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (LogDispatcher{}).Send(ctx, Message{To: "a@b.c"}); err == nil {
		t.Error("expected context error")
	}
	if err := (LogDispatcher{}).Send(context.Background(), Message{To: "a@b.c"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
