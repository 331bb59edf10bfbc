package mailer

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/gitjobs/notifier/internal/config"
	"github.com/gitjobs/notifier/internal/domain"
)

// fakeSMTP accepts plain SMTP sessions and records what it receives.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	rcpt []string
	data []string
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = append(s.rcpt, strings.TrimSpace(line[len("RCPT TO:"):]))
			s.mu.Unlock()
			reply("250 OK")
		case cmd == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = append(s.data, b.String())
			s.mu.Unlock()
			reply("250 OK queued")
		case cmd == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func testEmailConfig(port int) config.EmailConfig {
	return config.EmailConfig{
		Host:        "127.0.0.1",
		Port:        port,
		FromName:    "GitJobs",
		FromAddress: "no-reply@gitjobs.dev",
		Timeout:     5 * time.Second,
		TLSPolicy:   "none",
	}
}

func TestNewSMTPSender_Validation(t *testing.T) {
	cfg := testEmailConfig(587)
	cfg.Host = ""
	cfg.FromAddress = ""

	_, err := NewSMTPSender(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMAIL_HOST")
	assert.Contains(t, err.Error(), "EMAIL_FROM_ADDRESS")
}

func TestBuildMessage(t *testing.T) {
	s, err := NewSMTPSender(testEmailConfig(587))
	require.NoError(t, err)

	msg, err := s.buildMessage("seeker@example.com", "Verify your email address", "<p>hi</p>")
	require.NoError(t, err)

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"seeker@example.com"}, rcpts)
	assert.Equal(t, []string{"Verify your email address"}, msg.GetGenHeader(mail.HeaderSubject))

	_, err = s.buildMessage("not an address", "s", "b")
	assert.Error(t, err)
	_, err = s.buildMessage("", "s", "b")
	assert.Error(t, err)
}

func TestSend_DeliversOneMessage(t *testing.T) {
	srv := startFakeSMTP(t)
	s, err := NewSMTPSender(testEmailConfig(srv.port()))
	require.NoError(t, err)

	err = s.Send(context.Background(), "seeker@example.com", "Verify your email address", "<p>hello</p>")
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.data, 1)
	assert.Equal(t, []string{"<seeker@example.com>"}, srv.rcpt)
	assert.Contains(t, srv.data[0], "Subject: Verify your email address")
	assert.Contains(t, srv.data[0], "text/html")
	assert.Contains(t, srv.data[0], "no-reply@gitjobs.dev")
}

func TestSend_TransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port, _ := strconv.Atoi(strings.TrimPrefix(ln.Addr().String(), "127.0.0.1:"))
	ln.Close()

	s, err := NewSMTPSender(testEmailConfig(port))
	require.NoError(t, err)

	err = s.Send(context.Background(), "seeker@example.com", "subject", "body")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestSend_InvalidRecipientIsTransportError(t *testing.T) {
	s, err := NewSMTPSender(testEmailConfig(587))
	require.NoError(t, err)

	err = s.Send(context.Background(), "", "subject", "body")
	assert.ErrorIs(t, err, domain.ErrTransport)
}
