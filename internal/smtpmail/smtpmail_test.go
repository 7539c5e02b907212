package smtpmail

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

	"github.com/icza/linkauthn/internal/config"
)

// fakeRelay is a minimal SMTP server accepting a single message per connection.
type fakeRelay struct {
	ln net.Listener

	// rejectRcpt makes the relay refuse all recipients.
	rejectRcpt bool

	mu   sync.Mutex
	from string
	rcpt string
	data string
}

func newFakeRelay(t *testing.T, rejectRcpt bool) *fakeRelay {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &fakeRelay{ln: ln, rejectRcpt: rejectRcpt}
	t.Cleanup(func() { ln.Close() })
	go r.serve()
	return r
}

func (r *fakeRelay) config() config.SMTPConfig {
	addr := r.ln.Addr().(*net.TCPAddr)
	return config.SMTPConfig{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		From:    "sender@connect.hku.hk",
		Timeout: 5 * time.Second,
	}
}

func (r *fakeRelay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		go r.handle(conn)
	}
}

func (r *fakeRelay) handle(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	reply := func(s string) { conn.Write([]byte(s + "\r\n")) }

	reply("220 fake ESMTP")
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			r.mu.Lock()
			r.from = line[len("MAIL FROM:"):]
			r.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			if r.rejectRcpt {
				reply("550 no such user")
				continue
			}
			r.mu.Lock()
			r.rcpt = line[len("RCPT TO:"):]
			r.mu.Unlock()
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")
			var sb strings.Builder
			for {
				l, err := rd.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				sb.WriteString(l)
			}
			r.mu.Lock()
			r.data = sb.String()
			r.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestSend(t *testing.T) {
	relay := newFakeRelay(t, false)
	m := New(relay.config(), nil)

	err := m.Send(context.Background(), "student@connect.hku.hk", "Your Authentication Token", "<p>Hello</p>\n")
	require.NoError(t, err)

	relay.mu.Lock()
	defer relay.mu.Unlock()
	assert.Equal(t, "<sender@connect.hku.hk>", relay.from)
	assert.Equal(t, "<student@connect.hku.hk>", relay.rcpt)
	assert.Contains(t, relay.data, "To: student@connect.hku.hk\r\n")
	assert.Contains(t, relay.data, "Subject: Your Authentication Token\r\n")
	assert.Contains(t, relay.data, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.Contains(t, relay.data, "\r\n\r\n<p>Hello</p>\r\n")
}

func TestSendRejected(t *testing.T) {
	relay := newFakeRelay(t, true)
	m := New(relay.config(), nil)

	err := m.Send(context.Background(), "nobody@connect.hku.hk", "s", "b")
	assert.ErrorContains(t, err, "smtp RCPT failed")
}

func TestSendUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := New(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "a@b.c"}, nil)
	err = m.Send(context.Background(), "x@y.z", "s", "b")
	assert.ErrorContains(t, err, "failed to connect to 127.0.0.1:"+strconv.Itoa(port))
}

func TestSendCanceled(t *testing.T) {
	relay := newFakeRelay(t, false)
	m := New(relay.config(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.Send(ctx, "student@connect.hku.hk", "s", "b"))
}

func TestBuildMessage(t *testing.T) {
	date := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	msg := string(buildMessage("sender@connect.hku.hk", "student@connect.hku.hk", "Héllo", "<b>x</b>", date))

	headers, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Equal(t, "<b>x</b>", body)
	assert.Contains(t, headers, "Subject: =?utf-8?q?H=C3=A9llo?=")
	assert.Contains(t, headers, "Date: Thu, 15 Oct 2026 12:00:00 +0000")
	assert.Regexp(t, `Message-ID: <[0-9a-f-]{36}@connect\.hku\.hk>`, headers)
	assert.Contains(t, headers, "MIME-Version: 1.0")
}
