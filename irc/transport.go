package irc

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pkg/errors"
)

// Transport delivers and accepts single IRC lines, without CR/LF.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

// NetTransport frames the lines of a net.Conn.
type NetTransport struct {
	conn net.Conn
	r    *bufio.Scanner

	// ReadTimeout, if set, fails ReadLine when nothing was received for
	// that long.
	ReadTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewNetTransport wraps conn.
func NewNetTransport(conn net.Conn) *NetTransport {
	r := bufio.NewScanner(conn)
	r.Buffer(make([]byte, 0, 4096), 64*1024)
	return &NetTransport{
		conn: conn,
		r:    r,
	}
}

// ReadLine returns the next line, with invalid UTF-8 replaced. Empty lines
// are skipped. It returns io.EOF when the server closed the connection.
func (t *NetTransport) ReadLine() (string, error) {
	for {
		if t.ReadTimeout > 0 {
			t.conn.SetReadDeadline(time.Now().Add(t.ReadTimeout))
		}
		if !t.r.Scan() {
			if err := t.r.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return "", io.EOF
		}
		line := strings.TrimSuffix(t.r.Text(), "\r")
		if line == "" {
			continue
		}
		return strings.ToValidUTF8(line, string([]rune{unicode.ReplacementChar})), nil
	}
}

// WriteLine writes line followed by CRLF, in a single Write.
func (t *NetTransport) WriteLine(line string) error {
	_, err := t.conn.Write([]byte(line + "\r\n"))
	return err
}

// Close closes the underlying connection. It is safe to call several times.
func (t *NetTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
