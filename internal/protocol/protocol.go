// internal/protocol/protocol.go
package protocol

import (
	"errors"
	"sync"
)

// LineTerminator ends every line written to the wheel module
const LineTerminator = "\r\n"

var (
	ErrConnectionRefused = errors.New("connection refused")
	ErrUnsupportedKind   = errors.New("unsupported connection kind")
	ErrTransportClosed   = errors.New("transport closed")
	ErrInvalidCommand    = errors.New("invalid command")
)

// Transport is a line oriented channel to one wheel module.
//
// ReadLine returns an empty string when no complete line is available yet.
// Every failure is returned and also kept in a one-shot slot that
// TakeLastError returns and clears.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Disconnect() error
	TakeLastError() string
}

// lastError is the drain-on-read error slot shared by all transports
type lastError struct {
	mu  sync.Mutex
	msg string
}

func (l *lastError) set(err error) {
	l.mu.Lock()
	l.msg = err.Error()
	l.mu.Unlock()
}

func (l *lastError) take() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := l.msg
	l.msg = ""
	return msg
}
