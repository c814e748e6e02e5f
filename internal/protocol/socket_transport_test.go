package protocol

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func readLineWithin(t *testing.T, tr Transport, d time.Duration) string {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		line, err := tr.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() failed: %v", err)
		}
		if line != "" {
			return line
		}
	}
	t.Fatalf("no line within %v", d)
	return ""
}

func TestSocketReadLineFraming(t *testing.T) {
	p1, p2 := net.Pipe()
	defer p1.Close()

	st := NewSocketTransport(p2, &SocketConfig{ReadTimeout: 10 * time.Millisecond}, zaptest.NewLogger(t))
	defer st.Disconnect()

	go func() {
		p1.Write([]byte("$13,1,2,3,4|\r\n$1"))
		p1.Write([]byte("1,8,0|\r\n"))
	}()

	if got := readLineWithin(t, st, time.Second); got != "$13,1,2,3,4|" {
		t.Fatalf("unexpected first line: %q", got)
	}
	if got := readLineWithin(t, st, time.Second); got != "$11,8,0|" {
		t.Fatalf("unexpected second line: %q", got)
	}
}

func TestSocketReadLineTimeoutIsEmpty(t *testing.T) {
	p1, p2 := net.Pipe()
	defer p1.Close()

	st := NewSocketTransport(p2, &SocketConfig{ReadTimeout: 5 * time.Millisecond}, zaptest.NewLogger(t))
	defer st.Disconnect()

	line, err := st.ReadLine()
	if err != nil || line != "" {
		t.Fatalf("expected empty read on timeout, got %q, %v", line, err)
	}
}

func TestSocketWriteLine(t *testing.T) {
	p1, p2 := net.Pipe()
	defer p1.Close()

	st := NewSocketTransport(p2, &SocketConfig{WriteTimeout: time.Second}, zaptest.NewLogger(t))
	defer st.Disconnect()

	got := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p1).ReadString('\n')
		got <- line
	}()

	if err := st.WriteLine("$8"); err != nil {
		t.Fatalf("WriteLine() failed: %v", err)
	}
	if line := <-got; line != "$8\r\n" {
		t.Fatalf("unexpected line on the wire: %q", line)
	}
}

func TestSocketPeerCloseRecordsLastError(t *testing.T) {
	p1, p2 := net.Pipe()
	st := NewSocketTransport(p2, &SocketConfig{ReadTimeout: 50 * time.Millisecond}, zaptest.NewLogger(t))
	defer st.Disconnect()

	p1.Close()

	if _, err := st.ReadLine(); err == nil {
		t.Fatal("expected error after peer close")
	}
	if st.TakeLastError() == "" {
		t.Fatal("expected last error to be recorded")
	}
}

func TestDialSocketRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		if line == "$29\r\n" {
			conn.Write([]byte("$29,fw-1.2|\r\n"))
		}
		time.Sleep(100 * time.Millisecond)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	st, err := DialSocket(context.Background(), &SocketConfig{
		Host:         "127.0.0.1",
		Port:         addr.Port,
		DialTimeout:  time.Second,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: time.Second,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("DialSocket() failed: %v", err)
	}
	defer st.Disconnect()

	if err := st.WriteLine("$29"); err != nil {
		t.Fatalf("WriteLine() failed: %v", err)
	}
	if got := readLineWithin(t, st, time.Second); got != "$29,fw-1.2|" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestDialSocketRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = DialSocket(context.Background(), &SocketConfig{
		Host:        "127.0.0.1",
		Port:        port,
		DialTimeout: time.Second,
	}, zaptest.NewLogger(t))
	if !errors.Is(err, ErrConnectionRefused) {
		t.Fatalf("expected ErrConnectionRefused for port %s, got %v", strconv.Itoa(port), err)
	}
}
