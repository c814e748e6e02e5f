package protocol

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"smartwheel/internal/model"
)

func newTestSimulator(t *testing.T) *SimulatedTransport {
	t.Helper()
	st := NewSimulatedTransport(&SimulatedConfig{Seed: 42}, zaptest.NewLogger(t))
	t.Cleanup(func() { st.Disconnect() })
	return st
}

func exchange(t *testing.T, st *SimulatedTransport, cmd string) []string {
	t.Helper()
	if err := st.WriteLine(cmd); err != nil {
		t.Fatalf("WriteLine(%q) failed: %v", cmd, err)
	}
	line, err := st.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() failed: %v", err)
	}
	if line == "" {
		t.Fatalf("no response to %q", cmd)
	}
	return strings.Split(line, ",")
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	v, err := strconv.Atoi(s)
	if err != nil {
		t.Fatalf("not a number: %q", s)
	}
	return v
}

func TestSimulatorCommandTable(t *testing.T) {
	st := newTestSimulator(t)

	tests := []struct {
		cmd  string
		want string
	}{
		{"$29", "$29,mock"},
		{"$60", "$60,6,vin,v3v3,v5v,cur1,cur2,temp"},
		{"$50", "$50,0,1,2,3,4,5,6"},
		{"$51,2,99", "$51,1"},
		{"$50", "$50,0,1,99,3,4,5,6"},
		{"$97", "$97"},
		{"$50", "$50,0,1,2,3,4,5,6"},
		{"$15,41", "$15,42"},
		{"$58", "$58,103,5,2,3"},
		{"$59", "$59,103,5,2"},
		{"$8", "$8,1"},
	}

	for _, tt := range tests {
		got := strings.Join(exchange(t, st, tt.cmd), ",")
		if got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestSimulatorStoreParameters(t *testing.T) {
	st := newTestSimulator(t)

	exchange(t, st, "$51,0,500")
	exchange(t, st, "$98")
	exchange(t, st, "$51,0,1")
	exchange(t, st, "$97")

	fields := exchange(t, st, "$50")
	if fields[1] != "500" {
		t.Fatalf("expected stored parameter to be restored, got %v", fields)
	}
}

func TestSimulatorStatusFollowsEnable(t *testing.T) {
	st := newTestSimulator(t)

	status := atoi(t, exchange(t, st, "$11")[1])
	if status&simStatusEnable != 0 {
		t.Fatalf("enable bit set before $1: %#x", status)
	}

	exchange(t, st, "$1")
	status = atoi(t, exchange(t, st, "$11")[1])
	if status&simStatusEnable == 0 {
		t.Fatalf("enable bit clear after $1: %#x", status)
	}

	exchange(t, st, "$0")
	status = atoi(t, exchange(t, st, "$11")[1])
	if status&simStatusEnable != 0 {
		t.Fatalf("enable bit set after $0: %#x", status)
	}
}

func TestSimulatorApproachesSetpoints(t *testing.T) {
	st := newTestSimulator(t)
	exchange(t, st, "$2,100,900")

	prevSpeed, prevSteer := 0, 0
	for i := 0; i < 60; i++ {
		st.Step()
		fields := exchange(t, st, "$13")
		speed := atoi(t, fields[2])
		steer := atoi(t, fields[3])

		if speed < prevSpeed || steer < prevSteer {
			t.Fatalf("tick %d: moved away from setpoint: speed %d -> %d, steer %d -> %d", i, prevSpeed, speed, prevSteer, steer)
		}
		if speed > 100 || steer > 900 {
			t.Fatalf("tick %d: overshoot: speed %d, steer %d", i, speed, steer)
		}
		prevSpeed, prevSteer = speed, steer
	}

	if prevSpeed != 100 || prevSteer != 900 {
		t.Fatalf("setpoints not reached: speed %d, steer %d", prevSpeed, prevSteer)
	}
}

func TestSimulatorADCStaysBounded(t *testing.T) {
	st := newTestSimulator(t)
	for i := 0; i < 500; i++ {
		st.Step()
	}

	fields := exchange(t, st, "$10")
	n := len(simADCLabels)
	if len(fields) != 1+3*n {
		t.Fatalf("unexpected $10 length: %d", len(fields))
	}
	for i, label := range simADCLabels {
		cur := atoi(t, fields[1+i])
		lo := atoi(t, fields[1+n+i])
		hi := atoi(t, fields[1+2*n+i])
		if lo > cur || cur > hi {
			t.Fatalf("%s: current %d outside [%d, %d]", label, cur, lo, hi)
		}
		nominal := simADCNominal[label]
		if lo < nominal-simADCBound || hi > nominal+simADCBound {
			t.Fatalf("%s: walk left its bound: [%d, %d]", label, lo, hi)
		}
	}

	fields = exchange(t, st, "$9")
	if strings.Join(fields, ",") != "$9,1" {
		t.Fatalf("unexpected $9 response: %v", fields)
	}
	fields = exchange(t, st, "$10")
	for i := range simADCLabels {
		if fields[1+i] != fields[1+n+i] || fields[1+i] != fields[1+2*n+i] {
			t.Fatalf("min/max not reset: %v", fields)
		}
	}
}

func TestSimulatorUnknownCommandIsSilent(t *testing.T) {
	st := newTestSimulator(t)

	if err := st.WriteLine("$99"); err != nil {
		t.Fatalf("WriteLine() failed: %v", err)
	}
	if line, err := st.ReadLine(); err != nil || line != "" {
		t.Fatalf("expected no response, got %q, %v", line, err)
	}
}

func TestSimulatorMalformedCommand(t *testing.T) {
	st := newTestSimulator(t)

	err := st.WriteLine("$2,fast")
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected ErrInvalidCommand, got %v", err)
	}
	if st.TakeLastError() == "" {
		t.Fatal("expected last error to be recorded")
	}
	if got := exchange(t, st, "$29"); got[1] != "mock" {
		t.Fatalf("simulator unusable after malformed command: %v", got)
	}
}

func TestSimulatorReadWaitsForTimeout(t *testing.T) {
	st := NewSimulatedTransport(&SimulatedConfig{Timeout: 20 * time.Millisecond}, zaptest.NewLogger(t))
	defer st.Disconnect()

	start := time.Now()
	line, err := st.ReadLine()
	if err != nil || line != "" {
		t.Fatalf("expected empty read, got %q, %v", line, err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("read returned too early: %v", elapsed)
	}
}

func TestSimulatorDisconnect(t *testing.T) {
	st := NewSimulatedTransport(&SimulatedConfig{TickInterval: time.Millisecond}, zaptest.NewLogger(t))
	if err := st.Disconnect(); err != nil {
		t.Fatalf("Disconnect() failed: %v", err)
	}
	if err := st.WriteLine("$1"); !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
	if err := st.Disconnect(); err != nil {
		t.Fatalf("second Disconnect() failed: %v", err)
	}
}

func TestCreateTransport(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tr, err := CreateTransport(context.Background(), model.DefaultConnectionConfig(model.ConnectionKindMock), logger)
	if err != nil {
		t.Fatalf("CreateTransport(mock) failed: %v", err)
	}
	if _, ok := tr.(*SimulatedTransport); !ok {
		t.Fatalf("unexpected transport type %T", tr)
	}
	tr.Disconnect()

	port := &fakePort{}
	withFakePort(t, port)
	tr, err = CreateTransport(context.Background(), model.DefaultConnectionConfig(model.ConnectionKindSerial), logger)
	if err != nil {
		t.Fatalf("CreateTransport(serial) failed: %v", err)
	}
	if _, ok := tr.(*SerialTransport); !ok {
		t.Fatalf("unexpected transport type %T", tr)
	}
	tr.Disconnect()

	_, err = CreateTransport(context.Background(), model.ConnectionConfig{Kind: "usb"}, logger)
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}
