package swm

import (
	"reflect"
	"testing"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Record
	}{
		{name: "single", line: "$13,1,2,3,4", want: []Record{{"$13", "1", "2", "3", "4"}}},
		{name: "trailing bar", line: "$50,10,20,6000,6000,2000,10500,1|", want: []Record{{"$50", "10", "20", "6000", "6000", "2000", "10500", "1"}}},
		{name: "empty fields", line: "$58,0,0,6094426,0,|", want: []Record{{"$58", "0", "0", "6094426", "0"}}},
		{name: "multi record", line: "$1| $11,8,0 |$29,mock", want: []Record{{"$1"}, {"$11", "8", "0"}, {"$29", "mock"}}},
		{name: "only separators", line: "||,,|", want: nil},
		{name: "blank", line: "   ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFrame(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("parseFrame(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestCommandCode(t *testing.T) {
	for cmd, want := range map[string]string{
		"$2,100,900": "$2",
		"$29":        "$29",
		" $11 ":      "$11",
		"":           "",
	} {
		if got := CommandCode(cmd); got != want {
			t.Errorf("CommandCode(%q) = %q, want %q", cmd, got, want)
		}
	}
}

func TestResponseCacheLastWriteWins(t *testing.T) {
	c := NewResponseCache()
	c.Store(Record{"$13", "1", "2", "3", "4"})
	c.Store(Record{"$13", "5", "6", "7", "8"})
	c.Store(Record{"$29", "mock"})

	got, ok := c.Get("$13")
	if !ok || !reflect.DeepEqual(got, Record{"$13", "5", "6", "7", "8"}) {
		t.Fatalf("Get($13) = %v, %v", got, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("expected one entry per code, got %d", c.Len())
	}
	if c.Count("$13") != 2 {
		t.Fatalf("expected $13 count 2, got %d", c.Count("$13"))
	}

	got[1] = "changed"
	if again, _ := c.Get("$13"); again[1] != "5" {
		t.Fatal("Get must return a copy")
	}
}

func TestResponseCacheClearInvalidatesOlderStores(t *testing.T) {
	c := NewResponseCache()
	gen := c.Generation()
	c.Store(Record{"$11", "8", "0"})

	c.Clear()
	if c.Has("$11") {
		t.Fatal("record survived Clear")
	}
	if c.Count("$11") != 1 {
		t.Fatal("Clear must keep receipt counters")
	}
	if c.StoreAt(gen, Record{"$13", "1"}) {
		t.Fatal("store from before Clear was accepted")
	}
	if !c.StoreAt(c.Generation(), Record{"$13", "1"}) {
		t.Fatal("store after Clear was rejected")
	}
	if c.Store(Record{}); c.Len() != 1 {
		t.Fatal("empty record must not be stored")
	}
}

func TestCommandQueueOrderAndClear(t *testing.T) {
	var q commandQueue
	gen := q.Generation()
	q.PushAt(gen, "$1", "$11")
	q.PushAt(gen, "$13")

	for _, want := range []string{"$1", "$11", "$13"} {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %q, %v, want %q", got, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue succeeded")
	}

	q.PushAt(gen, "$0")
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("queue not cleared: %d", q.Len())
	}
	if q.PushAt(gen, "$2,1,1", "$50") || q.Len() != 0 {
		t.Fatalf("push from before Clear was accepted: %d queued", q.Len())
	}
}

func TestDecodeBits(t *testing.T) {
	status := decodeBits(StatusWordBits, 0x8|0x80|0x8000)
	for name, want := range map[string]bool{
		"enable":             true,
		"wheel_moving":       true,
		"alarm":              true,
		"steer_moving":       false,
		"controller_ready_1": false,
	} {
		if status[name] != want {
			t.Errorf("status %s = %v, want %v", name, status[name], want)
		}
	}
	if len(status) != len(StatusWordBits) {
		t.Fatalf("expected %d status flags, got %d", len(StatusWordBits), len(status))
	}

	errs := decodeBits(ErrorWordBits, 0x4000|0x1)
	if !errs["watchdog"] || !errs["mae_limit_plus"] || errs["command_fault"] {
		t.Fatalf("unexpected error flags: %v", errs)
	}
}
