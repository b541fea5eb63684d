package revert

import (
	"testing"
	"time"
)

type recorder struct {
	name string
	log  *[]string
}

func (r recorder) Apply()  { *r.log = append(*r.log, r.name+".apply") }
func (r recorder) Revert() { *r.log = append(*r.log, r.name+".revert") }

func expire(t *testing.T, s *Scheduler, a Action) ExpiredMsg {
	t.Helper()
	cmd := s.Run(a, time.Millisecond)
	msg, ok := cmd().(ExpiredMsg)
	if !ok {
		t.Fatalf("Run command produced %T", msg)
	}
	return msg
}

func TestRunAppliesThenRevertsOnExpiry(t *testing.T) {
	var log []string
	s := New()
	msg := expire(t, s, recorder{"a", &log})

	if !s.Pending() {
		t.Fatal("expected pending reversal")
	}
	if !s.Update(msg) {
		t.Fatal("Update should consume its own ExpiredMsg")
	}
	want := []string{"a.apply", "a.revert"}
	if len(log) != 2 || log[0] != want[0] || log[1] != want[1] {
		t.Errorf("log = %v, want %v", log, want)
	}
	if s.Pending() {
		t.Error("nothing should be pending after expiry")
	}
}

func TestSecondRunDropsFirstWithoutReverting(t *testing.T) {
	var log []string
	s := New()
	first := expire(t, s, recorder{"a", &log})
	second := expire(t, s, recorder{"b", &log})

	s.Update(first)
	s.Update(second)

	want := []string{"a.apply", "b.apply", "b.revert"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestRevertAllFiresImmediatelyOnce(t *testing.T) {
	var log []string
	s := New()
	msg := expire(t, s, recorder{"a", &log})

	s.RevertAll()
	s.RevertAll()
	s.Update(msg)

	if len(log) != 2 || log[1] != "a.revert" {
		t.Errorf("log = %v, want one revert", log)
	}
}

func TestRevertAllWithoutPendingIsNoop(t *testing.T) {
	s := New()
	s.RevertAll()
	if s.Pending() {
		t.Error("unexpected pending")
	}
}

func TestClearNeverReverts(t *testing.T) {
	var log []string
	s := New()
	msg := expire(t, s, recorder{"a", &log})

	s.Clear()
	s.Update(msg)
	s.RevertAll()

	if len(log) != 1 {
		t.Errorf("log = %v, want apply only", log)
	}
}

func TestForeignMessagesIgnored(t *testing.T) {
	var log []string
	a, b := New(), New()
	msg := expire(t, a, recorder{"a", &log})

	if b.Update(msg) {
		t.Error("scheduler consumed another scheduler's message")
	}
	if b.Update("not a timer") {
		t.Error("scheduler consumed an unrelated message")
	}
	if len(log) != 1 {
		t.Errorf("log = %v", log)
	}
}

func TestFuncsNilSafe(t *testing.T) {
	s := New()
	s.Run(Funcs{}, time.Second)
	s.RevertAll()
}
