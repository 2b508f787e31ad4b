package notify

import (
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNotifier_ShowAndHide(t *testing.T) {
	n := New(0)
	defer n.Close()

	n.Show("decoding frame", 30*time.Millisecond)
	st := n.State()
	if !st.Show || st.Message != "decoding frame" {
		t.Fatalf("State after Show: got %+v", st)
	}

	waitFor(t, func() bool { return !n.State().Show })
	if msg := n.State().Message; msg != "" {
		t.Errorf("message after hide: got %q, want empty", msg)
	}
}

func TestNotifier_ReplaceRestartsTimer(t *testing.T) {
	n := New(time.Hour)
	defer n.Close()

	n.Show("first", 20*time.Millisecond)
	n.Show("second", time.Hour)

	time.Sleep(60 * time.Millisecond)
	st := n.State()
	if !st.Show || st.Message != "second" {
		t.Errorf("the first message's timer hid the second: %+v", st)
	}
}

func TestNotifier_Listeners(t *testing.T) {
	n := New(20 * time.Millisecond)
	defer n.Close()

	var mu sync.Mutex
	var got []State
	n.Subscribe(func(s State) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	n.Notify("hello")
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if !got[0].Show || got[0].Message != "hello" {
		t.Errorf("first event: got %+v", got[0])
	}
	if got[1].Show {
		t.Errorf("second event should hide the line: %+v", got[1])
	}
}

func TestNotifier_CloseKeepsMessage(t *testing.T) {
	n := New(0)
	n.Show("sticky", 20*time.Millisecond)
	n.Close()

	time.Sleep(50 * time.Millisecond)
	if st := n.State(); !st.Show || st.Message != "sticky" {
		t.Errorf("Close should stop the hide timer: %+v", st)
	}
}
