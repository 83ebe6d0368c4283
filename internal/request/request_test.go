package request

import (
	"sync"
	"testing"
)

func TestBeginVoiceSupersedesPrevious(t *testing.T) {
	tr := NewTracker()

	first := tr.Begin(OriginVoice)
	if !tr.Active(first) {
		t.Fatal("fresh request not active")
	}

	second := tr.Begin(OriginVoice)
	if tr.Active(first) {
		t.Fatal("superseded request still active")
	}
	if first.State() != StateSuperseded {
		t.Fatalf("first.State() = %v, want superseded", first.State())
	}
	if !tr.Active(second) {
		t.Fatal("new request not active")
	}
	if tr.Current() != second {
		t.Fatal("Current() is not the newest voice request")
	}
}

func TestCompleteDoesNotResurrectSupersededRequest(t *testing.T) {
	tr := NewTracker()
	first := tr.Begin(OriginVoice)
	second := tr.Begin(OriginVoice)

	tr.Complete(first)
	if first.State() != StateSuperseded {
		t.Fatalf("first.State() = %v, want superseded", first.State())
	}
	if tr.Current() != second {
		t.Fatal("completing a superseded request cleared the active slot")
	}

	tr.Complete(second)
	if second.State() != StateCompleted {
		t.Fatalf("second.State() = %v, want completed", second.State())
	}
	if tr.Current() != nil {
		t.Fatal("active slot not cleared after completion")
	}
}

func TestAPIRequestsDoNotTouchVoiceSession(t *testing.T) {
	tr := NewTracker()
	voice := tr.Begin(OriginVoice)

	api := tr.Begin(OriginAPI)
	if !tr.Active(voice) {
		t.Fatal("API request superseded the voice request")
	}
	if !tr.Active(api) {
		t.Fatal("API request not active")
	}
	if tr.Current() != voice {
		t.Fatal("API request took the active slot")
	}
	if api.ID == voice.ID {
		t.Fatal("requests share an id")
	}

	tr.Complete(api)
	if api.State() != StateCompleted {
		t.Fatalf("api.State() = %v, want completed", api.State())
	}
	if !tr.Active(voice) {
		t.Fatal("completing an API request affected the voice request")
	}
}

func TestNilHandleIsAlwaysActive(t *testing.T) {
	tr := NewTracker()
	if !tr.Active(nil) {
		t.Fatal("system speech (nil handle) must always be allowed")
	}
}

func TestConcurrentBeginsLeaveExactlyOneActive(t *testing.T) {
	tr := NewTracker()
	const n = 64

	reqs := make([]*Request, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reqs[i] = tr.Begin(OriginVoice)
		}()
	}
	wg.Wait()

	active := 0
	for _, r := range reqs {
		if tr.Active(r) {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("%d requests active, want exactly 1", active)
	}
	if cur := tr.Current(); cur == nil || cur.State() != StateActive {
		t.Fatal("Current() does not hold the single active request")
	}
}
