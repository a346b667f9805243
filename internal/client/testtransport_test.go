package client

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/parley/chat-client/internal/transport"
)

// fakeTransport is an in-memory Transport with scripted dial outcomes. It
// lets tests deliver inbound frames, observe outbound emits, and simulate
// remote connection drops without a network.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	dials     int
	dialErrs  []error // consumed per dial; nil entries and exhaustion mean success
	emits     []fakeEmit

	// When set, Dial signals dialEntered on entry and then waits on
	// dialRelease before proceeding, so tests can act mid-dial.
	dialEntered chan struct{}
	dialRelease chan struct{}

	onFrame func(data []byte)
	onState func(connected bool)
}

type fakeEmit struct {
	event   string
	payload interface{}
}

func newFakeTransport(dialErrs ...error) *fakeTransport {
	return &fakeTransport{dialErrs: dialErrs}
}

func (f *fakeTransport) Dial(ctx context.Context) error {
	f.mu.Lock()
	entered, release := f.dialEntered, f.dialRelease
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	if f.connected {
		f.mu.Unlock()
		return transport.ErrAlreadyConnected
	}
	var err error
	if f.dials < len(f.dialErrs) {
		err = f.dialErrs[f.dials]
	}
	f.dials++
	if err == nil {
		f.connected = true
	}
	state := f.onState
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if state != nil {
		state(true)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	wasConnected := f.connected
	f.connected = false
	state := f.onState
	f.mu.Unlock()

	if wasConnected && state != nil {
		state(false)
	}
	return nil
}

// drop simulates an unexpected remote disconnect.
func (f *fakeTransport) drop() {
	f.Close()
}

func (f *fakeTransport) Emit(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return fmt.Errorf("fake: emit %q: %w", event, transport.ErrNotConnected)
	}
	f.emits = append(f.emits, fakeEmit{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) SetFrameHandler(fn func(data []byte)) {
	f.mu.Lock()
	f.onFrame = fn
	f.mu.Unlock()
}

func (f *fakeTransport) SetStateHandler(fn func(connected bool)) {
	f.mu.Lock()
	f.onState = fn
	f.mu.Unlock()
}

// deliver feeds an inbound frame to the session as if it arrived from the
// server. Calls run on the test goroutine, mirroring the single-reader
// execution model of the real transport.
func (f *fakeTransport) deliver(frame string) {
	f.mu.Lock()
	fn := f.onFrame
	f.mu.Unlock()
	if fn != nil {
		fn([]byte(frame))
	}
}

func (f *fakeTransport) isConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeTransport) emitted() []fakeEmit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeEmit, len(f.emits))
	copy(out, f.emits)
	return out
}

// emittedNamed returns only the emits for a given event name.
func (f *fakeTransport) emittedNamed(event string) []fakeEmit {
	var out []fakeEmit
	for _, e := range f.emitted() {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// waitForState polls until the session reaches the wanted state or the
// deadline expires.
func waitForState(t *testing.T, s *Session, want ConnState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, still %v", want, s.State())
}

// waitForDials polls until the transport has seen at least n dials.
func waitForDials(t *testing.T, f *fakeTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.dialCount() >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d dials, saw %d", n, f.dialCount())
}
