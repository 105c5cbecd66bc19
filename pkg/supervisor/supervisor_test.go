package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weighcam/weighstation/pkg/conn"
)

// fakeConn is a scriptable supervised connection.
type fakeConn struct {
	id string

	mu          sync.Mutex
	state       conn.State
	connectErr  error
	blockUntil  chan struct{} // Connect blocks on this when set
	connects    int
	disconnects int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, state: conn.Disconnected}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	block := f.blockUntil
	err := f.connectErr
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.setState(conn.Failed)
			return ctx.Err()
		}
	}
	if err != nil {
		f.setState(conn.Failed)
		return err
	}
	f.setState(conn.Connected)
	return nil
}

func (f *fakeConn) Disconnect() error {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	f.setState(conn.Disconnected)
	return nil
}

func (f *fakeConn) Status() conn.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return conn.Status{State: f.state}
}

func (f *fakeConn) setState(s conn.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeConn) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAddRejectsDuplicateIDs(t *testing.T) {
	s := New(Config{})
	if err := s.Add(newFakeConn("camera1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(newFakeConn("camera1")); err == nil {
		t.Error("Add() should reject duplicate IDs")
	}
}

func TestUnknownConnection(t *testing.T) {
	s := New(Config{})
	if err := s.Connect(context.Background(), "nope"); !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("Connect() error = %v, want ErrUnknownConnection", err)
	}
	if err := s.Disconnect("nope"); !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("Disconnect() error = %v, want ErrUnknownConnection", err)
	}
	if _, err := s.Status("nope"); !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("Status() error = %v, want ErrUnknownConnection", err)
	}
}

// A hanging connect on one source must not delay another source's
// Connected transition.
func TestConnectAllDoesNotSerialize(t *testing.T) {
	slow := newFakeConn("camera1")
	slow.blockUntil = make(chan struct{})
	fast := newFakeConn("camera2")

	s := New(Config{ConnectTimeout: 5 * time.Second})
	s.Add(slow)
	s.Add(fast)

	start := time.Now()
	s.ConnectAll(context.Background())
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("ConnectAll() blocked for %v, should return immediately", elapsed)
	}

	waitFor(t, "camera2 connected", func() bool {
		st, _ := s.Status("camera2")
		return st.State == conn.Connected
	})

	// camera1 is still stuck connecting; unblock and verify it lands too.
	if st, _ := s.Status("camera1"); st.State == conn.Connected {
		t.Error("camera1 should not be connected while blocked")
	}
	close(slow.blockUntil)
	waitFor(t, "camera1 connected", func() bool {
		st, _ := s.Status("camera1")
		return st.State == conn.Connected
	})
}

func TestConnectAllTimesOutHungSource(t *testing.T) {
	hung := newFakeConn("camera1")
	hung.blockUntil = make(chan struct{})

	s := New(Config{ConnectTimeout: 20 * time.Millisecond})
	s.Add(hung)
	s.ConnectAll(context.Background())

	waitFor(t, "hung source to fail", func() bool {
		st, _ := s.Status("camera1")
		return st.State == conn.Failed
	})
}

func TestDisconnectAll(t *testing.T) {
	a := newFakeConn("camera1")
	b := newFakeConn("weighbridge")
	s := New(Config{})
	s.Add(a)
	s.Add(b)

	if err := s.Connect(context.Background(), "camera1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Connect(context.Background(), "weighbridge"); err != nil {
		t.Fatal(err)
	}

	s.DisconnectAll()
	for _, st := range s.StatusAll() {
		if st.State != conn.Disconnected {
			t.Errorf("state after DisconnectAll = %v, want %v", st.State, conn.Disconnected)
		}
	}
}

func TestStatusAll(t *testing.T) {
	s := New(Config{})
	s.Add(newFakeConn("camera1"))
	s.Add(newFakeConn("camera2"))

	all := s.StatusAll()
	if len(all) != 2 {
		t.Fatalf("StatusAll() returned %d entries, want 2", len(all))
	}
	for id, st := range all {
		if st.State != conn.Disconnected {
			t.Errorf("%s state = %v, want %v", id, st.State, conn.Disconnected)
		}
	}
}

// With RetryInterval set, the supervisor reconnects Failed sources;
// sources that are merely Disconnected are left alone.
func TestRunRetriesFailedConnections(t *testing.T) {
	flaky := newFakeConn("camera1")
	flaky.connectErr = errors.New("refused")
	idle := newFakeConn("camera2")

	s := New(Config{RetryInterval: 10 * time.Millisecond, ConnectTimeout: time.Second})
	s.Add(flaky)
	s.Add(idle)

	// First attempt fails and leaves the source Failed.
	if err := s.Connect(context.Background(), "camera1"); err == nil {
		t.Fatal("expected first connect to fail")
	}

	// Heal the source, then let the retry loop pick it up.
	flaky.mu.Lock()
	flaky.connectErr = nil
	flaky.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor(t, "retry to reconnect camera1", func() bool {
		st, _ := s.Status("camera1")
		return st.State == conn.Connected
	})

	if idle.connectCount() != 0 {
		t.Error("retry loop should not touch sources that never failed")
	}
}

func TestRunWithoutRetryBlocksUntilCancel(t *testing.T) {
	s := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
