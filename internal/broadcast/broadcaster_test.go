package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zerob13/canvas-sketchpad-mcp/internal/clients"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/ledger"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/protocol/wire"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/testutil/testlog"
)

var errPeerGone = errors.New("peer gone")

type captureSender struct {
	mu     sync.Mutex
	fail   bool
	got    []wire.Outbound
	closed bool
}

func (s *captureSender) Send(msg wire.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail || s.closed {
		return errPeerGone
	}
	s.got = append(s.got, msg)
	return nil
}

func (s *captureSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSender) commands() []wire.CanvasCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.CanvasCommand, 0, len(s.got))
	for _, msg := range s.got {
		if cmd, ok := msg.(wire.CanvasCommand); ok {
			out = append(out, cmd)
		}
	}
	return out
}

type fixture struct {
	ledger  *ledger.Ledger
	clients *clients.Registry
	b       *Broadcaster
}

func newFixture() fixture {
	l := ledger.New()
	r := clients.NewRegistry(nil)
	return fixture{ledger: l, clients: r, b: New(l, r)}
}

func (f fixture) enqueue(t *testing.T, payload string) ledger.Command {
	t.Helper()
	id, err := f.ledger.Enqueue(payload, "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	cmd, _ := f.ledger.Get(id)
	return cmd
}

func TestBroadcastWithNoClientsStaysPending(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	cmd := f.enqueue(t, "clear()")
	if n := f.b.Broadcast(cmd); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
	got, _ := f.ledger.Get(cmd.ID)
	if got.State != ledger.StatePending || len(got.DeliveredTo) != 0 {
		t.Fatalf("unexpected command after empty broadcast: %+v", got)
	}
}

func TestBroadcastToTwoClientsDeliversIdenticalPayload(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	a, b := &captureSender{}, &captureSender{}
	f.clients.Add("client.a", a, "")
	f.clients.Add("client.b", b, "")

	cmd := f.enqueue(t, "fr(10,10,20,20)")
	if n := f.b.Broadcast(cmd); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	got, _ := f.ledger.Get(cmd.ID)
	if got.State != ledger.StateSent || len(got.DeliveredTo) != 2 {
		t.Fatalf("unexpected command after broadcast: %+v", got)
	}
	ca, cb := a.commands(), b.commands()
	if len(ca) != 1 || len(cb) != 1 {
		t.Fatalf("expected one message each, got %d and %d", len(ca), len(cb))
	}
	if ca[0] != cb[0] || ca[0].ID != cmd.ID || ca[0].Commands != "fr(10,10,20,20)" {
		t.Fatalf("payload mismatch a=%+v b=%+v", ca[0], cb[0])
	}
	if ca[0].Timestamp != cmd.CreatedAt.UnixMilli() {
		t.Fatalf("unexpected timestamp: %d", ca[0].Timestamp)
	}
}

func TestBroadcastIsolatesFailingClient(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	good := &captureSender{}
	bad := &captureSender{fail: true}
	f.clients.Add("client.bad", bad, "")
	f.clients.Add("client.good", good, "")

	cmd := f.enqueue(t, "clear()")
	if n := f.b.Broadcast(cmd); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if _, ok := f.clients.Get("client.bad"); ok {
		t.Fatalf("failing client must be removed")
	}
	if !bad.closed {
		t.Fatalf("failing client sender must be closed")
	}
	got, _ := f.ledger.Get(cmd.ID)
	if len(got.DeliveredTo) != 1 || got.DeliveredTo[0] != "client.good" {
		t.Fatalf("unexpected deliveredTo: %v", got.DeliveredTo)
	}
}

func TestReplayAfterQueuedSubmission(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	cmd := f.enqueue(t, "clear()\nfr(10,10,20,20)")
	f.b.Broadcast(cmd)

	s := &captureSender{}
	f.clients.Add("client.late", s, "")
	if n := f.b.Replay("client.late"); n != 1 {
		t.Fatalf("expected 1 replayed command, got %d", n)
	}
	got := s.commands()
	if len(got) != 1 || got[0].ID != cmd.ID || got[0].Commands != cmd.Payload {
		t.Fatalf("unexpected replay: %+v", got)
	}
	stored, _ := f.ledger.Get(cmd.ID)
	if stored.State != ledger.StateSent {
		t.Fatalf("expected sent after replay, got %q", stored.State)
	}
}

func TestReplayOrdersOldestFirstAndSkipsNonPending(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	first := f.enqueue(t, "fr(1,1,1,1)")
	done := f.enqueue(t, "fr(2,2,2,2)")
	third := f.enqueue(t, "fr(3,3,3,3)")
	f.ledger.RecordConsumption(done.ID)

	s := &captureSender{}
	f.clients.Add("client.a", s, "")
	f.b.Replay("client.a")
	got := s.commands()
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != third.ID {
		t.Fatalf("unexpected replay order: %+v", got)
	}
}

func TestBroadcastSkipsClientAlreadyServedByReplay(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	cmd := f.enqueue(t, "clear()")
	s := &captureSender{}
	f.clients.Add("client.a", s, "")
	f.b.Replay("client.a")

	if n := f.b.Broadcast(cmd); n != 0 {
		t.Fatalf("expected no duplicate delivery, got %d", n)
	}
	if got := s.commands(); len(got) != 1 {
		t.Fatalf("client received %d copies", len(got))
	}
}

func TestReplayUnknownClient(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	f.enqueue(t, "clear()")
	if n := f.b.Replay("client.none"); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestBroadcastPurgedCommandIsNoop(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	f.clients.Add("client.a", &captureSender{}, "")
	if n := f.b.Broadcast(ledger.Command{ID: "cmd.gone", Payload: "clear()"}); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

type hookRegistry struct {
	*clients.Registry
	afterAdd func()
}

func (r *hookRegistry) Add(clientID string, sender clients.Sender, sessionID string) bool {
	added := r.Registry.Add(clientID, sender, sessionID)
	if r.afterAdd != nil {
		r.afterAdd()
	}
	return added
}

func TestAttachReplaysBacklogBeforeConcurrentBroadcast(t *testing.T) {
	testlog.Start(t)
	l := ledger.New()
	reg := &hookRegistry{Registry: clients.NewRegistry(nil)}
	b := New(l, reg)

	firstID, _ := l.Enqueue("fr(1,1,1,1)", "")
	var secondID string
	var wg sync.WaitGroup
	reg.afterAdd = func() {
		secondID, _ = l.Enqueue("fr(2,2,2,2)", "")
		second, _ := l.Get(secondID)
		started := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			close(started)
			b.Broadcast(second)
		}()
		<-started
		time.Sleep(20 * time.Millisecond)
	}

	s := &captureSender{}
	added, replayed := b.Attach("client.a", s, "")
	wg.Wait()
	if !added || replayed != 2 {
		t.Fatalf("added=%v replayed=%d", added, replayed)
	}
	got := s.commands()
	if len(got) != 2 || got[0].ID != firstID || got[1].ID != secondID {
		t.Fatalf("client saw commands out of ledger order: %+v", got)
	}
}

func TestAttachRejectsBlankClientAndSkipsDeliveredOnReattach(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	f.enqueue(t, "clear()")
	if added, n := f.b.Attach(" ", &captureSender{}, ""); added || n != 0 {
		t.Fatalf("blank attach added=%v replayed=%d", added, n)
	}
	if added, n := f.b.Attach("client.a", &captureSender{}, ""); !added || n != 1 {
		t.Fatalf("first attach added=%v replayed=%d", added, n)
	}
	again := &captureSender{}
	if added, n := f.b.Attach("client.a", again, ""); !added || n != 0 {
		t.Fatalf("reattach added=%v replayed=%d", added, n)
	}
	if got := again.commands(); len(got) != 0 {
		t.Fatalf("reattached client received duplicates: %+v", got)
	}
}

func TestAttachReplaysBacklogLargerThanSendBuffer(t *testing.T) {
	testlog.Start(t)
	f := newFixture()
	var want []string
	for i := 0; i < 5; i++ {
		want = append(want, f.enqueue(t, "clear()").ID)
	}
	q := clients.NewQueueSender(2)
	added, replayed := f.b.Attach("client.a", q, "")
	if !added || replayed != 5 {
		t.Fatalf("added=%v replayed=%d", added, replayed)
	}
	if _, ok := f.clients.Get("client.a"); !ok {
		t.Fatalf("client dropped during backlog replay")
	}
	msgs := q.Drain()
	if len(msgs) != len(want) {
		t.Fatalf("expected %d pushes, got %d", len(want), len(msgs))
	}
	for i, msg := range msgs {
		if msg.(wire.CanvasCommand).ID != want[i] {
			t.Fatalf("push %d out of order", i)
		}
	}
	if st := f.ledger.Stats(); st.Pending != 0 {
		t.Fatalf("backlog left pending: %+v", st)
	}
}
