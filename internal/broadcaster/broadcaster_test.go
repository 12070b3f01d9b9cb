package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/schedule"
)

type emptyScheduleProvider struct{}

func (emptyScheduleProvider) Expand(now time.Time) ([]schedule.PlayoutItem, error) { return nil, nil }

func testChannel() catalog.Channel {
	return catalog.Channel{Number: "7", Name: "Test Channel", Enabled: true, PlayoutMode: catalog.PlayoutModeContinuous}
}

func TestBroadcaster_initialState(t *testing.T) {
	b := New(testChannel(), nil, nil, nil, nil)
	if b.State() != StateIdle {
		t.Fatalf("State() = %v, want IDLE", b.State())
	}
	if b.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d, want 0", b.ClientCount())
	}
}

func TestBroadcaster_stopOnIdleIsNoop(t *testing.T) {
	b := New(testChannel(), nil, nil, nil, nil)
	b.Stop() // must not panic or block
	if b.State() != StateIdle {
		t.Fatalf("State() after Stop() on idle = %v, want IDLE", b.State())
	}
}

func TestBroadcaster_fanOutDropsFullOrClosedClients(t *testing.T) {
	b := New(testChannel(), nil, nil, nil, nil)

	alive := newClientQueue()
	b.clients[alive] = struct{}{}

	full := newClientQueue()
	for i := 0; i < queueCapacity; i++ {
		full.tryPut([]byte{byte(i)})
	}
	b.clients[full] = struct{}{}

	closed := newClientQueue()
	closed.close()
	b.clients[closed] = struct{}{}

	b.fanOut([]byte("chunk"))

	if _, ok := b.clients[alive]; !ok {
		t.Error("alive client with room should remain attached")
	}
	if _, ok := b.clients[full]; ok {
		t.Error("client with a full queue should have been dropped")
	}
	if _, ok := b.clients[closed]; ok {
		t.Error("client with a closed queue should have been dropped")
	}
}

func TestBroadcaster_startAbortsOnEmptySchedule(t *testing.T) {
	b := New(testChannel(), nil, nil, nil, emptyScheduleProvider{})
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("expected Start to return an error for an empty schedule")
	}
	if b.State() != StateIdle {
		t.Fatalf("State() after aborted start = %v, want IDLE", b.State())
	}
}
