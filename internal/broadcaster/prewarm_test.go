package broadcaster

import "testing"

func TestPrewarmBuffer_drainOnce(t *testing.T) {
	p := newPrewarmBuffer()
	p.reset(3)
	p.push([]byte("a"))
	p.push([]byte("b"))

	chunks, ok := p.drainFor(3)
	if !ok || len(chunks) != 2 {
		t.Fatalf("drainFor(3) = (%v, %v), want 2 chunks", chunks, ok)
	}
	if _, ok := p.drainFor(3); ok {
		t.Fatal("second drainFor should report false: buffer already drained")
	}
}

func TestPrewarmBuffer_wrongIndexMisses(t *testing.T) {
	p := newPrewarmBuffer()
	p.reset(3)
	p.push([]byte("a"))
	if _, ok := p.drainFor(4); ok {
		t.Fatal("drainFor a different item index should report false")
	}
}

func TestPrewarmBuffer_stopsAtChunkBound(t *testing.T) {
	p := newPrewarmBuffer()
	p.reset(0)
	var lastOK bool
	for i := 0; i < prewarmStopChunks; i++ {
		lastOK = p.push([]byte{byte(i)})
	}
	if lastOK {
		t.Fatal("push should report false once the soft chunk-count stop is reached")
	}
}

func TestPrewarmBuffer_stopsAtByteBound(t *testing.T) {
	p := newPrewarmBuffer()
	p.reset(0)
	big := make([]byte, prewarmMaxBytes)
	if p.push(big) {
		t.Fatal("push should report false once the byte bound is reached in one chunk")
	}
}

func TestPrewarmBuffer_resetDiscardsPrevious(t *testing.T) {
	p := newPrewarmBuffer()
	p.reset(1)
	p.push([]byte("a"))
	p.reset(2)
	if _, ok := p.drainFor(1); ok {
		t.Fatal("drainFor the old index should report false after reset")
	}
}
