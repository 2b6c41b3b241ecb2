package arena

import (
	"testing"

	"dhtnode/util"
)

func BenchmarkArena(b *testing.B) {
	b.StopTimer()
	a := NewArena(1024, 1000)

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		a.Push(a.Pop())
	}
}

func TestDatagramArenaBuffersFitAReceiveBuffer(t *testing.T) {
	a := NewDatagramArena(4)
	buf := a.Pop()
	if len(buf) != util.ReceiveBufferSize {
		t.Fatalf("expected a %d byte buffer, got %d", util.ReceiveBufferSize, len(buf))
	}
	a.Push(buf[:10]) // simulate a short read before returning the buffer
	buf2 := a.Pop()
	if len(buf2) != util.ReceiveBufferSize {
		t.Fatalf("Push should restore full capacity, got length %d", len(buf2))
	}
}
