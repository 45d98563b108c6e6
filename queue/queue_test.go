package queue

import (
	"fmt"
	"testing"
)

func msg(id string) *Message {
	return &Message{ID: id, Type: "data_update"}
}

func ids(msgs []*Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestQueue_FIFO(t *testing.T) {
	q := New(3)
	q.Push(msg("a"))
	q.Push(msg("b"))
	q.Push(msg("c"))

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pop()
		if !ok || got.ID != want {
			t.Fatalf("Pop() = %v, %v; want %s", got, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue should return false")
	}
}

func TestQueue_EvictsOldest(t *testing.T) {
	q := New(2)
	if ev := q.Push(msg("m1")); ev != nil {
		t.Fatalf("unexpected eviction %v", ev.ID)
	}
	q.Push(msg("m2"))
	ev := q.Push(msg("m3"))
	if ev == nil || ev.ID != "m1" {
		t.Fatalf("evicted = %v, want m1", ev)
	}

	got := fmt.Sprint(ids(q.Snapshot()))
	if got != "[m2 m3]" {
		t.Errorf("Snapshot() = %s, want [m2 m3]", got)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestQueue_WrapAround(t *testing.T) {
	q := New(3)
	for i := 0; i < 10; i++ {
		q.Push(msg(fmt.Sprintf("m%d", i)))
		if i%2 == 0 {
			q.Pop()
		}
	}
	got := fmt.Sprint(ids(q.Snapshot()))
	if got != "[m7 m8 m9]" {
		t.Errorf("Snapshot() = %s, want [m7 m8 m9]", got)
	}
}

func TestQueue_Peek(t *testing.T) {
	q := New(2)
	if _, ok := q.Peek(); ok {
		t.Error("Peek() on empty queue should return false")
	}
	q.Push(msg("a"))
	q.Push(msg("b"))
	got, ok := q.Peek()
	if !ok || got.ID != "a" {
		t.Errorf("Peek() = %v, want a", got)
	}
	if q.Len() != 2 {
		t.Error("Peek() should not remove")
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New(4)
	q.Push(msg("a"))
	q.Push(msg("b"))
	if n := q.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	q.Push(msg("c"))
	if got, _ := q.Peek(); got.ID != "c" {
		t.Errorf("Peek() after Clear = %s, want c", got.ID)
	}
}

func TestQueue_MinimumCapacity(t *testing.T) {
	q := New(0)
	if q.Cap() != 1 {
		t.Fatalf("Cap() = %d, want 1", q.Cap())
	}
	q.Push(msg("a"))
	if ev := q.Push(msg("b")); ev == nil || ev.ID != "a" {
		t.Errorf("evicted = %v, want a", ev)
	}
}
