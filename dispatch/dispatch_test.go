package dispatch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/vinayprograms/synckit/errors"
	"github.com/vinayprograms/synckit/transport"
)

func TestDispatch_RegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		reg.On(transport.TypeDataUpdate, func(transport.Envelope) { order = append(order, name) })
	}

	n, err := New(reg).Dispatch(transport.Envelope{Type: transport.TypeDataUpdate})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Dispatch() = %d, want 3", n)
	}
	if fmt.Sprint(order) != "[a b c]" {
		t.Errorf("order = %v, want [a b c]", order)
	}
}

func TestDispatch_OnlyMatchingType(t *testing.T) {
	reg := NewRegistry()
	var got []string
	reg.On(transport.TypeUserJoined, func(env transport.Envelope) { got = append(got, env.Type) })
	reg.On(transport.TypeUserLeft, func(env transport.Envelope) { got = append(got, env.Type) })

	d := New(reg)
	d.Dispatch(transport.Envelope{Type: transport.TypeUserLeft})
	if fmt.Sprint(got) != "[user_left]" {
		t.Errorf("got = %v, want [user_left]", got)
	}

	n, err := d.Dispatch(transport.Envelope{Type: "unknown"})
	if n != 0 || err != nil {
		t.Errorf("Dispatch(unknown) = %d, %v; want 0, nil", n, err)
	}
}

func TestOff_PreservesOrder(t *testing.T) {
	reg := NewRegistry()
	var order []int
	reg.On("t", func(transport.Envelope) { order = append(order, 1) })
	id2 := reg.On("t", func(transport.Envelope) { order = append(order, 2) })
	reg.On("t", func(transport.Envelope) { order = append(order, 3) })

	if !reg.Off(id2) {
		t.Fatal("Off() should find handler")
	}
	if reg.Off(id2) {
		t.Error("second Off() should return false")
	}
	New(reg).Dispatch(transport.Envelope{Type: "t"})
	if fmt.Sprint(order) != "[1 3]" {
		t.Errorf("order = %v, want [1 3]", order)
	}
	if reg.Len("t") != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len("t"))
	}
}

func TestOff_LastHandlerRemovesType(t *testing.T) {
	reg := NewRegistry()
	id := reg.On("t", func(transport.Envelope) {})
	reg.Off(id)
	if reg.Len("t") != 0 || len(reg.Handlers("t")) != 0 {
		t.Error("type should have no handlers")
	}
}

func TestDispatch_PanicIsolated(t *testing.T) {
	reg := NewRegistry()
	var ranAfter bool
	reg.On("t", func(transport.Envelope) { panic("boom") })
	reg.On("t", func(transport.Envelope) { ranAfter = true })

	n, err := New(reg).Dispatch(transport.Envelope{Type: "t"})
	if n != 2 {
		t.Errorf("Dispatch() = %d, want 2", n)
	}
	if !ranAfter {
		t.Error("handler after panicking one should still run")
	}
	if !errors.Is(err, errors.ErrCodePanic) {
		t.Errorf("error = %v, want PANIC code", err)
	}
}

func TestDispatch_MultiplePanicsJoined(t *testing.T) {
	reg := NewRegistry()
	reg.On("t", func(transport.Envelope) { panic("one") })
	reg.On("t", func(transport.Envelope) { panic("two") })

	_, err := New(reg).Dispatch(transport.Envelope{Type: "t"})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "one") || !strings.Contains(msg, "two") {
		t.Errorf("error = %q, want both panics", msg)
	}
}

func TestDispatchFrame(t *testing.T) {
	reg := NewRegistry()
	var topic string
	reg.On(transport.TypeDataUpdate, func(env transport.Envelope) { topic = env.Topic() })
	d := New(reg)

	env, n, err := d.DispatchFrame([]byte(`{"type":"data_update","payload":{"topic":"shop:42"}}`))
	if err != nil || n != 1 {
		t.Fatalf("DispatchFrame() = %d, %v", n, err)
	}
	if env.Type != transport.TypeDataUpdate || topic != "shop:42" {
		t.Errorf("env=%+v topic=%q", env, topic)
	}

	_, n, err = d.DispatchFrame([]byte(`{"payload":1}`))
	if n != 0 {
		t.Errorf("malformed frame ran %d handlers", n)
	}
	if !errors.Is(err, errors.ErrCodeMalformedFrame) {
		t.Errorf("error = %v, want MALFORMED_FRAME", err)
	}
	if errors.FaultOf(err) != errors.FaultProtocol {
		t.Errorf("fault = %v, want protocol", errors.FaultOf(err))
	}
}

func TestInvoke(t *testing.T) {
	if err := Invoke("t", func() {}); err != nil {
		t.Errorf("Invoke() = %v, want nil", err)
	}
	err := Invoke("data_update", func() { panic(fmt.Errorf("bad")) })
	if !errors.Is(err, errors.ErrCodePanic) {
		t.Errorf("Invoke() = %v, want PANIC", err)
	}
}

func TestDispatcher_Registry(t *testing.T) {
	reg := NewRegistry()
	if New(reg).Registry() != reg {
		t.Error("Registry() should return the wrapped registry")
	}
}
