// Package dispatch routes inbound envelopes to handlers by type.
//
// A Registry holds an ordered handler list per envelope type. The Dispatcher
// invokes them in registration order and isolates each call, so a panicking
// handler is reported as a PANIC error instead of taking the channel down.
//
//	reg := dispatch.NewRegistry()
//	id := reg.On(transport.TypeDataUpdate, func(env transport.Envelope) { ... })
//	d := dispatch.New(reg)
//	n, err := d.DispatchFrame(frame)
//	reg.Off(id)
package dispatch
