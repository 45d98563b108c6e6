// Package heartbeat detects silently dead connections.
//
// # Overview
//
// A transport can stay "open" long after the peer has gone away. The Monitor
// sends an application-level ping every Interval and expects a pong carrying
// the same id within PongTimeout. When the deadline passes it calls the
// OnUnresponsive callback, which the connection manager treats like a
// transport error.
//
//	┌─────────────┐   ping {id}    ┌─────────────┐
//	│   Monitor   │ ─────────────> │   Server    │
//	│  (client)   │ <───────────── │             │
//	└─────────────┘   pong {id}    └─────────────┘
//
// # Usage
//
//	m, _ := heartbeat.NewMonitor(heartbeat.Config{
//	    Interval:    30 * time.Second,
//	    PongTimeout: 10 * time.Second,
//	}, clock.Real(), sendPing)
//	m.OnUnresponsive(func(epoch uint64) { forceReconnect(epoch) })
//	m.Start(epoch)
//	...
//	m.Pong(id) // on every inbound pong
//	m.Stop()   // on disconnect
//
// # Generations
//
// Every Start opens a new generation and Stop closes it. Timer callbacks
// compare their generation with the current one, so a deadline armed for a
// previous connection never fires against a new one.
package heartbeat
