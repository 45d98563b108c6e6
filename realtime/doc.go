// Package realtime is the client side of the synchronization channel.
//
// # Overview
//
// A Manager keeps one duplex connection to the server alive. It dials,
// authenticates, detects dead peers with heartbeats, reconnects with
// exponential backoff, queues outbound frames while offline and replays
// topic subscriptions after every connect.
//
//	          Connect()
//	closed ─────────────> connecting ──open──> connected
//	  ^                    │    ^                 │ │
//	  │ Disconnect()       │    │ backoff         │ └─clean close─> disconnected
//	  │ (from any state)   v    │ delay           v
//	  └──────────────── reconnecting <──── error / timeout / no pong
//	                       │
//	                       └─ budget used up or auth fault ─> error
//
// # Usage
//
//	cfg := realtime.DefaultConfig()
//	cfg.URL = "wss://sync.example.com/ws"
//
//	m, err := realtime.New(cfg)
//	if err != nil {
//	    return err
//	}
//	m.OnStateChange(func(from, to realtime.State) { ... })
//	m.OnError(func(err error) { ... })
//	m.Subscribe("shop:42", func(topic string, payload json.RawMessage) { ... })
//	m.Connect()
//
//	m.Send("data_update", map[string]any{"id": 1})
//
// # Ordering
//
// On every connect the manager sends, in order: the auth frame (when auth is
// enabled), every queued frame oldest first, one subscribe frame per
// registered topic. Only then does the heartbeat start. Sends issued while
// frames are still queued join the back of the queue.
//
// # Epochs
//
// Each connection attempt and each teardown advances the epoch. Transport
// callbacks and timers carry the epoch they were created in and do nothing
// once it has moved on.
//
// # Errors
//
// Faults are reported through OnError callbacks as *errors.Error values.
// errors.FaultOf classifies them; authentication faults and an exhausted
// retry budget leave the manager in the error state until the next Connect.
package realtime
