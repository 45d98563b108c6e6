// Package shutdown tears a client process down in order.
//
// # Overview
//
// A sync client owns more than the channel: a metrics listener, a message
// bus, an event exporter and a tracer provider. On SIGINT or SIGTERM they
// must close in a fixed order so the last frames and spans still reach
// their destination.
//
//	SIGTERM / SIGINT / Shutdown()
//	            │
//	            ▼
//	┌──────────────────┐   ┌──────────────────┐   ┌──────────────────┐
//	│ PhaseChannel 10  │ → │ PhaseServers 20  │ → │ PhaseSinks 30    │
//	│ disconnect       │   │ metrics endpoint │   │ bus, exporter,   │
//	│                  │   │                  │   │ tracer provider  │
//	└──────────────────┘   └──────────────────┘   └──────────────────┘
//
// # Usage
//
//	coord, _ := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	coord.RegisterWithPhase("channel", shutdown.Action(mgr.Disconnect), shutdown.PhaseChannel)
//	coord.RegisterWithPhase("metrics", shutdown.Func(srv.Shutdown), shutdown.PhaseServers)
//	coord.Register("bus", shutdown.Closer(b))
//	coord.HandleSignals(ctx)
//	<-coord.Done()
//
// Steps in the same phase run concurrently. A phase starts only when the
// previous one has finished; once the timeout passes no further phase
// starts.
package shutdown
