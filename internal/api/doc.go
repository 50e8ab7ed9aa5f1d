// Package api implements the optional read-only status server of the bridge.
//
// This package provides:
//   - GET /api/v1/health    broker state; 503 while disconnected
//   - GET /api/v1/metrics   poll and publish counters plus Go runtime stats
//   - GET /api/v1/snapshot  the latest derived values keyed by signal
//   - GET /api/v1/ws        live feed of every successful MQTT publish
//   - Middleware stack (request ID, logging, recovery)
//
// The server is disabled unless api.enabled is set. It has no authentication,
// so the default bind address is 127.0.0.1.
//
//	hub := api.NewHub(cfg.API(), logger)
//	b, _ := bridge.Connect(ctx, client, cfg, bridge.Options{Observer: hub.Observe})
//	server, _ := api.New(api.Deps{Config: cfg.API(), Logger: logger, Bridge: b, Hub: hub})
//	server.Start(ctx)
//	defer server.Close()
package api
