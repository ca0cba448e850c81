// Package httpserver runs an http.Server with graceful shutdown on context
// cancellation or SIGINT/SIGTERM, and provides liveness and readiness handlers.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log, 2*time.Second, map[string]httpserver.Check{
//		"mongo": mongo.Healthcheck(client),
//	}))
//	err := srv.Run(ctx, r)
//
// Run wraps listen failures with ErrStart and Shutdown wraps drain failures
// with ErrShutdown.
package httpserver
