// Package health provides health monitoring for SignalBridge components.
//
// Components report their health to a shared Monitor, either by pushing
// statuses (Update, UpdateHealthy, UpdateUnhealthy, UpdateDegraded) or by
// registering a CheckFunc that the monitor polls on an interval via Run.
// The monitor aggregates everything into a single system status: any
// unhealthy component makes the system unhealthy, any degraded component
// (with none unhealthy) makes it degraded.
//
//	monitor := health.NewMonitor()
//	monitor.Register("broker", func() health.Status {
//	    if client.Connected() {
//	        return health.NewHealthy("broker", "connected")
//	    }
//	    return health.NewUnhealthy("broker", "connection lost")
//	})
//	go monitor.Run(ctx, 10*time.Second)
//
//	mux.Handle("/healthz", health.Handler(monitor, "signalbridge"))
//
// Handler serves the aggregate as JSON: 200 for healthy or degraded, 503
// for unhealthy, so orchestrators only evict on hard failure.
//
// Error messages included in statuses are sanitized before exposure: URLs,
// file paths, IP addresses, ports, and credential-shaped fragments are
// replaced with placeholders. FromComponentHealth applies this when
// converting a component.HealthStatus snapshot.
package health
