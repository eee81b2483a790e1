package daemon

// StartOptions configures the daemon (home, listen port, pprof, metrics).
// Everything else (engine URL, DB, webhook, timeouts) comes from config.Load.
type StartOptions struct {
	Home       string
	Port       int // 0 means use the configured port
	Dev        bool
	PprofAddr  string
	EnableOtel bool // enable OpenTelemetry metrics (Prometheus exporter + HTTP/stream/battle instrumentation)
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
