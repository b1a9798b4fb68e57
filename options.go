package taskexec

// Option configures an Executor at construction. Options are also applied
// when a Group builds its three band executors, so anything set here
// applies uniformly across LOW, NORMAL, and HIGH.
type Option func(*Executor)

// WithDefaultPriority sets the priority Suspend uses when called without
// one. PriorityNormal otherwise. Task constructors take an explicit
// priority and do not read this default.
func WithDefaultPriority(p int) Option {
	return func(ex *Executor) { ex.defaultPriority = p }
}

// WithLoggingThreshold sets how many completed tasks (sync and async
// counted separately) elapse between progress log lines. Zero disables
// the periodic log line entirely. 100 otherwise.
func WithLoggingThreshold(n int) Option {
	return func(ex *Executor) { ex.logThreshold = n }
}

// WithLogger supplies the Logger the executor writes progress and
// shutdown lines through. A no-op logger otherwise.
func WithLogger(l Logger) Option {
	return func(ex *Executor) { ex.logger = l }
}

// WithMetrics supplies the Metrics sink the executor reports queue depth
// and completion counts to. A no-op sink otherwise.
func WithMetrics(m Metrics) Option {
	return func(ex *Executor) { ex.metrics = m }
}

// WithUndestroyable requires a ShutdownToken (obtained via Token) to call
// ShutDown on this executor. Without it, any caller can shut it down.
func WithUndestroyable() Option {
	return func(ex *Executor) { ex.undestroyable = true }
}

// WithDaemon marks the executor's worker as a background hint: it has no
// runtime effect (an un-shut-down worker goroutine already doesn't block
// process exit the way a non-daemon OS thread would). The flag is stored
// on the Executor and is not read, logged or exposed anywhere.
func WithDaemon(daemon bool) Option {
	return func(ex *Executor) { ex.daemon = daemon }
}
