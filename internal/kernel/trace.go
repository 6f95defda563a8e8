package kernel

// Tracer observes scheduler activity for offline inspection. Calls
// arrive with preemption disabled, sometimes from interrupt context,
// so implementations must not block, allocate heavily, or call back
// into the kernel.
//
// ThreadEvent kinds: "created", "exited", "reclaimed", "sleep", "wake".
// Sample fires once per second of virtual time.
type Tracer interface {
	ThreadEvent(tick int64, id ID, name, kind string)
	Sample(tick int64, loadAvg100, readyCount int, running string)
}
