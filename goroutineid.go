package taskexec

import "runtime"

// getGoroutineID parses the current goroutine's numeric ID out of its own
// stack trace header ("goroutine 123 [running]: ..."). Go has no public
// API for this; parsing runtime.Stack's first line is the established
// workaround for telling "am I the goroutine that owns this context"
// without threading an explicit flag through every call site.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
