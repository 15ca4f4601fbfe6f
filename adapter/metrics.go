package adapter

import (
	"syscall"
	"time"

	"github.com/andybochmann/blob-mounter/metrics"
)

// instrumentCallback records one FUSE callback's duration and outcome.
// Call it via defer, right after naming the function's errno return ret:
//
//	func (d *dirNode) Lookup(...) (node *gofuse.Inode, ret syscall.Errno) {
//		defer instrumentCallback("lookup", time.Now(), &ret)
//		...
//	}
func instrumentCallback(name string, start time.Time, ret *syscall.Errno) {
	metrics.CallbackDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	status := "ok"
	if *ret != 0 {
		status = "error"
	}
	metrics.CallbacksTotal.WithLabelValues(name, status).Inc()
}
