package conntab

import "golang.org/x/sys/unix"

// ReapChildren performs spec.md §4.H's best-effort, non-blocking child
// collection: drain every already-exited child with WNOHANG until none
// remain, never blocking the event loop. Children are not tracked to
// individual connections here; a CGI whose owning connection was already
// torn down still gets collected on some later sweep.
func ReapChildren() int {
	reaped := 0
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return reaped
		}
		reaped++
		log.WithField("pid", pid).Debug("reaped cgi child")
	}
}
