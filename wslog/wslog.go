// Package wslog centralizes the server's structured logging setup so every
// subsystem (listener, connection table, cgi, reaper) logs through the same
// field conventions, mirroring scon/agent/server.go's logrus usage.
package wslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// base is the single logrus.Logger shared by every subsystem. Each
// subsystem gets its own *logrus.Entry via For, so call sites read
// `wslog.For("cgi").WithField("conn", id).Info(...)`.
var base = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return l
}()

// SetVerbose raises the global log level to Debug; wired to the CLI's
// -v/--verbose flag.
func SetVerbose(verbose bool) {
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}

// For returns a subsystem-scoped logger entry.
func For(subsystem string) *logrus.Entry {
	return base.WithField("subsystem", subsystem)
}
