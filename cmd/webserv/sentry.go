package main

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// sentryFlushUnit is the unit for how long main waits for a fatal-error
// report to leave the process before exiting (main waits up to two units).
const sentryFlushUnit = time.Second

// initSentry wires fatal bind/listen and top-level command errors (spec.md
// §7's "Bind / listen failure ... propagate as fatal error") to Sentry. The
// DSN defaults to empty, which makes the SDK a no-op; set SENTRY_DSN to
// report for real, matching the opt-in pattern in vmgr/main.go.
func initSentry() {
	dsn := os.Getenv("SENTRY_DSN")
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		logrus.WithError(err).Warn("failed to init sentry")
	}
}
