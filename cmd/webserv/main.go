// Command webserv runs the configuration-driven HTTP/1.1 + CGI/1.1 server
// described by spec.md, taking a single positional argument: the path to
// a configuration file (spec.md §6's CLI contract).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreserv/webserv/conf"
	"github.com/coreserv/webserv/server"
	"github.com/coreserv/webserv/wslog"
	"github.com/fatih/color"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	flagVerbose bool
	flagVersion bool
)

var rootCmd = &cobra.Command{
	Use:   "webserv <config-file>",
	Short: "Configuration-driven HTTP/1.1 server with CGI/1.1 execution",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.Flags().BoolVar(&flagVersion, "version", false, "print version and exit")
}

func main() {
	initSentry()
	defer sentry.Flush(2 * sentryFlushUnit)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("fatal")
		sentry.CaptureException(err)
		sentry.Flush(2 * sentryFlushUnit)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagVersion {
		fmt.Println(version)
		return nil
	}
	if len(args) != 1 {
		return cmd.Usage()
	}

	wslog.SetVerbose(flagVerbose)

	configs, err := conf.Parse(args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	srv, err := server.New(configs)
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	printBanner(configs)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("shutdown signal received")
		srv.Shutdown()
	}()

	srv.Run()
	return nil
}

func printBanner(configs []conf.ServerConfig) {
	bold := color.New(color.Bold, color.FgHiGreen).SprintFunc()
	fmt.Println(bold("webserv") + " " + version)
	for _, c := range configs {
		fmt.Printf("  listening on :%d (root %s)\n", c.Port, c.Root)
	}
}
