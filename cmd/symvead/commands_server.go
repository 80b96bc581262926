package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"symvea.dev/store/internal/config"
	"symvea.dev/store/internal/logging"
	"symvea.dev/store/internal/metrics"
	"symvea.dev/store/internal/server"
)

var startCommand = &cli.Command{
	Name:  "start",
	Usage: "run the symvea server: TCP object store plus the /metrics and /health HTTP endpoints",
	Action: func(c *cli.Context) error {
		cfg, err := resolvedConfig(c)
		if err != nil {
			return err
		}

		logger, err := logging.NewServer()
		if err != nil {
			return err
		}
		defer logger.Sync()

		collector := metrics.NewCollector()
		srv, err := server.New(server.Config{
			ListenAddr:     cfg.ListenAddress,
			DataDir:        cfg.DataDirectory,
			ReadOnlyMounts: cfg.ReadOnlyMounts,
			MaxFileSize:    maxFileSizeU32(cfg.MaxFileSize),
		}, collector, logger)
		if err != nil {
			return err
		}

		metricsSrv := metrics.NewServer(adjacentAddr(cfg.ListenAddress), collector, cfg.DataDirectory)

		errCh := make(chan error, 2)
		go func() { errCh <- srv.ListenAndServe() }()
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigCh:
			logger.Info("shutdown signal received")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(ctx)
			return srv.Close()
		}
	},
}

var generateConfigCommand = &cli.Command{
	Name:      "generate-config",
	Usage:     "write a default config file",
	ArgsUsage: "[path]",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			path = config.DefaultConfigPath
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote default config to %s\n", path)
		return nil
	},
}

// maxFileSizeU32 clamps the config's signed max_file_size into the
// wire-level uint32 session.MaxFileSize takes. Zero or negative values map
// to 0, which the session and wire.ReadFrame treat as no limit.
func maxFileSizeU32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n)
}

// adjacentAddr derives the metrics HTTP address from the TCP listen
// address by incrementing the port: the metrics endpoint always sits on
// the port adjacent to the TCP listener.
func adjacentAddr(listenAddr string) string {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return listenAddr
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return listenAddr
	}
	return net.JoinHostPort(host, strconv.Itoa(port+1))
}
