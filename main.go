package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mrmelon54/exit-reload"
)

var (
	configFlag string
	seedFlag   string
	listenFlag string
)

func main() {
	flag.StringVar(&configFlag, "conf", "config.yml", "Path to the config file")
	flag.StringVar(&seedFlag, "seed", "", "Base seed, overrides the config")
	flag.StringVar(&listenFlag, "listen", "", "Serve shuffles over HTTP on this address instead of running the demo")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "ParallelShuffle",
	})

	conf, err := loadConfig(logger)
	if err != nil {
		logger.Fatal("Failed to load config", "path", configFlag, "err", err)
	}

	metrics := NewMetrics()
	runner := NewRunner(logger, metrics)

	if conf.Listen == "" {
		seed := DefaultSeed()
		if conf.Seed != nil {
			seed = *conf.Seed
		}
		if _, err := runner.Run(context.Background(), conf.Values, seed, conf.Partitioner()); err != nil {
			logger.Fatal("Shuffle aborted", "err", err)
		}
		return
	}

	srv := NewServer(runner, metrics, conf)
	server := &http.Server{
		Handler:           srv,
		Addr:              conf.Listen,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Listening for HTTP requests", "addr", server.Addr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Listen and serve error", "err", err)
		}
	}()

	exit_reload.ExitReload("ParallelShuffle", func() {
		conf, err := loadConfig(logger)
		if err != nil {
			logger.Error("Failed to reload config, keeping the old one", "err", err)
			return
		}
		srv.SetConfig(conf)
		logger.Info("Config reloaded")
	}, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
}

// loadConfig reads the config file, applies the command line overrides and
// sets the log level.
func loadConfig(logger *log.Logger) (Config, error) {
	conf, err := LoadConfig(configFlag)
	if err != nil {
		return conf, err
	}
	if seedFlag != "" {
		seed, err := strconv.ParseInt(seedFlag, 10, 64)
		if err != nil {
			return conf, err
		}
		conf.Seed = &seed
	}
	if listenFlag != "" {
		conf.Listen = listenFlag
	}
	if conf.LogLevel != "" {
		level, err := log.ParseLevel(conf.LogLevel)
		if err != nil {
			return conf, err
		}
		logger.SetLevel(level)
	}
	return conf, nil
}
