package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pfguard/config"
	"pfguard/logger"
	"pfguard/report"
	"pfguard/scanner"
	"pfguard/systeminfo"
)

// Exit codes for the distinct run-fatal outcomes.
const (
	exitOK                = 0
	exitFailure           = 1
	exitDirectoryNotFound = 2
	exitScanFailure       = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return exitFailure
	}

	logger.Init(cfg.LogLevel)

	if cfg.ExecutionCountAnalysisEnabled {
		logger.Warn("Execution count analysis is reserved and has no effect; prefetch internals are never parsed.")
	}

	var hostInfo *systeminfo.Info
	if cfg.CollectSystemInfo {
		hostInfo, err = systeminfo.Collect()
		if err != nil {
			logger.Errorf("Failed to gather host information: %v", err)
		}
	}

	exporter, err := report.NewExporter(cfg)
	if err != nil {
		logger.Warnf("OTEL export disabled: %v", err)
	}
	defer exporter.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	result, err := scanner.Run(ctx, cfg)
	switch {
	case errors.Is(err, scanner.ErrDirectoryNotFound):
		logger.Errorf("Scan aborted: %v", err)
		return exitDirectoryNotFound
	case errors.Is(err, scanner.ErrScanFailure):
		logger.Errorf("Scan aborted: %v", err)
		return exitScanFailure
	case errors.Is(err, context.Canceled):
		logger.Warn("Scan interrupted before completion; no report produced.")
		return exitFailure
	case err != nil:
		logger.Errorf("Scan failed: %v", err)
		return exitFailure
	}

	result.Host = hostInfo

	if result.NoFilesFound {
		logger.Warnf("No %s files found in %s", cfg.Extension, cfg.ScanRoot)
	}

	fmt.Print(report.Render(result))

	if cfg.ReportFile != "" {
		if err := report.Write(result, cfg.ReportFile); err != nil {
			logger.Errorf("Failed to write report to %s: %v", cfg.ReportFile, err)
			return exitFailure
		}
		logger.Infof("Report written to %s", cfg.ReportFile)
	}

	exporter.Export(result)

	logger.Infof("Analysis completed: %d files scanned, %d suspicious, %d errors.",
		result.TotalFiles, result.SuspiciousCount(), result.ErrorCount())
	return exitOK
}

func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Interrupt signal received. Shutting down...")
	cancel()
}
