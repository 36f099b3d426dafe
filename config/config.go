package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pfguard/version"
)

type Config struct {
	ScanRoot                      string            `json:"scan_root" yaml:"scan_root"`
	Extension                     string            `json:"extension" yaml:"extension"`
	MinTimeToleranceSeconds       int               `json:"min_time_tolerance_seconds" yaml:"min_time_tolerance_seconds"`
	MaxTimeToleranceSeconds       int               `json:"max_time_tolerance_seconds" yaml:"max_time_tolerance_seconds"`
	MaxFileAgeDays                int               `json:"max_file_age_days" yaml:"max_file_age_days"`
	ExecutionCountAnalysisEnabled bool              `json:"execution_count_analysis_enabled" yaml:"execution_count_analysis_enabled"`
	HashAlgorithm                 string            `json:"hash_algorithm" yaml:"hash_algorithm"`
	ReadMode                      string            `json:"read_mode" yaml:"read_mode"`
	MmapMinSize                   int64             `json:"mmap_min_size" yaml:"mmap_min_size"`
	ConcurrencyLevel              int               `json:"concurrency_level" yaml:"concurrency_level"`
	NiceLevel                     string            `json:"nice_level" yaml:"nice_level"`
	MaxIOPerSecond                int               `json:"max_io_per_second" yaml:"max_io_per_second"`
	SkipCount                     bool              `json:"skip_count" yaml:"skip_count"`
	LogLevel                      string            `json:"log_level" yaml:"log_level"`
	ReportFile                    string            `json:"report_file" yaml:"report_file"`
	CollectSystemInfo             bool              `json:"collect_system_info" yaml:"collect_system_info"`
	SlowFileThreshold             time.Duration     `json:"slow_file_threshold" yaml:"slow_file_threshold"`
	ConfigFile                    string            `json:"config_file" yaml:"config_file"`
	OtelEndpoint                  string            `json:"otel_endpoint" yaml:"otel_endpoint"`
	OtelFromEnv                   bool              `json:"otel_from_env" yaml:"otel_from_env"`
	OtelHeaders                   map[string]string `json:"otel_headers" yaml:"otel_headers"`
	OtelServiceName               string            `json:"otel_service_name" yaml:"otel_service_name"`
	OtelTimeout                   time.Duration     `json:"otel_timeout" yaml:"otel_timeout"`
	OtelExportPaths               bool              `json:"otel_export_paths" yaml:"otel_export_paths"`
	ConcurrencySet                bool              `json:"-" yaml:"-"`
}

func defaultScanRoot() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\Prefetch`
	}
	return "."
}

func Defaults() *Config {
	return &Config{
		ScanRoot:                      defaultScanRoot(),
		Extension:                     ".pf",
		MinTimeToleranceSeconds:       30,
		MaxTimeToleranceSeconds:       45,
		MaxFileAgeDays:                365,
		ExecutionCountAnalysisEnabled: false,
		HashAlgorithm:                 "sha256",
		ReadMode:                      "auto",
		MmapMinSize:                   128 * 1024,
		ConcurrencyLevel:              runtime.NumCPU(),
		NiceLevel:                     "medium",
		MaxIOPerSecond:                0,
		SkipCount:                     false,
		LogLevel:                      "info",
		ReportFile:                    "",
		CollectSystemInfo:             true,
		SlowFileThreshold:             0,
		OtelHeaders:                   map[string]string{},
		OtelServiceName:               "pfguard",
		OtelTimeout:                   5 * time.Second,
	}
}

func LoadConfig() (*Config, error) {
	cfg := Defaults()

	path := flag.String("path", cfg.ScanRoot, fmt.Sprintf("Directory of prefetch artifacts to analyze (default: %s).", cfg.ScanRoot))
	extension := flag.String("extension", cfg.Extension, fmt.Sprintf("Artifact file extension to match (default: %s).", cfg.Extension))
	minTolerance := flag.Int("min-tolerance", cfg.MinTimeToleranceSeconds, fmt.Sprintf("Lower bound in seconds of the modified/accessed mismatch window (default: %d).", cfg.MinTimeToleranceSeconds))
	maxTolerance := flag.Int("max-tolerance", cfg.MaxTimeToleranceSeconds, fmt.Sprintf("Upper bound in seconds of the modified/accessed mismatch window (default: %d).", cfg.MaxTimeToleranceSeconds))
	maxAgeDays := flag.Int("max-age-days", cfg.MaxFileAgeDays, fmt.Sprintf("Skip files last modified more than this many days ago (default: %d, 0 means no age filter).", cfg.MaxFileAgeDays))
	execCountAnalysis := flag.Bool("execution-count-analysis", cfg.ExecutionCountAnalysisEnabled, "Reserved. Prefetch internals are never parsed; this switch has no effect (default: false).")
	hashAlgorithm := flag.String("hash-algorithm", cfg.HashAlgorithm, fmt.Sprintf("Content digest algorithm: sha256 or blake3 (default: %s).", cfg.HashAlgorithm))
	readMode := flag.String("read-mode", cfg.ReadMode, "Content read mode for hashing: auto, stream, or mmap (default: auto).")
	mmapMinSize := flag.Int64("mmap-min-size", cfg.MmapMinSize, fmt.Sprintf("Minimum file size in bytes for the mmap read path in auto mode (default: %d).", cfg.MmapMinSize))
	concurrency := flag.Int("concurrency", cfg.ConcurrencyLevel, fmt.Sprintf("Concurrency level (default: %d).", cfg.ConcurrencyLevel))
	nice := flag.String("nice", cfg.NiceLevel, fmt.Sprintf("Nice level: high, medium, or low (default: %s).", cfg.NiceLevel))
	maxIO := flag.Int("max-io-per-second", cfg.MaxIOPerSecond, fmt.Sprintf("Maximum files dispatched per second (default: %d, 0 means unlimited).", cfg.MaxIOPerSecond))
	skipCount := flag.Bool("skip-count", cfg.SkipCount, "Skip the initial candidate count and show an indeterminate progress spinner")
	logLevel := flag.String("log-level", cfg.LogLevel, fmt.Sprintf("Log level: debug, info, warn, error, fatal, or panic (default: %s).", cfg.LogLevel))
	reportFile := flag.String("report", cfg.ReportFile, "Write the plain-text report to this file in addition to stdout (default: none).")
	collectSystemInfo := flag.Bool("collect-system-info", cfg.CollectSystemInfo, fmt.Sprintf("Include host information in the report header (default: %t).", cfg.CollectSystemInfo))
	slowFileThreshold := flag.Duration("slow-file-threshold", cfg.SlowFileThreshold, "If positive, warn when a single file takes longer than this to process (default: 0/off).")
	configFile := flag.String("config", "", "Path to a JSON or YAML configuration file (default: none).")
	otelEndpoint := flag.String("otel-endpoint", cfg.OtelEndpoint, "OTLP/HTTP logs endpoint for finding export (default: none).")
	otelFromEnv := flag.Bool("otel-from-env", cfg.OtelFromEnv, "Allow OTEL endpoint fallback from OTEL environment variables (default: false).")
	otelHeaders := flag.String("otel-headers", "", "Comma-separated OTEL headers (key=value) for export (default: none).")
	otelServiceName := flag.String("otel-service-name", cfg.OtelServiceName, fmt.Sprintf("OTEL service name for export (default: %s).", cfg.OtelServiceName))
	otelTimeout := flag.Duration("otel-timeout", cfg.OtelTimeout, "OTEL export timeout (default: 5s).")
	otelExportPaths := flag.Bool("otel-export-paths", cfg.OtelExportPaths, "Include full artifact paths in OTEL payloads (default: false).")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = displayHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("pfguard version %s\n", version.Version)
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.ScanRoot = *path
		case "extension":
			cfg.Extension = *extension
		case "min-tolerance":
			cfg.MinTimeToleranceSeconds = *minTolerance
		case "max-tolerance":
			cfg.MaxTimeToleranceSeconds = *maxTolerance
		case "max-age-days":
			cfg.MaxFileAgeDays = *maxAgeDays
		case "execution-count-analysis":
			cfg.ExecutionCountAnalysisEnabled = *execCountAnalysis
		case "hash-algorithm":
			cfg.HashAlgorithm = strings.ToLower(strings.TrimSpace(*hashAlgorithm))
		case "read-mode":
			cfg.ReadMode = strings.ToLower(strings.TrimSpace(*readMode))
		case "mmap-min-size":
			cfg.MmapMinSize = *mmapMinSize
		case "concurrency":
			cfg.ConcurrencyLevel = *concurrency
			cfg.ConcurrencySet = true
		case "nice":
			cfg.NiceLevel = *nice
		case "max-io-per-second":
			cfg.MaxIOPerSecond = *maxIO
		case "skip-count":
			cfg.SkipCount = *skipCount
		case "log-level":
			cfg.LogLevel = *logLevel
		case "report":
			cfg.ReportFile = *reportFile
		case "collect-system-info":
			cfg.CollectSystemInfo = *collectSystemInfo
		case "slow-file-threshold":
			cfg.SlowFileThreshold = *slowFileThreshold
		case "otel-endpoint":
			cfg.OtelEndpoint = strings.TrimSpace(*otelEndpoint)
		case "otel-from-env":
			cfg.OtelFromEnv = *otelFromEnv
		case "otel-headers":
			cfg.OtelHeaders = parseHeaders(*otelHeaders)
		case "otel-service-name":
			cfg.OtelServiceName = strings.TrimSpace(*otelServiceName)
		case "otel-timeout":
			cfg.OtelTimeout = *otelTimeout
		case "otel-export-paths":
			cfg.OtelExportPaths = *otelExportPaths
		}
	})

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func displayHelp() {
	fmt.Println("pfguard - Prefetch tamper triage")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pfguard [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pfguard --path \"C:\\Windows\\Prefetch\"")
	fmt.Println("  pfguard --path ./evidence --max-age-days 90 --report triage.txt")
	fmt.Println("  pfguard --min-tolerance 30 --max-tolerance 45 --hash-algorithm blake3")
}

func (cfg *Config) normalize() {
	cfg.HashAlgorithm = strings.ToLower(strings.TrimSpace(cfg.HashAlgorithm))
	cfg.ReadMode = strings.ToLower(strings.TrimSpace(cfg.ReadMode))
	cfg.NiceLevel = strings.ToLower(strings.TrimSpace(cfg.NiceLevel))
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = "sha256"
	}
	if cfg.ReadMode == "" {
		cfg.ReadMode = "auto"
	}
	if cfg.NiceLevel == "" {
		cfg.NiceLevel = "medium"
	}
	if cfg.MmapMinSize <= 0 {
		cfg.MmapMinSize = 128 * 1024
	}
	if cfg.Extension != "" && !strings.HasPrefix(cfg.Extension, ".") {
		cfg.Extension = "." + cfg.Extension
	}
	if cfg.ScanRoot == "" {
		cfg.ScanRoot = defaultScanRoot()
	}
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %v", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid config file format: %v", err)
		}
		if _, ok := raw["concurrency_level"]; ok {
			cfg.ConcurrencySet = true
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("invalid config file format: %v", err)
		}
	default:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid config file format: %v", err)
		}
		if _, ok := raw["concurrency_level"]; ok {
			cfg.ConcurrencySet = true
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("invalid config file format: %v", err)
		}
	}
	return nil
}

func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.ScanRoot) == "" {
		return fmt.Errorf("scan path must be specified")
	}
	if cfg.Extension == "" {
		return fmt.Errorf("artifact extension must be specified")
	}
	if cfg.MinTimeToleranceSeconds < 0 {
		return fmt.Errorf("min-tolerance must be zero or positive")
	}
	if cfg.MaxTimeToleranceSeconds < cfg.MinTimeToleranceSeconds {
		return fmt.Errorf("max-tolerance must be greater than or equal to min-tolerance")
	}
	if cfg.MaxFileAgeDays < 0 {
		return fmt.Errorf("max-age-days must be zero or positive")
	}
	if cfg.HashAlgorithm != "sha256" && cfg.HashAlgorithm != "blake3" {
		return fmt.Errorf("invalid hash-algorithm value: %s", cfg.HashAlgorithm)
	}
	if cfg.ReadMode != "auto" && cfg.ReadMode != "stream" && cfg.ReadMode != "mmap" {
		return fmt.Errorf("invalid read-mode value: %s", cfg.ReadMode)
	}
	if cfg.ConcurrencyLevel <= 0 {
		return fmt.Errorf("concurrency level must be positive")
	}
	if cfg.NiceLevel != "high" && cfg.NiceLevel != "medium" && cfg.NiceLevel != "low" {
		return fmt.Errorf("invalid nice level: %s", cfg.NiceLevel)
	}
	if cfg.MaxIOPerSecond < 0 {
		return fmt.Errorf("max-io-per-second must be zero or positive")
	}
	if cfg.SlowFileThreshold < 0 {
		return fmt.Errorf("slow-file-threshold must be zero or positive")
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" &&
		cfg.LogLevel != "error" && cfg.LogLevel != "fatal" && cfg.LogLevel != "panic" {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.OtelTimeout < 0 {
		return fmt.Errorf("otel-timeout must be zero or positive")
	}
	if cfg.OtelEndpoint != "" {
		if !strings.HasPrefix(cfg.OtelEndpoint, "http://") && !strings.HasPrefix(cfg.OtelEndpoint, "https://") {
			return fmt.Errorf("otel-endpoint must include scheme (http or https)")
		}
	}
	return nil
}

// ToleranceWindow returns the inclusive mismatch band as durations.
func (cfg *Config) ToleranceWindow() (time.Duration, time.Duration) {
	return time.Duration(cfg.MinTimeToleranceSeconds) * time.Second,
		time.Duration(cfg.MaxTimeToleranceSeconds) * time.Second
}

func parseHeaders(input string) map[string]string {
	headers := make(map[string]string)
	if input == "" {
		return headers
	}
	items := strings.Split(input, ",")
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		headers[key] = value
	}
	return headers
}
