package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the payroll service.
type Config struct {
	HTTPPort             int
	SQLiteDSN            string
	PreviewTTL           time.Duration
	StagingBudgetBytes   int64
	SpillThresholdBytes  int64
	SpillDir             string
	MaxUploadBytes       int64
	LargeAmountThreshold int64
	SweepInterval        time.Duration
	MatchConcurrency     int
}

// Load parses configuration values from the current process environment.
//
// The loader applies sensible defaults for optional fields while validating
// supplied values and reporting localized error messages for bad entries.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:             8080,
		SQLiteDSN:            "file:payroll.db?_pragma=foreign_keys(1)",
		PreviewTTL:           30 * time.Minute,
		StagingBudgetBytes:   64 << 20,
		SpillThresholdBytes:  4 << 20,
		SpillDir:             os.TempDir(),
		MaxUploadBytes:       10 << 20,
		LargeAmountThreshold: 10_000_000,
		SweepInterval:        5 * time.Minute,
		MatchConcurrency:     8,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("PAYROLL_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "PAYROLL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("PAYROLL_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("PAYROLL_PREVIEW_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "PAYROLL_PREVIEW_TTL")
		} else {
			cfg.PreviewTTL = ttl
		}
	}

	if value := strings.TrimSpace(os.Getenv("PAYROLL_STAGING_BUDGET_BYTES")); value != "" {
		budget, err := strconv.ParseInt(value, 10, 64)
		if err != nil || budget <= 0 {
			invalid = append(invalid, "PAYROLL_STAGING_BUDGET_BYTES")
		} else {
			cfg.StagingBudgetBytes = budget
		}
	}

	if value := strings.TrimSpace(os.Getenv("PAYROLL_SPILL_THRESHOLD_BYTES")); value != "" {
		threshold, err := strconv.ParseInt(value, 10, 64)
		if err != nil || threshold <= 0 {
			invalid = append(invalid, "PAYROLL_SPILL_THRESHOLD_BYTES")
		} else {
			cfg.SpillThresholdBytes = threshold
		}
	}

	if dir := strings.TrimSpace(os.Getenv("PAYROLL_SPILL_DIR")); dir != "" {
		cfg.SpillDir = dir
	}

	if value := strings.TrimSpace(os.Getenv("PAYROLL_MAX_UPLOAD_BYTES")); value != "" {
		limit, err := strconv.ParseInt(value, 10, 64)
		if err != nil || limit <= 0 {
			invalid = append(invalid, "PAYROLL_MAX_UPLOAD_BYTES")
		} else {
			cfg.MaxUploadBytes = limit
		}
	}

	if value := strings.TrimSpace(os.Getenv("PAYROLL_LARGE_AMOUNT_THRESHOLD")); value != "" {
		threshold, err := strconv.ParseInt(value, 10, 64)
		if err != nil || threshold < 0 {
			invalid = append(invalid, "PAYROLL_LARGE_AMOUNT_THRESHOLD")
		} else {
			cfg.LargeAmountThreshold = threshold
		}
	}

	if value := strings.TrimSpace(os.Getenv("PAYROLL_SWEEP_INTERVAL")); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "PAYROLL_SWEEP_INTERVAL")
		} else {
			cfg.SweepInterval = interval
		}
	}

	if value := strings.TrimSpace(os.Getenv("PAYROLL_MATCH_CONCURRENCY")); value != "" {
		concurrency, err := strconv.Atoi(value)
		if err != nil || concurrency <= 0 {
			invalid = append(invalid, "PAYROLL_MATCH_CONCURRENCY")
		} else {
			cfg.MatchConcurrency = concurrency
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
