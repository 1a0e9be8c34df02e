// Package config loads node settings from LANMESH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aethiopicuschan/lanmesh/logging"
	"github.com/joho/godotenv"
)

// ErrInvalidConfig wraps every validation failure reported by Load.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds runtime configuration for a mesh node.
type Config struct {
	Mesh struct {
		BasePort          uint16
		PortRange         int
		BindAddr          netip.Addr
		DisconnectTimeout time.Duration
	}

	TickRate int
	HTTPAddr string
	Log      logging.Config
}

const (
	defaultBasePort          = 20200
	defaultPortRange         = 10
	defaultBindAddr          = "0.0.0.0"
	defaultDisconnectTimeout = 2 * time.Second
	defaultTickRate          = 60
	defaultHTTPAddr          = "127.0.0.1:9200"
	defaultLogLevel          = "info"
	defaultLogMaxSizeMB      = 50
	defaultLogMaxBackups     = 3
	defaultLogMaxAgeDays     = 7
)

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	var cfg Config
	var errs []error

	port, err := parseIntEnv("LANMESH_BASE_PORT", defaultBasePort)
	if err != nil {
		errs = append(errs, err)
	}
	if port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("LANMESH_BASE_PORT %d out of range", port))
	}
	cfg.Mesh.BasePort = uint16(port)

	portRange, err := parseIntEnv("LANMESH_PORT_RANGE", defaultPortRange)
	if err != nil {
		errs = append(errs, err)
	}
	if portRange < 1 || port+portRange-1 > 65535 {
		errs = append(errs, fmt.Errorf("LANMESH_PORT_RANGE %d out of range", portRange))
	}
	cfg.Mesh.PortRange = int(portRange)

	bind, err := netip.ParseAddr(envWithDefault("LANMESH_BIND_ADDR", defaultBindAddr))
	if err != nil {
		errs = append(errs, fmt.Errorf("LANMESH_BIND_ADDR: %w", err))
	} else if bind = bind.Unmap(); !bind.Is4() {
		errs = append(errs, fmt.Errorf("LANMESH_BIND_ADDR %s is not ipv4", bind))
	}
	cfg.Mesh.BindAddr = bind

	timeout, err := parseDurationEnv("LANMESH_DISCONNECT_TIMEOUT", defaultDisconnectTimeout)
	if err != nil {
		errs = append(errs, err)
	}
	if timeout <= 0 {
		errs = append(errs, errors.New("LANMESH_DISCONNECT_TIMEOUT must be positive"))
	}
	cfg.Mesh.DisconnectTimeout = timeout

	rate, err := parseIntEnv("LANMESH_TICK_RATE", defaultTickRate)
	if err != nil {
		errs = append(errs, err)
	}
	if rate < 1 || rate > 1000 {
		errs = append(errs, fmt.Errorf("LANMESH_TICK_RATE %d out of range", rate))
	}
	cfg.TickRate = int(rate)

	cfg.HTTPAddr = envWithDefault("LANMESH_HTTP_ADDR", defaultHTTPAddr)

	cfg.Log.Level = strings.ToLower(envWithDefault("LANMESH_LOG_LEVEL", defaultLogLevel))
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LANMESH_LOG_LEVEL %q unknown", cfg.Log.Level))
	}
	cfg.Log.Development = parseBoolEnv("LANMESH_LOG_DEV", false)
	cfg.Log.FilePath = strings.TrimSpace(os.Getenv("LANMESH_LOG_FILE"))
	cfg.Log.MaxSizeMB = int(parseIntEnvDefault("LANMESH_LOG_MAX_SIZE_MB", defaultLogMaxSizeMB))
	cfg.Log.MaxBackups = int(parseIntEnvDefault("LANMESH_LOG_MAX_BACKUPS", defaultLogMaxBackups))
	cfg.Log.MaxAgeDays = int(parseIntEnvDefault("LANMESH_LOG_MAX_AGE_DAYS", defaultLogMaxAgeDays))
	cfg.Log.Compress = parseBoolEnv("LANMESH_LOG_COMPRESS", true)

	if len(errs) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, nil
}

// LoadDotEnv loads the first readable file of paths into the process
// environment and returns its path. Variables already set are kept.
func LoadDotEnv(paths ...string) (string, bool) {
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// TickInterval is the period between two ticks of the node.
func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / defaultTickRate
	}
	return time.Second / time.Duration(c.TickRate)
}

func envWithDefault(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

// parseIntEnv reports malformed values rather than falling back to def.
func parseIntEnv(key string, def int64) (int64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func parseIntEnvDefault(key string, def int64) int64 {
	i, err := parseIntEnv(key, def)
	if err != nil || i < 0 {
		return def
	}
	return i
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
