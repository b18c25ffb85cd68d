package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime option. All values come from the environment.
// Missing or inconsistent required values are startup errors; malformed
// optional values fall back to their defaults with a logged warning.
type Config struct {
	HAURL    string
	HAToken  string
	EntityID string

	UpdateInterval    time.Duration
	MaxUpdateInterval time.Duration

	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	BackoffMultiplier float64
	ConnectTimeout    time.Duration

	ListenAddr string

	DisplayDriver       string
	InkyModel           string
	InkyColor           string
	LowBatteryThreshold int

	MQTTBroker   string
	MQTTTopic    string
	MQTTUsername string
	MQTTPassword string

	PIDFile string
}

func Load() (*Config, error) {
	cfg := &Config{
		HAURL:    strings.TrimRight(os.Getenv("HA_URL"), "/"),
		HAToken:  os.Getenv("HA_TOKEN"),
		EntityID: getEnv("SENSOR_ENTITY_ID", "sensor.growatt_battery_level"),

		UpdateInterval:    getDuration("UPDATE_INTERVAL", 300*time.Second),
		MaxUpdateInterval: getDuration("MAX_UPDATE_INTERVAL", 1800*time.Second),

		MaxRetries:        getInt("MAX_RETRIES", 3),
		InitialRetryDelay: getDuration("INITIAL_RETRY_DELAY", 5*time.Second),
		MaxRetryDelay:     getDuration("MAX_RETRY_DELAY", 60*time.Second),
		BackoffMultiplier: getFloat("RETRY_BACKOFF_MULTIPLIER", 2.0),
		ConnectTimeout:    getDuration("CONNECTION_TIMEOUT", 15*time.Second),

		ListenAddr: getEnv("LISTEN_ADDR", ":9090"),

		DisplayDriver:       strings.ToLower(getEnv("DISPLAY_DRIVER", "console")),
		InkyModel:           strings.ToLower(getEnv("INKY_MODEL", "phat")),
		InkyColor:           strings.ToLower(getEnv("INKY_COLOR", "black")),
		LowBatteryThreshold: getInt("LOW_BATTERY_THRESHOLD", 20),

		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTTopic:    getEnv("MQTT_TOPIC", "inkbatt/state"),
		MQTTUsername: os.Getenv("MQTT_USERNAME"),
		MQTTPassword: os.Getenv("MQTT_PASSWORD"),

		PIDFile: os.Getenv("PID_FILE"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HAURL == "" {
		return fmt.Errorf("HA_URL environment variable is required")
	}
	u, err := url.Parse(c.HAURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("HA_URL %q is not a valid base URL", c.HAURL)
	}
	if c.HAToken == "" {
		return fmt.Errorf("HA_TOKEN environment variable is required")
	}
	if c.EntityID == "" {
		return fmt.Errorf("SENSOR_ENTITY_ID must not be empty")
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL must be positive, got %v", c.UpdateInterval)
	}
	if c.MaxUpdateInterval < c.UpdateInterval {
		return fmt.Errorf("MAX_UPDATE_INTERVAL %v must not be below UPDATE_INTERVAL %v",
			c.MaxUpdateInterval, c.UpdateInterval)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if c.InitialRetryDelay <= 0 {
		return fmt.Errorf("INITIAL_RETRY_DELAY must be positive, got %v", c.InitialRetryDelay)
	}
	if c.MaxRetryDelay < c.InitialRetryDelay {
		return fmt.Errorf("MAX_RETRY_DELAY %v must not be below INITIAL_RETRY_DELAY %v",
			c.MaxRetryDelay, c.InitialRetryDelay)
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("RETRY_BACKOFF_MULTIPLIER must be greater than 1, got %g", c.BackoffMultiplier)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("CONNECTION_TIMEOUT must be positive, got %v", c.ConnectTimeout)
	}
	switch c.DisplayDriver {
	case "inky", "console", "off":
	default:
		return fmt.Errorf("DISPLAY_DRIVER must be one of inky, console, off, got %q", c.DisplayDriver)
	}
	switch c.InkyModel {
	case "phat", "what":
	default:
		return fmt.Errorf("INKY_MODEL must be phat or what, got %q", c.InkyModel)
	}
	switch c.InkyColor {
	case "black", "red", "yellow":
	default:
		return fmt.Errorf("INKY_COLOR must be black, red or yellow, got %q", c.InkyColor)
	}
	if c.LowBatteryThreshold < 0 || c.LowBatteryThreshold > 100 {
		return fmt.Errorf("LOW_BATTERY_THRESHOLD must be within 0..100, got %d", c.LowBatteryThreshold)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go duration syntax ("5m", "45s") as well as a bare
// number of seconds ("300"), which is how deployments configured before
// the rewrite expressed intervals.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}
