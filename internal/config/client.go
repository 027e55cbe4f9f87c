package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every client environment variable, e.g.
// TAPKEEPER_URL or TAPKEEPER_POLL_TIMEOUT.
const EnvPrefix = "TAPKEEPER_"

// Duration is a time.Duration that reads "1.5s" style strings or a number
// of milliseconds from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val) * time.Millisecond)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ClientOptions configures the terminal client.
type ClientOptions struct {
	URL               string   `json:"url"`
	CA                string   `json:"ca"`
	Timeout           Duration `json:"timeout"`
	Variant           string   `json:"variant"`
	ScanPath          string   `json:"scan_path"`
	PollInterval      Duration `json:"poll_interval"`
	PollErrorInterval Duration `json:"poll_error_interval"`
	PollTimeout       Duration `json:"poll_timeout"`
	PollMaxAttempts   int      `json:"poll_max_attempts"`
	AuthenticatedPath string   `json:"authenticated_path"`
	LandingPath       string   `json:"landing_path"`
	LogLevel          string   `json:"log_level"`
}

// ClientKeys lists the keys accepted by Set, in display order.
var ClientKeys = []string{
	"url", "ca", "timeout", "variant", "scan_path",
	"poll_interval", "poll_error_interval", "poll_timeout", "poll_max_attempts",
	"authenticated_path", "landing_path", "log_level",
}

// DefaultClientOptions returns the client defaults. Polling for a card
// gives up after two minutes.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		URL:               "http://localhost:8080",
		Timeout:           Duration(10 * time.Second),
		Variant:           "token",
		ScanPath:          "/api/auth/rfid-scan",
		PollInterval:      Duration(time.Second),
		PollErrorInterval: Duration(2 * time.Second),
		PollTimeout:       Duration(2 * time.Minute),
		AuthenticatedPath: "/vault",
		LandingPath:       "/",
		LogLevel:          "warn",
	}
}

// Set assigns one option by its key.
func (o *ClientOptions) Set(key, value string) error {
	var err error
	switch key {
	case "url":
		o.URL = value
	case "ca":
		o.CA = value
	case "timeout":
		err = setDuration(&o.Timeout, value)
	case "variant":
		o.Variant = value
	case "scan_path":
		o.ScanPath = value
	case "poll_interval":
		err = setDuration(&o.PollInterval, value)
	case "poll_error_interval":
		err = setDuration(&o.PollErrorInterval, value)
	case "poll_timeout":
		err = setDuration(&o.PollTimeout, value)
	case "poll_max_attempts":
		o.PollMaxAttempts, err = strconv.Atoi(value)
	case "authenticated_path":
		o.AuthenticatedPath = value
	case "landing_path":
		o.LandingPath = value
	case "log_level":
		o.LogLevel = value
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	if err != nil {
		return fmt.Errorf("option %s: %w", key, err)
	}
	return nil
}

func setDuration(d *Duration, value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// LoadClient returns the defaults overlaid with the JSON file at path (if
// it exists) and then with TAPKEEPER_* environment variables. Command-line
// flags are applied by the caller with Set.
func LoadClient(path string, getenv func(string) string) (ClientOptions, error) {
	if err := loadDotEnv(); err != nil {
		return ClientOptions{}, err
	}

	opts := DefaultClientOptions()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return opts, fmt.Errorf("error while reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, &opts); err != nil {
				return opts, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	for _, key := range ClientKeys {
		if v := getenv(EnvPrefix + strings.ToUpper(key)); v != "" {
			if err := opts.Set(key, v); err != nil {
				return opts, err
			}
		}
	}
	return opts, nil
}
