// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the reference server.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string `json:"server_address"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// SessionKey signs the session cookie. It must be set.
	SessionKey string `json:"session_key"`

	// RFIDDevice is the serial device of the card reader. Empty means only
	// the simulated reader is available.
	RFIDDevice string `json:"rfid_device"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// LoginVariant is "token" (password then card) or "password".
	LoginVariant string `json:"login_variant"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`
}

// Parse parses the command-line flags, the config file and environment
// variables. Unreadable configuration is fatal.
func Parse() *Options {
	options, err := ParseArgs(os.Args[0], os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return options
}

// ParseArgs is Parse with explicit inputs. Values from the config file
// replace flag values, and environment variables replace both. A .env
// file in the working directory is loaded first if present.
func ParseArgs(name string, args []string, getenv func(string) string) (*Options, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	options := &Options{}
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&options.Address, "a", "localhost:8080", "run on ip:port server")
	flags.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flags.StringVar(&options.Config, "config", "config.json", "path to config file")
	flags.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	flags.StringVar(&options.SessionKey, "session-key", "", "session cookie signing key")
	flags.StringVar(&options.RFIDDevice, "rfid-device", "", "serial device of the RFID reader")
	flags.StringVar(&options.TLSCert, "tls-cert", "", "TLS certificate file")
	flags.StringVar(&options.TLSKey, "tls-key", "", "TLS key file")
	flags.StringVar(&options.LoginVariant, "login-variant", "token", "login protocol: token or password")
	flags.StringVar(&options.LogLevel, "log-level", "info", "log level")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if serverAddress := getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Address = serverAddress
	}
	if dsn := getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if key := getenv("SECRET_KEY"); key != "" {
		options.SessionKey = key
	}
	if device := getenv("RFID_DEVICE"); device != "" {
		options.RFIDDevice = device
	}

	if options.SessionKey == "" {
		return nil, errors.New("session key is required (-session-key or SECRET_KEY)")
	}
	switch options.LoginVariant {
	case "token", "password":
	default:
		return nil, fmt.Errorf("unknown login variant %q", options.LoginVariant)
	}
	return options, nil
}

// loadDotEnv loads ./.env into the process environment. A missing file is
// not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error while loading .env: %w", err)
	}
	return nil
}
