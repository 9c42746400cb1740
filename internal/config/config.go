package config

import (
	"fmt"
	"net"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

const envFile = ".env"

// CrossValidator lets a config struct enforce the rules a struct tag
// cannot express, like BOOTSTRAP_ADDR being required only when the node
// joins an existing ring.
type CrossValidator interface {
	Validate() error
}

// Load populates cfg from ./.env together with the process environment
// when that file is present, otherwise from the process environment alone,
// then applies struct validation and cfg's own cross-field rules when it
// provides any.
func Load[T any](cfg *T) error {
	if _, err := os.Stat(envFile); err == nil {
		if err := cleanenv.ReadConfig(envFile, cfg); err != nil {
			return fmt.Errorf("reading %s: %w", envFile, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if v, ok := any(cfg).(CrossValidator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// DetectIP returns the host's primary outbound IPv4 address. Peers hash
// each other's advertised address, so every node must advertise the
// address the others actually dial.
func DetectIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("failed to detect outbound address: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
