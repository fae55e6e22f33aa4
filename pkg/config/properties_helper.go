package config

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"
)

func (cfg *Config) Normalize() {
	if cfg.Port <= 0 {
		cfg.Port = 8080
	}
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	// disk storage
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "eventlog-data"
	}
	if strings.TrimSpace(cfg.BackupDir) == "" {
		cfg.BackupDir = "."
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1_000_000
	}
	if cfg.ChannelBufferSize <= 0 {
		cfg.ChannelBufferSize = 1024
	}
}

func (cfg *Config) loadTLS() error {
	if !cfg.UseTLS {
		return nil
	}
	if cfg.TLSCertPath == "" || cfg.TLSKeyPath == "" {
		cfg.UseTLS = false
		return fmt.Errorf("TLS enabled but certificate or key path is empty")
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
	if err != nil {
		cfg.UseTLS = false
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	cfg.TLSCert = cert
	return nil
}
