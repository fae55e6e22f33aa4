package config

import (
	"crypto/tls"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/downfa11-org/go-eventlog/util"
	"gopkg.in/yaml.v3"
)

// Config represents the event log service configuration including tunable
// persistence and transport options.
type Config struct {
	// Server settings
	Port           int           `yaml:"port" json:"port"`
	Secret         string        `yaml:"secret" json:"secret"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read.timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write.timeout"`
	EnableExporter bool          `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter.port"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`

	// Disk persistence
	DataDir           string `yaml:"data_dir" json:"data.dir"`
	BackupDir         string `yaml:"backup_dir" json:"backup.dir"`
	ChunkSize         int    `yaml:"chunk_size" json:"chunk.size"`
	ChannelBufferSize int    `yaml:"channel_buffer_size" json:"channel.buffer.size"`

	// Security & compression (server-side)
	UseTLS      bool   `yaml:"use_tls" json:"tls.enable"`
	TLSCertPath string `yaml:"tls_cert_path" json:"tls.cert_path"`
	TLSKeyPath  string `yaml:"tls_key_path" json:"tls.key_path"`
	EnableGzip  bool   `yaml:"enable_gzip" json:"gzip.enable"`
	TLSCert     tls.Certificate
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	configPath := flag.String("config", "", "Path to YAML/JSON config file")
	portStr := flag.String("port", "8080", "HTTP listen port")
	secretStr := flag.String("secret", "", "Shared secret for write/read authorization")
	dataDirStr := flag.String("data-dir", "eventlog-data", "Directory for the event and offset files")
	backupDirStr := flag.String("backup-dir", ".", "Directory for recovery backup snapshots")
	chunkSizeStr := flag.String("chunk-size", "1000000", "Read window size in bytes")
	channelBufferStr := flag.String("channel-buffer", "1024", "Write submission channel buffer size")
	exporterStr := flag.String("exporter", "true", "Enable Prometheus exporter")
	exporterPortStr := flag.String("exporter-port", "9100", "Exporter port")
	logLevelStr := flag.String("log-level", "info", "Log Level (debug, info, warn, error)")

	tlsStr := flag.String("tls", "false", "Enable TLS")
	tlsCertStr := flag.String("tls-cert", "", "TLS certificate path")
	tlsKeyStr := flag.String("tls-key", "", "TLS key path")
	gzipStr := flag.String("gzip", "false", "Enable gzip compression")

	flag.DurationVar(&cfg.ReadTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	flag.DurationVar(&cfg.WriteTimeout, "write-timeout", 30*time.Second, "HTTP write timeout")

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	flag.Parse()

	applyFlags(cfg, portStr, secretStr, dataDirStr, backupDirStr, chunkSizeStr,
		channelBufferStr, exporterStr, exporterPortStr, logLevelStr,
		tlsStr, tlsCertStr, tlsKeyStr, gzipStr)

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, err
		}

		if strings.HasSuffix(*configPath, ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}

		// Flags set explicitly on the command line win over the file.
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "port":
				cfg.Port = util.ParseInt(*portStr, 8080)
			case "secret":
				cfg.Secret = *secretStr
			case "data-dir":
				cfg.DataDir = *dataDirStr
			case "backup-dir":
				cfg.BackupDir = *backupDirStr
			case "chunk-size":
				cfg.ChunkSize = util.ParseInt(*chunkSizeStr, 1_000_000)
			case "channel-buffer":
				cfg.ChannelBufferSize = util.ParseInt(*channelBufferStr, 1024)
			case "exporter":
				cfg.EnableExporter = util.ParseBool(*exporterStr, true)
			case "exporter-port":
				cfg.ExporterPort = util.ParseInt(*exporterPortStr, 9100)
			case "log-level":
				cfg.LogLevel = util.ParseLogLevel(*logLevelStr)
			case "tls":
				cfg.UseTLS = util.ParseBool(*tlsStr, false)
			case "tls-cert":
				cfg.TLSCertPath = *tlsCertStr
			case "tls-key":
				cfg.TLSKeyPath = *tlsKeyStr
			case "gzip":
				cfg.EnableGzip = util.ParseBool(*gzipStr, false)
			}
		})
	}

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)

	if err := cfg.loadTLS(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyFlags(cfg *Config, portStr, secretStr, dataDirStr, backupDirStr, chunkSizeStr,
	channelBufferStr, exporterStr, exporterPortStr, logLevelStr,
	tlsStr, tlsCertStr, tlsKeyStr, gzipStr *string) {

	cfg.Port = util.ParseInt(*portStr, 8080)
	cfg.Secret = *secretStr
	cfg.DataDir = *dataDirStr
	cfg.BackupDir = *backupDirStr
	cfg.ChunkSize = util.ParseInt(*chunkSizeStr, 1_000_000)
	cfg.ChannelBufferSize = util.ParseInt(*channelBufferStr, 1024)
	cfg.EnableExporter = util.ParseBool(*exporterStr, true)
	cfg.ExporterPort = util.ParseInt(*exporterPortStr, 9100)
	cfg.LogLevel = util.ParseLogLevel(*logLevelStr)

	cfg.UseTLS = util.ParseBool(*tlsStr, false)
	cfg.TLSCertPath = *tlsCertStr
	cfg.TLSKeyPath = *tlsKeyStr
	cfg.EnableGzip = util.ParseBool(*gzipStr, false)
}
