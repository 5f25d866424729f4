package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	SSH     SSHConfig     `mapstructure:"ssh"`
	Session SessionConfig `mapstructure:"session"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Exec    ExecConfig    `mapstructure:"exec"`
	DB      DBConfig      `mapstructure:"db"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	StaticDir       string        `mapstructure:"static_dir"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SSHConfig struct {
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
	KeepAlive    time.Duration `mapstructure:"keepalive"`
	KnownHosts   string        `mapstructure:"known_hosts"`
	Term         string        `mapstructure:"term"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LimitsConfig struct {
	MaxReadBytes   int64 `mapstructure:"max_read_bytes"`
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	MaxJSONBytes   int64 `mapstructure:"max_json_bytes"`
}

type ExecConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DBConfig points at the optional Postgres event journal. An empty source
// disables the journal.
type DBConfig struct {
	Source    string        `mapstructure:"source"`
	Retention time.Duration `mapstructure:"retention"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("ssh.ready_timeout", 15*time.Second)
	v.SetDefault("ssh.keepalive", 30*time.Second)
	v.SetDefault("ssh.known_hosts", "")
	v.SetDefault("ssh.term", "xterm-256color")

	v.SetDefault("session.idle_timeout", 15*time.Minute)
	v.SetDefault("session.sweep_interval", 5*time.Minute)

	v.SetDefault("limits.max_read_bytes", 2*1024*1024)
	v.SetDefault("limits.max_upload_bytes", 1024*1024*1024)
	v.SetDefault("limits.max_json_bytes", 10*1024*1024)

	v.SetDefault("exec.enabled", true)

	v.SetDefault("db.source", "")
	v.SetDefault("db.retention", 30*24*time.Hour)
}

// New returns a viper instance with defaults, config search paths and env
// bindings applied. Callers may bind flags onto it before calling Load.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath("/configs")
		v.SetConfigName("settings")
		v.SetConfigType("yml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.SSH.ReadyTimeout <= 0 {
		return errors.New("ssh.ready_timeout must be positive")
	}
	if c.Session.IdleTimeout <= 0 || c.Session.SweepInterval <= 0 {
		return errors.New("session.idle_timeout and session.sweep_interval must be positive")
	}
	if c.Limits.MaxReadBytes <= 0 || c.Limits.MaxUploadBytes <= 0 || c.Limits.MaxJSONBytes <= 0 {
		return errors.New("limits must be positive")
	}
	return nil
}
