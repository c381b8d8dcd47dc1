package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	configHolder atomic.Value
	backend      = "consul"
	backendAddr  = "127.0.0.1:8500"
	backendPath  = "development" // e.g., app/<env>/<service_name>
	configType   = "yaml"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
		// ConnectRetries bounds the startup pings; the service keeps
		// running without redis once they are exhausted.
		ConnectRetries int           `mapstructure:"CONNECT_RETRIES"`
		RetryInterval  time.Duration `mapstructure:"RETRY_INTERVAL"`
	} `mapstructure:"REDIS"`
	AccessControl struct {
		Model  string `mapstructure:"MODEL"`
		Policy string `mapstructure:"POLICY"`
	} `mapstructure:"ACCESS_CONTROL"`
	Licensing LicensingConfig `mapstructure:"LICENSING"`
}

// LicensingConfig tunes the license service.
type LicensingConfig struct {
	// IncludeTrialInEntityLookup makes entity lookups match Trial licenses as
	// well as Active ones.
	IncludeTrialInEntityLookup bool `mapstructure:"INCLUDE_TRIAL_IN_ENTITY_LOOKUP"`
	UsageLogLimit              int  `mapstructure:"USAGE_LOG_LIMIT"`
	MaxUpdateRetries           int  `mapstructure:"MAX_UPDATE_RETRIES"`
	ExpirySweepHour            int  `mapstructure:"EXPIRY_SWEEP_HOUR"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))
var RemoteModule = fx.Module("remote.config", fx.Provide(LoadRemote))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "chwone-controlplane")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("GRPC_SERVER.ADDR", "9090")
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)
	v.SetDefault("REDIS.CONNECT_RETRIES", 5)
	v.SetDefault("REDIS.RETRY_INTERVAL", 3*time.Second)
	v.SetDefault("OTEL.PROTOCOL", "grpc")
	v.SetDefault("LICENSING.INCLUDE_TRIAL_IN_ENTITY_LOOKUP", true)
	v.SetDefault("LICENSING.USAGE_LOG_LIMIT", 100)
	v.SetDefault("LICENSING.MAX_UPDATE_RETRIES", 3)
	v.SetDefault("LICENSING.EXPIRY_SWEEP_HOUR", 1)

	// viper only unmarshals env overrides for keys it already knows about.
	for key, value := range map[string]any{
		"APP_VERSION":    "",
		"TLS.ENABLE":     false,
		"TLS.CERT_PATH":  "",
		"TLS.KEY_PATH":   "",
		"OTEL.ADDR":      "",
		"PYROSCOPE.ADDR": "",

		"DATABASE.HOST":     "",
		"DATABASE.PORT":     "",
		"DATABASE.DBNAME":   "",
		"DATABASE.USER":     "",
		"DATABASE.PASSWORD": "",

		"DATABASE.CONNECTION_POOL.MAX_IDLE_CONN":      10,
		"DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS":     50,
		"DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME":  time.Hour,
		"DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME": 10 * time.Minute,

		"REDIS.PASSWORD":        "",
		"REDIS.DB":              0,
		"ACCESS_CONTROL.MODEL":  "",
		"ACCESS_CONTROL.POLICY": "",
	} {
		v.SetDefault(key, value)
	}

	return v
}

func LoadConfig(p Params) (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType(configType)
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadRemote(p Params) (*Config, error) {
	if v, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		backend = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_ADDR"); ok {
		backendAddr = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PATH"); ok {
		backendPath = v
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.AddRemoteProvider(backend, backendAddr, backendPath); err != nil {
		return nil, fmt.Errorf("add remote provider: %w", err)
	}

	if err := v.ReadRemoteConfig(); err != nil {
		return nil, fmt.Errorf("read remote config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal remote config: %w", err)
	}

	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	configHolder.Store(&cfg)

	go func() {
		for {
			time.Sleep(time.Second * 5)

			if err := v.WatchRemoteConfig(); err != nil {
				zap.L().Error("unable to read remote config", zap.Error(err))
				continue
			}

			var newcfg Config
			if err := v.Unmarshal(&newcfg); err != nil {
				zap.L().Error("unable to unmarshal remote config", zap.Error(err))
				continue
			}
			configHolder.Store(&newcfg)
		}
	}()

	return &cfg, nil
}

// Current returns the latest remote configuration snapshot, or nil when the
// remote provider is not in use.
func Current() *Config {
	cfg, _ := configHolder.Load().(*Config)
	return cfg
}

func applySecrets(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		return fmt.Errorf("read vault secrets: %w", err)
	}
	zap.L().Info("Success Get Secret")

	get := func(key string) string {
		if val, ok := secret.Data.Data[key].(string); ok {
			return val
		}
		return ""
	}

	if v := get("postgres_user"); v != "" {
		cfg.Database.User = v
	}
	if v := get("postgres_password"); v != "" {
		cfg.Database.Password = v
	}
	if v := get("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.TLS.Enable && (c.TLS.CertPath == "" || c.TLS.KeyPath == "") {
		return errors.New("tls enabled but TLS.CERT_PATH or TLS.KEY_PATH not provided")
	}

	if c.NodeID < 0 || c.NodeID > 1023 {
		return errors.New("NODE_ID must be between 0 and 1023")
	}

	switch c.Database.Type {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}

	if c.Licensing.UsageLogLimit <= 0 {
		return errors.New("LICENSING.USAGE_LOG_LIMIT must be positive")
	}
	if c.Licensing.MaxUpdateRetries <= 0 {
		return errors.New("LICENSING.MAX_UPDATE_RETRIES must be positive")
	}
	if c.Licensing.ExpirySweepHour < 0 || c.Licensing.ExpirySweepHour > 23 {
		return errors.New("LICENSING.EXPIRY_SWEEP_HOUR must be between 0 and 23")
	}

	return nil
}
