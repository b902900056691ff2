package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/beanbocchi/nimbus/pkg/validator"
)

const (
	EnvPrefix     = "NIMBUSIO"
	EnvConfigFile = "NIMBUSIO_CONFIG"
)

var (
	once   sync.Once
	config *Config
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.addSource", false)

	v.SetDefault("service.endpoint", "https://nimbus.io")
	v.SetDefault("service.domain", "")
	v.SetDefault("service.timeout", 30*time.Second)

	v.SetDefault("identity.userName", "")
	v.SetDefault("identity.authKeyId", "")
	v.SetDefault("identity.authKey", "")

	v.SetDefault("emulator.listen", "127.0.0.1:8088")
	v.SetDefault("emulator.domain", "nimbus.localhost")
	v.SetDefault("emulator.dataDir", "./data")
	v.SetDefault("emulator.database", "")
	v.SetDefault("emulator.maxKeys", 1000)
	v.SetDefault("emulator.clockSkew", 15*time.Minute)
	v.SetDefault("emulator.blobs.primary", "local")
	v.SetDefault("emulator.blobs.bucket", "")
	v.SetDefault("emulator.blobs.cacheSizeBytes", 1<<30)

	v.SetDefault("objectstore.storj.accessGrant", "")
	v.SetDefault("objectstore.s3.endpoint", "s3.amazonaws.com")
	v.SetDefault("objectstore.s3.accessKeyID", "")
	v.SetDefault("objectstore.s3.secretAccessKey", "")
	v.SetDefault("objectstore.s3.region", "")
	v.SetDefault("objectstore.s3.secure", true)
}

// Load reads configuration from path, or from the default search path when
// path is empty, then applies NIMBUSIO_* environment overrides. A missing
// default config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nimbusio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "nimbusio"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if !cfg.Identity.Complete() {
		identity, err := LoadIdentity()
		switch {
		case err == nil:
			cfg.Identity = identity
		case !errors.Is(err, ErrNoIdentity):
			return nil, err
		}
	}

	if err := validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// GetConfig loads the configuration named by NIMBUSIO_CONFIG once and
// memoizes it. It panics when the configuration is invalid.
func GetConfig() *Config {
	once.Do(func() {
		cfg, err := Load(os.Getenv(EnvConfigFile))
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		config = cfg
	})
	return config
}
