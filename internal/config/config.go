// Package config loads doorcore startup configuration from an optional
// doorcore.yaml plus DOORCORE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"doorcore/internal/core"
	"doorcore/internal/forge"
	"doorcore/internal/infra/blob"
)

const (
	configFileName = "doorcore"
	configFileType = "yaml"
	envPrefix      = "DOORCORE"
)

// Config is the fully resolved startup configuration.
type Config struct {
	ListenAddr string
	DevMode    bool

	Storage core.StorageConfig
	Blob    core.BlobConfig

	// ForgeEnabled gates the /token proxy; Forge is validated only when set.
	ForgeEnabled bool
	Forge        forge.Config
}

// Load reads configuration from dir (or the working directory when empty).
// A missing config file is tolerated; a malformed file or an incomplete forge
// block is a startup error.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("dev_mode", false)
	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", "doorcore.db")
	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", "./exportdata")
	v.SetDefault("forge.enabled", false)
	v.SetDefault("forge.grant_type", "client_credentials")

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		ListenAddr: v.GetString("listen_addr"),
		DevMode:    v.GetBool("dev_mode"),
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(v.GetString("storage.driver")),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Blob: core.BlobConfig{
			Driver:            blob.Driver(v.GetString("blob.driver")),
			FSRoot:            v.GetString("blob.fs_root"),
			S3Bucket:          v.GetString("blob.s3_bucket"),
			S3Region:          v.GetString("blob.s3_region"),
			S3Endpoint:        v.GetString("blob.s3_endpoint"),
			S3AccessKeyID:     v.GetString("blob.s3_access_key_id"),
			S3SecretAccessKey: v.GetString("blob.s3_secret_access_key"),
			S3PathStyle:       v.GetBool("blob.s3_path_style"),
		},
		ForgeEnabled: v.GetBool("forge.enabled"),
		Forge: forge.Config{
			AuthURL:      v.GetString("forge.auth_url"),
			ClientID:     v.GetString("forge.client_id"),
			ClientSecret: v.GetString("forge.client_secret"),
			GrantType:    v.GetString("forge.grant_type"),
			Scope:        v.GetString("forge.scope"),
		},
	}

	if cfg.ForgeEnabled {
		if err := cfg.Forge.Validate(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
