package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dreamware/graphdb/internal/cacheindex"
	"github.com/dreamware/graphdb/internal/shard"
	"github.com/dreamware/graphdb/internal/validate"
)

// serverConfig is the resolved configuration for the example driver:
// which backend to run against, the engine tuning knobs, and the
// single AuthContext every request is stamped with since token
// issuance lives outside this repo.
type serverConfig struct {
	Listen  string
	Backend backendConfig
	Shard   shard.Config
	Validate validate.Config
	Index   cacheindex.IndexSpec

	CacheCapacity     int
	DefaultQueryLimit int
	MaxQueryLimit     int

	Auth authConfig
}

// backendConfig selects and parameterizes one of the three BlobBackend
// implementations.
type backendConfig struct {
	Kind string // "memory", "fs", or "s3"

	FSRoot string

	S3Bucket string
	S3Region string
}

// authConfig is the stand-in for the external auth resolution the
// engine itself never performs: every request the driver handles is
// stamped with this single caller identity.
type authConfig struct {
	IsAdmin     bool
	Permissions []string
}

// loadConfig builds a viper instance that reads cfgFile (if non-empty),
// a GRAPHDB_-prefixed environment variable for every key, and falls
// back to the defaults set below, then unmarshals the result.
func loadConfig(cfgFile string) (serverConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("GRAPHDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8090")
	v.SetDefault("backend.kind", "memory")
	v.SetDefault("backend.fsroot", "./graphdb-data")
	v.SetDefault("shard.strategy", shard.StrategyHash)
	v.SetDefault("shard.shardcount", 10)
	v.SetDefault("shard.shardlevels", 2)
	v.SetDefault("cachecapacity", 10000)
	v.SetDefault("defaultquerylimit", 100)
	v.SetDefault("maxquerylimit", 1000)
	v.SetDefault("auth.isadmin", true)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return serverConfig{}, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parsing configuration: %w", err)
	}
	return cfg, nil
}

// buildLogger returns a zap production logger, or a development logger
// when verbose is set, matching the level of detail the engine's
// Debug/Info/Warn calls expect to be visible during manual exercising.
func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
