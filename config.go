package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const defaultConfigFile string = "conf/config.json"

type Config struct {
	Unsplash struct {
		AccessKey string `json:"access"`
		BaseUrl   string `json:"baseUrl"`
		TimeoutMs int    `json:"timeoutMs"`
	} `json:"unsplash.com"`
	Database string `json:"database"`
	CacheTTL int64  `json:"cacheTtl"`
	Redis    struct {
		Address  string `json:"address"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Server struct {
		Listen     string `json:"listen"`
		ApiKeyHash string `json:"apiKeyHash"`
	} `json:"server"`
	Gallery struct {
		DefaultQuery    string `json:"defaultQuery"`
		DebounceMs      int    `json:"debounceMs"`
		MaxPageFailures int    `json:"maxPageFailures"`
	} `json:"gallery"`
	Debug struct {
		PrettyJson bool `json:"prettyJson"`
	}
}

func DefaultConfig() Config {
	var cfg Config
	cfg.Unsplash.BaseUrl = "https://api.unsplash.com"
	cfg.Unsplash.TimeoutMs = 15000
	cfg.Database = dbFile
	cfg.CacheTTL = 86400
	cfg.Server.Listen = ":8081"
	cfg.Gallery.DefaultQuery = "nature"
	cfg.Gallery.DebounceMs = 300
	cfg.Gallery.MaxPageFailures = 3
	return cfg
}

func (cfg *Config) Debounce() time.Duration {
	return time.Duration(cfg.Gallery.DebounceMs) * time.Millisecond
}

func (cfg *Config) UpstreamTimeout() time.Duration {
	return time.Duration(cfg.Unsplash.TimeoutMs) * time.Millisecond
}

// LoadConfig reads the JSON config file on top of DefaultConfig, then applies
// .env and environment overrides. A missing file is not an error.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		defer f.Close()
		if err := decodeConfig(f, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}
	applyEnv(&cfg)

	if cfg.Unsplash.AccessKey == "" {
		return cfg, errors.New("unsplash access key missing (unsplash.com.access or UNSPLASH_ACCESS_KEY)")
	}
	return cfg, nil
}

func decodeConfig(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	err = json.Unmarshal(data, cfg)
	if synErr, ok := err.(*json.SyntaxError); ok {
		line, col := lineAndColumn(data, synErr.Offset)
		return fmt.Errorf("unable to decode configuration file (Line: %d, Pos: %d): %w", line, col, err)
	}
	return err
}

// lineAndColumn locates a byte offset as a 1-based line and the offset
// within that line.
func lineAndColumn(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	head := data[:offset]
	return bytes.Count(head, []byte{'\n'}) + 1, len(head) - (bytes.LastIndexByte(head, '\n') + 1)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UNSPLASH_ACCESS_KEY"); v != "" {
		cfg.Unsplash.AccessKey = v
	}
	if v := os.Getenv("GALLERY_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("GALLERY_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
}
