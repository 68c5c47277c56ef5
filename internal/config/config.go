// Package config loads the bot configuration from config.yml and the
// environment. A missing config.yml is seeded from config.example.yml so a
// fresh container starts with a usable file the operator can edit in place.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the bot needs at runtime. Secrets come from the
// environment (optionally via .env.prod) and override the file values.
type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	WSPath      string `mapstructure:"ws_path"`
	AccessToken string `mapstructure:"access_token"`

	DataDir      string `mapstructure:"data_dir"`
	DatabasePath string `mapstructure:"database_path"`
	MemeHome     string `mapstructure:"meme_home"`

	Superusers    []int64 `mapstructure:"superusers"`
	CommandPrefix string  `mapstructure:"command_prefix"`
	LogLevel      string  `mapstructure:"log_level"`

	LLM      LLMConfig      `mapstructure:"llm"`
	Tencent  TencentConfig  `mapstructure:"tencent"`
	Wolfram  WolframConfig  `mapstructure:"wolfram"`
	Roleplay RoleplayConfig `mapstructure:"roleplay"`
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// TencentConfig carries the cloud API credential pair used by the
// translation plugin's TC3 request signing.
type TencentConfig struct {
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
}

// WolframConfig carries the WolframAlpha application ID.
type WolframConfig struct {
	AppID string `mapstructure:"app_id"`
}

// RoleplayConfig tunes the chat character plugin.
type RoleplayConfig struct {
	Model            string  `mapstructure:"model"`
	Prompt           string  `mapstructure:"prompt"`
	ReplyProbability float64 `mapstructure:"reply_probability"`
	CooldownSeconds  int     `mapstructure:"cooldown_seconds"`
	MaxContext       int     `mapstructure:"max_context_messages"`
	MaxReplyTokens   int     `mapstructure:"max_reply_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
}

// envOverrides maps environment variable names onto config fields. Keys
// present in the environment always win over the file.
var envOverrides = map[string]func(*Config, string){
	"HOST": func(c *Config, v string) { c.Host = v },
	"PORT": func(c *Config, v string) {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Port = p
		}
	},
	"ONEBOT_ACCESS_TOKEN": func(c *Config, v string) { c.AccessToken = v },
	"MEME_HOME":           func(c *Config, v string) { c.MemeHome = v },
	"YUNWU_API_KEY":       func(c *Config, v string) { c.LLM.APIKey = v },
	"YUNWU_BASE_URL":      func(c *Config, v string) { c.LLM.BaseURL = v },
	"TENCENT_SECRET_ID":   func(c *Config, v string) { c.Tencent.SecretID = v },
	"TENCENT_SECRET_KEY":  func(c *Config, v string) { c.Tencent.SecretKey = v },
	"WOLFRAM_APPID":       func(c *Config, v string) { c.Wolfram.AppID = v },
}

// Load reads the config file at path, seeding it from examplePath when it
// does not exist yet, then applies .env.prod and environment overrides.
func Load(path, examplePath string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		raw, readErr := os.ReadFile(examplePath)
		if readErr != nil {
			return nil, fmt.Errorf("missing %s and unreadable %s: %w", path, examplePath, readErr)
		}
		if writeErr := os.WriteFile(path, raw, 0o644); writeErr != nil {
			return nil, writeErr
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	env, err := readEnvFile(filepath.Join(filepath.Dir(path), ".env.prod"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, env)

	fillDefaults(cfg)
	return cfg, nil
}

// readEnvFile loads a dotenv-style file if present. A missing file is not an
// error; the deployment may configure everything through real env vars.
func readEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out := map[string]string{}
	for _, key := range v.AllKeys() {
		out[strings.ToUpper(key)] = v.GetString(key)
	}
	return out, nil
}

func applyEnv(cfg *Config, fileEnv map[string]string) {
	for name, set := range envOverrides {
		if v, ok := fileEnv[name]; ok && v != "" {
			set(cfg, v)
		}
		// The real environment beats .env.prod.
		if v := os.Getenv(name); v != "" {
			set(cfg, v)
		}
	}
}

func fillDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.WSPath == "" {
		cfg.WSPath = "/onebot/v11/ws"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "yiyin.db")
	}
	if cfg.MemeHome == "" {
		cfg.MemeHome = filepath.Join(cfg.DataDir, "resources")
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "/"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://yunwu.ai/v1"
	}
	if cfg.Roleplay.Model == "" {
		cfg.Roleplay.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.Roleplay.Prompt == "" {
		cfg.Roleplay.Prompt = "你是群聊里的一位群友，说话简短自然，像真人一样聊天，不要暴露自己是 AI。"
	}
	if cfg.Roleplay.ReplyProbability <= 0 {
		cfg.Roleplay.ReplyProbability = 0.03
	}
	if cfg.Roleplay.CooldownSeconds <= 0 {
		cfg.Roleplay.CooldownSeconds = 300
	}
	if cfg.Roleplay.MaxContext <= 0 {
		cfg.Roleplay.MaxContext = 30
	}
	if cfg.Roleplay.MaxReplyTokens <= 0 {
		cfg.Roleplay.MaxReplyTokens = 150
	}
	if cfg.Roleplay.Temperature <= 0 {
		cfg.Roleplay.Temperature = 0.85
	}
}

// ListenAddr returns the host:port the gateway server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsSuperuser reports whether the given QQ user is a configured superuser.
func (c *Config) IsSuperuser(userID int64) bool {
	for _, id := range c.Superusers {
		if id == userID {
			return true
		}
	}
	return false
}
