package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBDSN      string `yaml:"db_dsn"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	ServerPort    string `yaml:"server_port"`
	SessionSecret string `yaml:"session_secret"`

	UploadRoot   string `yaml:"upload_root"`
	TemplateGlob string `yaml:"template_glob"`
	StaticDir    string `yaml:"static_dir"`
	LogLevel     string `yaml:"log_level"`

	// MetricsAddr — отдельный слушатель для /metrics, по умолчанию только localhost.
	MetricsAddr string `yaml:"metrics_addr"`

	AI AIConfig `yaml:"ai"`
}

// AIConfig — настройки ассистента; пустой ключ отключает только его.
type AIConfig struct {
	APIKey  string   `yaml:"api_key"`
	BaseURL string   `yaml:"base_url"`
	Models  []string `yaml:"models"`
}

var defaultModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-flash",
}

// Load собирает конфиг: .env, затем YAML из CONFIG_FILE, затем переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	override(&cfg.DBDSN, "DB_DSN")
	override(&cfg.DBHost, "DB_HOST")
	override(&cfg.DBPort, "DB_PORT")
	override(&cfg.DBUser, "DB_USER")
	override(&cfg.DBPassword, "DB_PASSWORD")
	override(&cfg.DBName, "DB_NAME")
	override(&cfg.DBSSLMode, "DB_SSLMODE")
	override(&cfg.ServerPort, "SERVER_PORT")
	override(&cfg.SessionSecret, "SESSION_SECRET")
	override(&cfg.UploadRoot, "UPLOAD_ROOT")
	override(&cfg.TemplateGlob, "TEMPLATE_GLOB")
	override(&cfg.StaticDir, "STATIC_DIR")
	override(&cfg.LogLevel, "LOG_LEVEL")
	override(&cfg.MetricsAddr, "METRICS_ADDR")
	override(&cfg.AI.APIKey, "AI_API_KEY")
	override(&cfg.AI.BaseURL, "AI_BASE_URL")
	if models := os.Getenv("AI_MODELS"); models != "" {
		cfg.AI.Models = splitList(models)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}
	if c.DBPort == "" {
		c.DBPort = "5432"
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.UploadRoot == "" {
		c.UploadRoot = "uploads"
	}
	if c.TemplateGlob == "" {
		c.TemplateGlob = "web/templates/*.html"
	}
	if c.StaticDir == "" {
		c.StaticDir = "web/static"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = "127.0.0.1:9091"
	}
	if len(c.AI.Models) == 0 {
		c.AI.Models = append([]string(nil), defaultModels...)
	}
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is not set")
	}
	if c.DBDSN == "" && (c.DBHost == "" || c.DBUser == "" || c.DBName == "") {
		return errors.New("DB_DSN or DB_HOST/DB_USER/DB_NAME must be set")
	}
	return nil
}

// DSN возвращает строку подключения к рабочей базе.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return c.dsnFor(c.DBName)
}

// MaintenanceDSN указывает на служебную базу postgres, из которой создаётся рабочая.
// Пустая строка, если задан готовый DB_DSN.
func (c *Config) MaintenanceDSN() string {
	if c.DBDSN != "" {
		return ""
	}
	return c.dsnFor("postgres")
}

func (c *Config) dsnFor(dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, dbname, c.DBSSLMode)
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
