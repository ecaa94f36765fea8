package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/portal"
	ConfigFileName    = "portal.yml"
)

// PortalConfig holds the portal server settings. Secrets (PORTAL_JWT_SECRET,
// DATABASE_URL) are read from the environment by their consumers and never
// appear here.
type PortalConfig struct {
	// TokenTTLSeconds is the lifetime of issued access tokens
	TokenTTLSeconds int `yaml:"token_ttl" json:"token_ttl"`

	// JWTIssuer is the iss claim of issued tokens
	JWTIssuer string `yaml:"jwt_issuer" json:"jwt_issuer"`

	// CORSAllowedOrigins lists the origins allowed by CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" json:"cors_allowed_origins"`

	// WriteRetries is how often a write aborted by a concurrent modification is retried
	WriteRetries int `yaml:"write_retries" json:"write_retries"`

	// RequestTimeoutSeconds bounds each API request
	RequestTimeoutSeconds int `yaml:"request_timeout" json:"request_timeout"`

	MinPasswordLength   int    `yaml:"min_password_length" json:"min_password_length"`
	DefaultWorkLocation string `yaml:"default_work_location" json:"default_work_location"`
	AuditEnabled        bool   `yaml:"audit_enabled" json:"audit_enabled"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// fileConfig distinguishes unset keys from zero values.
type fileConfig struct {
	TokenTTLSeconds       *int     `yaml:"token_ttl"`
	JWTIssuer             *string  `yaml:"jwt_issuer"`
	CORSAllowedOrigins    []string `yaml:"cors_allowed_origins"`
	WriteRetries          *int     `yaml:"write_retries"`
	RequestTimeoutSeconds *int     `yaml:"request_timeout"`
	MinPasswordLength     *int     `yaml:"min_password_length"`
	DefaultWorkLocation   *string  `yaml:"default_work_location"`
	AuditEnabled          *bool    `yaml:"audit_enabled"`
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *PortalConfig
	configMu     sync.RWMutex
	dotEnvOnce   sync.Once
)

// Get returns the global configuration, loading it if necessary
func Get() *PortalConfig {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			// Return defaults on error
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// Default returns the built-in configuration without reading the file or
// the environment.
func Default() *PortalConfig {
	cfg := newDefault()
	cfg.configFilePath = filepath.Join(DefaultConfigPath, ConfigFileName)
	return cfg
}

// newDefault returns a config with default values
func newDefault() *PortalConfig {
	return &PortalConfig{
		TokenTTLSeconds:       3600,
		JWTIssuer:             "portal",
		CORSAllowedOrigins:    []string{"*"},
		WriteRetries:          1,
		RequestTimeoutSeconds: 15,
		MinPasswordLength:     8,
		DefaultWorkLocation:   "Büro",
		AuditEnabled:          true,
		sources:               make(map[string]string),
	}
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values. A .env file in
// the working directory is read once, without overriding the environment.
func Load() (*PortalConfig, error) {
	dotEnvOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config: failed to read .env: %v\n", err)
		}
	})

	config := newDefault()
	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	configPath := os.Getenv("PORTAL_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&file)
	}

	if err := config.applyEnvConfig(); err != nil {
		return nil, err
	}
	return config, nil
}

func attributeNames() []string {
	return []string{
		"token_ttl", "jwt_issuer", "cors_allowed_origins", "write_retries",
		"request_timeout", "min_password_length", "default_work_location",
		"audit_enabled",
	}
}

func (c *PortalConfig) applyFileConfig(file *fileConfig) {
	if file.TokenTTLSeconds != nil {
		c.TokenTTLSeconds = *file.TokenTTLSeconds
		c.sources["token_ttl"] = "file"
	}
	if file.JWTIssuer != nil {
		c.JWTIssuer = *file.JWTIssuer
		c.sources["jwt_issuer"] = "file"
	}
	if len(file.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = file.CORSAllowedOrigins
		c.sources["cors_allowed_origins"] = "file"
	}
	if file.WriteRetries != nil {
		c.WriteRetries = *file.WriteRetries
		c.sources["write_retries"] = "file"
	}
	if file.RequestTimeoutSeconds != nil {
		c.RequestTimeoutSeconds = *file.RequestTimeoutSeconds
		c.sources["request_timeout"] = "file"
	}
	if file.MinPasswordLength != nil {
		c.MinPasswordLength = *file.MinPasswordLength
		c.sources["min_password_length"] = "file"
	}
	if file.DefaultWorkLocation != nil {
		c.DefaultWorkLocation = *file.DefaultWorkLocation
		c.sources["default_work_location"] = "file"
	}
	if file.AuditEnabled != nil {
		c.AuditEnabled = *file.AuditEnabled
		c.sources["audit_enabled"] = "file"
	}
}

func (c *PortalConfig) applyEnvConfig() error {
	ints := []struct {
		env, name string
		dest      *int
	}{
		{"PORTAL_TOKEN_TTL", "token_ttl", &c.TokenTTLSeconds},
		{"PORTAL_WRITE_RETRIES", "write_retries", &c.WriteRetries},
		{"PORTAL_REQUEST_TIMEOUT", "request_timeout", &c.RequestTimeoutSeconds},
		{"PORTAL_MIN_PASSWORD_LENGTH", "min_password_length", &c.MinPasswordLength},
	}
	for _, v := range ints {
		val := os.Getenv(v.env)
		if val == "" {
			continue
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %q is not an integer", v.env, val)
		}
		*v.dest = i
		c.sources[v.name] = "environment"
	}

	if val := os.Getenv("PORTAL_JWT_ISSUER"); val != "" {
		c.JWTIssuer = val
		c.sources["jwt_issuer"] = "environment"
	}
	if val := os.Getenv("PORTAL_CORS_ALLOWED_ORIGINS"); val != "" {
		c.CORSAllowedOrigins = splitAndTrim(val)
		c.sources["cors_allowed_origins"] = "environment"
	}
	if val := os.Getenv("PORTAL_DEFAULT_WORK_LOCATION"); val != "" {
		c.DefaultWorkLocation = val
		c.sources["default_work_location"] = "environment"
	}
	if val := os.Getenv("PORTAL_AUDIT_ENABLED"); val != "" {
		c.AuditEnabled = val != "false" && val != "0" && val != "no"
		c.sources["audit_enabled"] = "environment"
	}
	return nil
}

// ConfigFilePath returns the path to the config file
func (c *PortalConfig) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *PortalConfig) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// TokenTTL returns the token lifetime as a duration
func (c *PortalConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

// RequestTimeout returns the per-request timeout as a duration
func (c *PortalConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Validate validates the configuration
func (c *PortalConfig) Validate() error {
	if c.WriteRetries < 0 {
		return fmt.Errorf("invalid write_retries: %d must not be negative", c.WriteRetries)
	}
	if c.TokenTTLSeconds < 60 {
		return fmt.Errorf("invalid token_ttl: %d is below 60 seconds", c.TokenTTLSeconds)
	}
	if c.MinPasswordLength < 8 {
		return fmt.Errorf("invalid min_password_length: %d is below 8", c.MinPasswordLength)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid request_timeout: %d must be positive", c.RequestTimeoutSeconds)
	}
	if strings.TrimSpace(c.JWTIssuer) == "" {
		return fmt.Errorf("jwt_issuer must not be empty")
	}
	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *PortalConfig) Attributes() []Attribute {
	return []Attribute{
		{Name: "token_ttl", Value: strconv.Itoa(c.TokenTTLSeconds), Source: c.Source("token_ttl")},
		{Name: "jwt_issuer", Value: c.JWTIssuer, Source: c.Source("jwt_issuer")},
		{Name: "cors_allowed_origins", Value: strings.Join(c.CORSAllowedOrigins, ","), Source: c.Source("cors_allowed_origins")},
		{Name: "write_retries", Value: strconv.Itoa(c.WriteRetries), Source: c.Source("write_retries")},
		{Name: "request_timeout", Value: strconv.Itoa(c.RequestTimeoutSeconds), Source: c.Source("request_timeout")},
		{Name: "min_password_length", Value: strconv.Itoa(c.MinPasswordLength), Source: c.Source("min_password_length")},
		{Name: "default_work_location", Value: c.DefaultWorkLocation, Source: c.Source("default_work_location")},
		{Name: "audit_enabled", Value: strconv.FormatBool(c.AuditEnabled), Source: c.Source("audit_enabled")},
	}
}

// FormatText returns a text representation of the configuration
func (c *PortalConfig) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *PortalConfig) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
