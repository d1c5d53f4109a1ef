package qdrant

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/eduforge/coursegen-backend/internal/platform/envutil"
)

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
)

type ConfigError struct {
	Code    ConfigErrorCode
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("qdrant config error (%s): %s", e.Code, e.Message)
}

type Config struct {
	URL             string
	Collection      string
	NamespacePrefix string
	VectorDim       int
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:             strings.TrimSpace(envutil.Str("QDRANT_URL", "")),
		Collection:      strings.TrimSpace(envutil.Str("QDRANT_COLLECTION", "")),
		NamespacePrefix: strings.TrimSpace(envutil.Str("QDRANT_NAMESPACE_PREFIX", "")),
		VectorDim:       envutil.Int("QDRANT_VECTOR_DIM", 0),
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if cfg.URL == "" {
		return &ConfigError{Code: ConfigErrorMissingURL, Message: "QDRANT_URL is required"}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Message: fmt.Sprintf("QDRANT_URL %q is not a valid absolute URL", cfg.URL)}
	}
	if cfg.Collection == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection, Message: "QDRANT_COLLECTION is required"}
	}
	if cfg.VectorDim <= 0 {
		return &ConfigError{Code: ConfigErrorInvalidVectorDim, Message: "QDRANT_VECTOR_DIM must be a positive integer"}
	}
	return nil
}
