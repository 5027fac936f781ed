package backend

import (
	"fmt"
	"strings"
	"time"

	"sahayak/internal/config"
)

// Config holds configuration for source creation
type Config struct {
	Type SourceType

	// HTTP source
	BaseURL string
	TxPath  string
	Timeout time.Duration

	// File source
	File string
}

// FromAppConfig converts the application config to source config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	sourceType := SourceType(appConfig.SourceType)
	if !sourceType.IsValid() {
		return Config{}, fmt.Errorf("invalid source type in config: %s (want one of %v)", appConfig.SourceType, SourceTypes())
	}

	return Config{
		Type:    sourceType,
		BaseURL: strings.TrimRight(appConfig.BackendURL, "/"),
		TxPath:  appConfig.BackendTxPath,
		Timeout: appConfig.BackendTimeout,
		File:    appConfig.SourceFile,
	}, nil
}

// Validate validates the source configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid source type: %s", c.Type)
	}

	switch c.Type {
	case HTTPSourceType:
		if c.BaseURL == "" {
			return fmt.Errorf("base URL is required for http source")
		}
	case FileSourceType:
		if c.File == "" {
			return fmt.Errorf("file path is required for file source")
		}
	}

	return nil
}

// SourceTypes returns all valid source types
func SourceTypes() []SourceType {
	return []SourceType{HTTPSourceType, FileSourceType}
}
