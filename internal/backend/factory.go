package backend

import (
	"context"
	"fmt"
	"net/http"

	"sahayak/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	client *http.Client
}

// NewFactory creates a new source factory. A nil logger discards output.
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// WithHTTPClient makes HTTP sources use client instead of a fresh one.
func (f *DefaultFactory) WithHTTPClient(client *http.Client) *DefaultFactory {
	f.client = client
	return f
}

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*SourceResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case HTTPSourceType:
		return f.createHTTPSource(config)
	case FileSourceType:
		return f.createFileSource(config)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", config.Type)
	}
}

func (f *DefaultFactory) createHTTPSource(config Config) (*SourceResult, error) {
	client := f.client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	src, err := NewHTTPSource(client, config.BaseURL, config.TxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize http source: %w", err)
	}

	f.logger.Info("Initialized http source", "base_url", config.BaseURL, "tx_path", config.TxPath)

	return &SourceResult{
		Source: src,
		Cleanup: func() error {
			client.CloseIdleConnections()
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createFileSource(config Config) (*SourceResult, error) {
	src := NewFileSource(config.File)

	f.logger.Info("Initialized file source", "file", config.File)

	return &SourceResult{Source: src, Cleanup: func() error { return nil }}, nil
}
