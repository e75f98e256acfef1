package mermaid

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Backend names accepted by NewFactory.
const (
	BackendKroki = "kroki"
	BackendMMDC  = "mmdc"
)

// Options selects and configures a render backend.
type Options struct {
	Backend         string
	KrokiURL        string
	MMDCPath        string
	PuppeteerConfig string
	Timeout         time.Duration
	RetryMax        int
}

// NewFactory validates opts and returns a Factory for the chosen backend.
func NewFactory(opts Options, logger zerolog.Logger) (Factory, error) {
	switch opts.Backend {
	case BackendKroki, "":
		u, err := url.Parse(opts.KrokiURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid kroki url %q", opts.KrokiURL)
		}
		client := NewKrokiClient(opts.Timeout, opts.RetryMax, logger)
		return func() Renderer {
			return NewKrokiRenderer(opts.KrokiURL, client)
		}, nil
	case BackendMMDC:
		if opts.MMDCPath == "" {
			return nil, fmt.Errorf("mmdc path must be set for the %s backend", BackendMMDC)
		}
		return func() Renderer {
			return NewCLIRenderer(opts.MMDCPath, opts.PuppeteerConfig, opts.Timeout, logger)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported renderer backend: %s", opts.Backend)
	}
}
