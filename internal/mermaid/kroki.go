package mermaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// maxResponseBytes bounds the SVG accepted from the render service.
const maxResponseBytes = 16 << 20

var rootIDPattern = regexp.MustCompile(`<svg\b[^>]*?\sid="([^"]+)"`)

// KrokiRenderer renders through a Kroki compatible HTTP service.
type KrokiRenderer struct {
	baseURL string
	client  *retryablehttp.Client

	mu  sync.Mutex
	cfg Config
}

// NewKrokiClient builds the retrying HTTP client shared by Kroki renderers.
func NewKrokiClient(timeout time.Duration, retryMax int, logger zerolog.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = leveledLogger{logger: logger.With().Str("component", "kroki").Logger()}
	return client
}

// NewKrokiRenderer creates a renderer posting to baseURL.
func NewKrokiRenderer(baseURL string, client *retryablehttp.Client) *KrokiRenderer {
	return &KrokiRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Initialize stores the configuration sent with subsequent renders.
func (k *KrokiRenderer) Initialize(cfg Config) {
	k.mu.Lock()
	k.cfg = cfg
	k.mu.Unlock()
}

// Render posts the source, prefixed with an init directive, and returns the
// SVG with its root id replaced by containerID.
func (k *KrokiRenderer) Render(ctx context.Context, containerID, source string) (*Result, error) {
	k.mu.Lock()
	cfg := k.cfg
	k.mu.Unlock()

	directive, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode render config: %w", err)
	}

	var body bytes.Buffer
	body.WriteString("%%{init: ")
	body.Write(directive)
	body.WriteString("}%%\n")
	body.WriteString(source)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/mermaid/svg", body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "image/svg+xml")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach render service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read render response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = "diagram source rejected by renderer"
		}
		return nil, &RenderError{Message: msg}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("render service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return &Result{ContainerID: containerID, SVG: replaceRootID(data, containerID)}, nil
}

// replaceRootID renames the root element id and every reference to it, so
// scoped style rules keep matching. Mermaid derives marker and gradient ids
// from the root id (my-svg_flowchart-v2-pointEnd); ids and references that
// start with the root id are renamed alike so url(#...) links stay intact.
func replaceRootID(svg []byte, id string) []byte {
	m := rootIDPattern.FindSubmatch(svg)
	if m == nil {
		return bytes.Replace(svg, []byte("<svg"), []byte(`<svg id="`+id+`"`), 1)
	}
	old := string(m[1])
	if old == id {
		return svg
	}
	out := bytes.ReplaceAll(svg, []byte(`id="`+old), []byte(`id="`+id))
	return bytes.ReplaceAll(out, []byte("#"+old), []byte("#"+id))
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
