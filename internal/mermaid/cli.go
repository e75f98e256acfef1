package mermaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CLIRenderer renders by running the mermaid-cli (mmdc) binary.
type CLIRenderer struct {
	path            string
	puppeteerConfig string
	timeout         time.Duration
	logger          zerolog.Logger

	mu  sync.Mutex
	cfg Config
}

// NewCLIRenderer creates a renderer invoking the mmdc binary at path.
func NewCLIRenderer(path, puppeteerConfig string, timeout time.Duration, logger zerolog.Logger) *CLIRenderer {
	return &CLIRenderer{
		path:            path,
		puppeteerConfig: puppeteerConfig,
		timeout:         timeout,
		logger:          logger.With().Str("component", "mmdc").Logger(),
	}
}

// Initialize stores the configuration written for subsequent renders.
func (c *CLIRenderer) Initialize(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// Render writes source and config into a private temp dir, runs mmdc and
// reads back the SVG. The temp dir is removed on every path.
func (c *CLIRenderer) Render(ctx context.Context, containerID, source string) (*Result, error) {
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	dir, err := os.MkdirTemp("", "mermaid-studio-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "diagram.mmd")
	out := filepath.Join(dir, "diagram.svg")
	cfgPath := filepath.Join(dir, "config.json")

	if err := os.WriteFile(in, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write diagram source: %w", err)
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode render config: %w", err)
	}
	if err := os.WriteFile(cfgPath, cfgJSON, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write render config: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"-i", in, "-o", out, "-c", cfgPath, "--svgId", containerID, "-q"}
	if c.puppeteerConfig != "" {
		args = append(args, "-p", c.puppeteerConfig)
	}

	cmd := exec.CommandContext(ctx, c.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug().Str("container", containerID).Msg("running mmdc")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("mmdc interrupted: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &RenderError{Message: cliMessage(stderr.String())}
		}
		return nil, fmt.Errorf("failed to run mmdc: %w", err)
	}

	svg, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read mmdc output: %w", err)
	}

	return &Result{ContainerID: containerID, SVG: svg}, nil
}

// cliMessage keeps the useful part of mmdc's stderr, dropping the node
// stack trace that follows the parser message.
func cliMessage(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return "diagram source rejected by renderer"
	}
	lines := strings.Split(stderr, "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "at ") {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
