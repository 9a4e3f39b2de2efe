package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/printforge/printforge/internal/core"
)

// ConverterChain tries a prioritized list of image-to-3D backends in order
// and returns the first success. Backend errors accumulate so a total
// failure reports every attempt.
type ConverterChain struct {
	converters []core.MeshConverter
	logger     *slog.Logger
}

// NewConverterChain builds a chain over the given backends, highest
// priority first.
func NewConverterChain(converters []core.MeshConverter, logger *slog.Logger) *ConverterChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConverterChain{
		converters: converters,
		logger:     logger.With("component", "converter_chain"),
	}
}

// Convert runs the chain. Returns the first successful mesh; when every
// backend fails, the joined errors identify each one.
func (c *ConverterChain) Convert(ctx context.Context, image []byte) ([]byte, error) {
	if len(c.converters) == 0 {
		return nil, errors.New("no conversion backends configured")
	}
	var errs []error
	for _, converter := range c.converters {
		meshBytes, err := converter.Convert(ctx, image)
		if err == nil {
			c.logger.InfoContext(ctx, "image converted", "backend", converter.Name())
			return meshBytes, nil
		}
		c.logger.WarnContext(ctx, "conversion backend failed",
			"backend", converter.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", converter.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all conversion backends failed: %w", errors.Join(errs...))
}

// HTTPConverter posts an image to a conversion endpoint and receives raw
// mesh bytes back.
type HTTPConverter struct {
	name   string
	url    string
	client *http.Client
}

var _ core.MeshConverter = (*HTTPConverter)(nil)

// NewHTTPConverter builds a backend for one endpoint.
func NewHTTPConverter(name, url string, timeout time.Duration) *HTTPConverter {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPConverter{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the backend in logs and joined errors.
func (c *HTTPConverter) Name() string { return c.name }

// Convert posts the image and returns the response body as mesh bytes.
func (c *HTTPConverter) Convert(ctx context.Context, image []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post image: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body already fully read

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read conversion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("conversion endpoint returned %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, errors.New("conversion endpoint returned empty mesh")
	}
	return body, nil
}

// ParseConverterBackends parses the comma-separated name=url backend list
// from configuration into a prioritized converter slice.
func ParseConverterBackends(spec string, timeout time.Duration) ([]core.MeshConverter, error) {
	var converters []core.MeshConverter
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, url, ok := strings.Cut(part, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("bad converter backend %q, want name=url", part)
		}
		converters = append(converters, NewHTTPConverter(name, url, timeout))
	}
	return converters, nil
}
