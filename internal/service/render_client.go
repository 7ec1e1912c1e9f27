package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"app/internal/config"

	"github.com/rs/zerolog"
)

// RenderService produces an image artifact from a template identifier and
// a property bag. The service is stateless and slow; callers are expected
// to cache its output.
type RenderService interface {
	Render(ctx context.Context, templateID string, props map[string]interface{}) (string, error)
}

type renderClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewRenderClient(cfg *config.Config, logger zerolog.Logger) RenderService {
	return &renderClient{
		baseURL: strings.TrimRight(cfg.RenderServiceBaseURL, "/"),
		client:  &http.Client{Timeout: time.Duration(cfg.RenderTimeoutSec) * time.Second},
		logger:  logger.With().Str("service", "RenderClient").Logger(),
	}
}

type renderRequest struct {
	TemplateID string                 `json:"template_id"`
	Props      map[string]interface{} `json:"props"`
}

// Render calls the render service and returns the base64-encoded image.
func (c *renderClient) Render(ctx context.Context, templateID string, props map[string]interface{}) (string, error) {
	jsonBody, err := json.Marshal(renderRequest{TemplateID: templateID, Props: props})
	if err != nil {
		return "", fmt.Errorf("marshaling render request: %w", err)
	}

	url := fmt.Sprintf("%s/render", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("making request to render service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading render response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("template_id", templateID).
			Str("error_body", string(body)).
			Msg("Render service returned error")
		return "", fmt.Errorf("render service returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info().
		Str("template_id", templateID).
		Str("duration", time.Since(start).String()).
		Msg("Render succeeded")
	return string(body), nil
}
