package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// StageConfig holds configuration for the stage collaborator client.
type StageConfig struct {
	// DefaultOrigin is used when a job carries no requestOrigin of its own.
	DefaultOrigin string

	// StageTimeout bounds the analysis/strategy/design/content calls.
	StageTimeout time.Duration

	// BuildTimeout bounds the generate-website call, which runs much longer.
	BuildTimeout time.Duration
}

// StageClient calls the remote generation endpoints that do the actual AI
// work. Each method maps to one pipeline stage; the response contract is
// uniform: {success, data} with a 2xx status, anything else is a stage error.
type StageClient struct {
	client        *resty.Client
	buildClient   *resty.Client
	defaultOrigin string
}

// NewStageClient creates a stage collaborator client.
func NewStageClient(cfg *StageConfig) *StageClient {
	stageTimeout := cfg.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = 120 * time.Second
	}
	buildTimeout := cfg.BuildTimeout
	if buildTimeout <= 0 {
		buildTimeout = 300 * time.Second
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(stageTimeout)

	buildClient := resty.New()
	buildClient.SetHeader("Content-Type", "application/json")
	buildClient.SetTimeout(buildTimeout)

	return &StageClient{
		client:        client,
		buildClient:   buildClient,
		defaultOrigin: cfg.DefaultOrigin,
	}
}

// Origin resolves the request origin for a job: the caller-supplied origin
// wins, otherwise the configured fallback base URL.
func (c *StageClient) Origin(requestOrigin string) string {
	if requestOrigin != "" {
		return requestOrigin
	}
	return c.defaultOrigin
}

// stageResponse is the uniform collaborator response envelope.
type stageResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error,omitempty"`
}

// Analyze runs domain analysis; the interesting payload is data.bestDomain.
func (c *StageClient) Analyze(ctx context.Context, origin, domain string) (map[string]any, error) {
	data, err := c.post(ctx, c.client, origin+"/api/analyze", map[string]any{
		"domains": []string{domain},
	})
	if err != nil {
		return nil, fmt.Errorf("domain analysis failed: %w", err)
	}
	best, ok := data["bestDomain"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("domain analysis failed: response has no bestDomain")
	}
	return best, nil
}

// StrategyRequest carries the inputs for the strategy stage.
type StrategyRequest struct {
	DomainAnalysis map[string]any `json:"domainAnalysis"`
	AnalysisID     string         `json:"analysisId"`
	Regenerate     bool           `json:"regenerate"`
	UserComments   string         `json:"userComments,omitempty"`
	ProjectID      string         `json:"projectId,omitempty"`
}

// Strategy generates the business strategy.
func (c *StageClient) Strategy(ctx context.Context, origin string, req *StrategyRequest) (map[string]any, error) {
	data, err := c.post(ctx, c.client, origin+"/api/strategy", req)
	if err != nil {
		return nil, fmt.Errorf("strategy generation failed: %w", err)
	}
	return data, nil
}

// Design generates the design system.
func (c *StageClient) Design(ctx context.Context, origin, domain string, strategy map[string]any, executionID string) (map[string]any, error) {
	data, err := c.post(ctx, c.client, origin+"/api/agents/design", map[string]any{
		"domain":      domain,
		"strategy":    strategy,
		"executionId": executionID,
	})
	if err != nil {
		return nil, fmt.Errorf("design generation failed: %w", err)
	}
	return data, nil
}

// ContentRequest carries the inputs for the content stage.
type ContentRequest struct {
	Domain       string         `json:"domain"`
	Strategy     map[string]any `json:"strategy"`
	DesignSystem map[string]any `json:"designSystem"`
	ExecutionID  string         `json:"executionId"`
	Regenerate   bool           `json:"regenerate"`
	UserComments string         `json:"userComments,omitempty"`
	ProjectID    string         `json:"projectId,omitempty"`
}

// Content generates the website content.
func (c *StageClient) Content(ctx context.Context, origin string, req *ContentRequest) (map[string]any, error) {
	data, err := c.post(ctx, c.client, origin+"/api/agents/content", req)
	if err != nil {
		return nil, fmt.Errorf("content generation failed: %w", err)
	}
	return data, nil
}

// BuildRequest carries the inputs for the website build stage.
type BuildRequest struct {
	Domain         string         `json:"domain"`
	Strategy       map[string]any `json:"strategy"`
	DesignSystem   map[string]any `json:"designSystem"`
	WebsiteContent map[string]any `json:"websiteContent"`
	ExecutionID    string         `json:"executionId"`
	Regenerate     bool           `json:"regenerate"`
	UserComments   string         `json:"userComments,omitempty"`
	ProjectID      string         `json:"projectId,omitempty"`
}

// Build generates and deploys the website. Its output is expected to carry
// the deploymentUrl consumed by the deploy stage.
func (c *StageClient) Build(ctx context.Context, origin string, req *BuildRequest) (map[string]any, error) {
	data, err := c.post(ctx, c.buildClient, origin+"/api/generate-website", req)
	if err != nil {
		return nil, fmt.Errorf("website building failed: %w", err)
	}
	return data, nil
}

func (c *StageClient) post(ctx context.Context, client *resty.Client, url string, body any) (map[string]any, error) {
	var result stageResponse
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "success=false"
		}
		return nil, fmt.Errorf("collaborator rejected request: %s", msg)
	}
	return result.Data, nil
}
