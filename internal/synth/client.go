package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"emotag/internal/domain"
)

var ErrBackendDisabled = errors.New("synthesis backend is not configured")

// Client submits plans to the external speech synthesis backend.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) Synthesize(ctx context.Context, plan domain.SynthesisPlan) (domain.SynthesisResult, error) {
	if !c.Enabled() {
		return domain.SynthesisResult{}, ErrBackendDisabled
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return domain.SynthesisResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return domain.SynthesisResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SynthesisResult{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return domain.SynthesisResult{}, fmt.Errorf("synthesis backend status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out domain.SynthesisResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return domain.SynthesisResult{}, err
	}
	if out.RequestID == "" {
		out.RequestID = plan.RequestID
	}
	return out, nil
}
