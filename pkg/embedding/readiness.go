package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EnsureModelReady verifies the embedding model is installed on the Ollama
// host, optionally triggering a pull when it is missing. Called once at
// startup before any ingestion or retrieval runs.
func (p *OllamaProvider) EnsureModelReady(ctx context.Context, autoPull bool, pullTimeout time.Duration) error {
	available, err := p.isModelAvailable(ctx)
	if err != nil {
		return fmt.Errorf("check ollama model: %w", err)
	}
	if available {
		return nil
	}
	if !autoPull {
		return fmt.Errorf("embedding model %s not installed; run: ollama pull %s", p.Model, p.Model)
	}

	if err := p.pullModel(ctx, pullTimeout); err != nil {
		return fmt.Errorf("pull embedding model %s: %w", p.Model, err)
	}

	available, err = p.isModelAvailable(ctx)
	if err != nil {
		return fmt.Errorf("recheck ollama model: %w", err)
	}
	if !available {
		return fmt.Errorf("embedding model %s still unavailable after pull, check the ollama service logs", p.Model)
	}
	return nil
}

func (p *OllamaProvider) isModelAvailable(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ollama tags endpoint returned %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, err
	}
	for _, m := range tags.Models {
		if m.Name == p.Model || strings.HasPrefix(m.Name, p.Model+":") {
			return true, nil
		}
	}
	return false, nil
}

func (p *OllamaProvider) pullModel(ctx context.Context, timeout time.Duration) error {
	if timeout < 30*time.Second {
		timeout = 30 * time.Second
	}

	body, err := json.Marshal(map[string]any{"name": p.Model, "stream": false})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/pull", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulls download gigabytes; use a dedicated long-timeout client.
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama pull returned %d", resp.StatusCode)
	}
	return nil
}
