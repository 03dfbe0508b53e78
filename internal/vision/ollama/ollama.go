package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wastewatch/internal/vision"
)

// OllamaAnalyzer runs the analysis against a local Ollama instance. Useful
// for development without an Anthropic key; accuracy depends on the model.
type OllamaAnalyzer struct {
	host   string
	model  string
	client *http.Client
}

func NewOllamaAnalyzer(host, model string) *OllamaAnalyzer {
	return &OllamaAnalyzer{
		host:   host,
		model:  model,
		client: &http.Client{},
	}
}

func (a *OllamaAnalyzer) Analyze(ctx context.Context, r io.Reader, mimeType string) (*vision.AnalysisResult, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, &vision.Error{Kind: vision.KindInvalidInput, Message: "failed to read image", Err: err}
	}

	reqBody := map[string]any{
		"model":  a.model,
		"prompt": vision.AnalysisPrompt,
		"images": []string{base64.StdEncoding.EncodeToString(imageData)},
		"stream": false,
		"format": "json",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &vision.Error{Kind: vision.KindInvalidInput, Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, &vision.Error{Kind: vision.KindInvalidInput, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &vision.Error{Kind: vision.KindUpstreamUnavailable, Message: "failed to call ollama", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	var respBody struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, &vision.Error{Kind: vision.KindMalformedResponse, Message: "failed to decode ollama response", Err: err}
	}

	return vision.ParseResponse(respBody.Response)
}

// classifyStatus maps Ollama HTTP failures onto the collaborator taxonomy.
// Ollama has no structured error contract, so the status code is all there is.
func classifyStatus(status int) error {
	msg := fmt.Sprintf("ollama returned status %d", status)
	switch {
	case status == http.StatusUnauthorized:
		return &vision.Error{Kind: vision.KindMissingCredential, Message: msg}
	case status == http.StatusForbidden:
		return &vision.Error{Kind: vision.KindAccessDenied, Message: msg}
	case status == http.StatusTooManyRequests:
		return &vision.Error{Kind: vision.KindRateLimited, Message: msg}
	case status >= 400 && status < 500:
		return &vision.Error{Kind: vision.KindInvalidInput, Message: msg}
	default:
		return &vision.Error{Kind: vision.KindUpstreamUnavailable, Message: msg}
	}
}
