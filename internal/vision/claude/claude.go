package claude

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"wastewatch/internal/vision"
)

// maxTokens is generous headroom for a fully itemized plate analysis.
const maxTokens = 1024

// ClaudeAnalyzer is the production vision collaborator, backed by the
// Anthropic Messages API.
type ClaudeAnalyzer struct {
	apiKey string
	model  string
	client *anthropic.Client
}

// NewClaudeAnalyzer builds an analyzer for the given API key and model.
// Extra client options (e.g. a base URL override in tests) are passed through.
func NewClaudeAnalyzer(apiKey, model string, opts ...anthropic.ClientOption) *ClaudeAnalyzer {
	return &ClaudeAnalyzer{
		apiKey: apiKey,
		model:  model,
		client: anthropic.NewClient(apiKey, opts...),
	}
}

func (a *ClaudeAnalyzer) Analyze(ctx context.Context, r io.Reader, mimeType string) (*vision.AnalysisResult, error) {
	if a.apiKey == "" {
		return nil, &vision.Error{Kind: vision.KindMissingCredential, Message: "no API key configured"}
	}

	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, &vision.Error{Kind: vision.KindInvalidInput, Message: "failed to read image", Err: err}
	}

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
						anthropic.MessagesContentSourceTypeBase64,
						normaliseMIME(mimeType),
						imageData,
					)),
					anthropic.NewTextMessageContent(vision.AnalysisPrompt),
				},
			},
		},
	})
	if err != nil {
		return nil, classify(err)
	}

	return vision.ParseResponse(resp.GetFirstContentText())
}

// classify maps Anthropic client failures onto the collaborator taxonomy.
func classify(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		switch {
		case apiErr.IsAuthenticationErr():
			return &vision.Error{Kind: vision.KindMissingCredential, Message: msg, Err: err}
		case apiErr.IsPermissionErr():
			return &vision.Error{Kind: vision.KindAccessDenied, Message: msg, Err: err}
		case apiErr.IsRateLimitErr():
			if mentionsQuota(msg) {
				return &vision.Error{Kind: vision.KindQuotaExceeded, Message: msg, Err: err}
			}
			return &vision.Error{Kind: vision.KindRateLimited, Message: msg, Err: err}
		case apiErr.IsInvalidRequestErr():
			if mentionsQuota(msg) {
				return &vision.Error{Kind: vision.KindQuotaExceeded, Message: msg, Err: err}
			}
			return &vision.Error{Kind: vision.KindInvalidInput, Message: msg, Err: err}
		case apiErr.IsOverloadedErr(), apiErr.IsApiErr():
			return &vision.Error{Kind: vision.KindUpstreamUnavailable, Message: msg, Err: err}
		default:
			return &vision.Error{Kind: vision.KindUpstreamUnavailable, Message: msg, Err: err}
		}
	}

	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &vision.Error{
			Kind:    vision.KindUpstreamUnavailable,
			Message: fmt.Sprintf("request failed with status %d", reqErr.StatusCode),
			Err:     err,
		}
	}

	return &vision.Error{Kind: vision.KindUpstreamUnavailable, Message: err.Error(), Err: err}
}

// mentionsQuota distinguishes credit/quota exhaustion from plain throttling;
// Anthropic reports both through the same error types.
func mentionsQuota(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "credit") || strings.Contains(lower, "quota")
}

// normaliseMIME maps browser MIME types to the values the Anthropic API
// accepts (jpeg, png, gif, webp). Unknown types fall back to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
