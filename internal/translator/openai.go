package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// langNames gives the prompt-facing names of the supported languages
var langNames = map[types.Lang]string{
	types.LangJapanese: "Japanese",
	types.LangEnglish:  "English",
	types.LangChinese:  "Simplified Chinese",
	types.LangKorean:   "Korean",
}

// ChatCompletionRequest is the chat completions request payload
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the chat completions response payload
type ChatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIClient is a Translator backed by an OpenAI-compatible endpoint
type OpenAIClient struct {
	apiKey      string
	apiURL      string
	model       string
	client      *http.Client
	concurrency int
}

// NewOpenAIClient creates a client. Empty model, url or non-positive
// values fall back to defaults; the url is completed with the chat
// completions path when needed.
func NewOpenAIClient(apiKey, model, apiURL string, timeout time.Duration, concurrency int) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = 3
	}
	return &OpenAIClient{
		apiKey:      apiKey,
		apiURL:      normalizeAPIURL(apiURL),
		model:       model,
		client:      &http.Client{Timeout: timeout},
		concurrency: concurrency,
	}
}

// normalizeAPIURL ensures the URL ends with /chat/completions
func normalizeAPIURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	return url + "/chat/completions"
}

// Translate sends the units in size-bounded batches and merges the
// tagged responses back into an address map.
func (c *OpenAIClient) Translate(ctx context.Context, units map[string]string, source, target types.Lang) (map[string]string, error) {
	if c.apiKey == "" {
		return nil, types.NewAppError(types.ErrConfig, "translator API key is not configured", nil)
	}
	if len(units) == 0 {
		return map[string]string{}, nil
	}

	logger.Info("translating units",
		logger.Int("units", len(units)),
		logger.String("source", string(source)),
		logger.String("target", string(target)))

	return mergeBatches(ctx, units, c.concurrency,
		func(ctx context.Context, batch map[string]string) (map[string]string, error) {
			return c.translateBatch(ctx, batch, source, target)
		})
}

func (c *OpenAIClient) translateBatch(ctx context.Context, batch map[string]string, source, target types.Lang) (map[string]string, error) {
	prompt := c.buildPrompt(batch, source, target)

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			delay := BaseRetryDelay * time.Duration(1<<(attempt-1))
			logger.Debug("retrying translation batch",
				logger.Int("attempt", attempt),
				logger.Any("delay", delay.String()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		reply, err := c.complete(ctx, prompt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		out := ParseUnits(reply)
		if len(out) == 0 {
			lastErr = types.NewAppError(types.ErrTranslation,
				"translator response carried no tagged units", nil)
			continue
		}
		// Drop addresses the model invented
		for a := range out {
			if _, ok := batch[a]; !ok {
				delete(out, a)
			}
		}
		return out, nil
	}
	return nil, types.NewAppError(types.ErrTranslation, "translation batch failed", lastErr)
}

func (c *OpenAIClient) buildPrompt(batch map[string]string, source, target types.Lang) string {
	src, tgt := langNames[source], langNames[target]
	if src == "" {
		src = string(source)
	}
	if tgt == "" {
		tgt = string(target)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following %s text segments into %s.\n", src, tgt)
	sb.WriteString("Each segment starts with an address tag like <<P1_0>>. Rules:\n")
	sb.WriteString("1. Keep every address tag exactly as written, one segment per line.\n")
	sb.WriteString("2. Tokens of the form {v0}, {v1}, ... are protected content; copy them into the translation unchanged.\n")
	sb.WriteString("3. Output only the tagged translations, nothing else.\n\n")
	sb.WriteString(FormatUnits(batch))
	return sb.String()
}

// complete performs one chat completions call
func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrTranslation, "translation request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrTranslation, "reading translation response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(types.ErrTranslation,
			fmt.Sprintf("translation API returned status %d", resp.StatusCode), nil)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", types.NewAppError(types.ErrTranslation, "malformed translation response", err)
	}
	if chatResp.Error != nil {
		return "", types.NewAppError(types.ErrTranslation, chatResp.Error.Message, nil)
	}
	if len(chatResp.Choices) == 0 {
		return "", types.NewAppError(types.ErrTranslation, "translation response carried no choices", nil)
	}
	return chatResp.Choices[0].Message.Content, nil
}
