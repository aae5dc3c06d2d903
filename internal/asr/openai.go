package asr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAI transcribes through the OpenAI audio transcription endpoint (or a
// compatible server at baseURL).
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an OpenAI provider. An empty baseURL uses the public API.
func NewOpenAI(token, baseURL string, httpClient *http.Client) *OpenAI {
	cfg := openai.DefaultConfig(token)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAI) Transcribe(ctx context.Context, req Request) (Result, error) {
	model := req.Model
	if model == "" {
		model = openai.Whisper1
	}
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: req.AudioPath,
		Prompt:   req.Prompt,
		Language: req.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return Result{}, classifyOpenAI(ctx, err)
	}
	raw, _ := json.Marshal(resp)
	return Result{Text: resp.Text, Raw: raw}, nil
}

func classifyOpenAI(ctx context.Context, err error) error {
	se := &ServiceError{Provider: "openai", Err: err}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		se.StatusCode = apiErr.HTTPStatusCode
		se.Kind = KindForStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		se.StatusCode = reqErr.HTTPStatusCode
		se.Kind = KindForStatus(reqErr.HTTPStatusCode)
	case ctx.Err() != nil:
		se.Kind = KindForError(ctx.Err())
	default:
		se.Kind = KindForError(err)
	}
	return se
}
