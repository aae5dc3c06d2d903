package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"talkpaste/internal/config"
	"talkpaste/internal/jsonpath"
)

// HTTP uploads audio as multipart form data to a generic endpoint and
// extracts the transcript from the JSON response with a configured path.
type HTTP struct {
	endpoint       string
	token          string
	textPath       jsonpath.Path
	httpClient     *http.Client
	extraConfigMap map[string]interface{}
}

// NewHTTP creates the provider and parses ExtraConfig and TEXT_PATH.
func NewHTTP(cfg config.Config, httpClient *http.Client) (*HTTP, error) {
	if cfg.APIEndpoint == "" {
		return nil, fmt.Errorf("API endpoint is empty")
	}
	p, err := jsonpath.Compile(cfg.TEXTPath)
	if err != nil {
		return nil, err
	}
	c := &HTTP{endpoint: cfg.APIEndpoint, token: cfg.Token, textPath: p, httpClient: httpClient}
	if cfg.ExtraConfig != "" {
		c.extraConfigMap = make(map[string]interface{})
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &c.extraConfigMap); err != nil {
			return nil, fmt.Errorf("invalid extra-config JSON: %w", err)
		}
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c, nil
}

// Transcribe performs a single upload.
func (c *HTTP) Transcribe(ctx context.Context, req Request) (Result, error) {
	body, contentType, err := c.form(req)
	if err != nil {
		return Result{}, &ServiceError{Kind: KindMalformedAudio, Provider: "http", Err: err}
	}

	hreq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, body)
	if err != nil {
		return Result{}, &ServiceError{Kind: KindNetwork, Provider: "http", Err: err}
	}
	hreq.Header.Set("Content-Type", contentType)
	if c.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.token)
	}
	hreq.Header.Set("User-Agent", "talkpaste/1.0")

	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return Result{}, &ServiceError{Kind: KindForError(err), Provider: "http", Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &ServiceError{Kind: KindForError(err), Provider: "http", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Raw: respBody}, &ServiceError{
			Kind:       KindForStatus(resp.StatusCode),
			Provider:   "http",
			StatusCode: resp.StatusCode,
			Body:       formatResponse(respBody),
		}
	}

	text, err := jsonpath.ExtractText(respBody, c.textPath)
	if err != nil {
		// plain-text responses carry the transcript directly
		if utf8.Valid(respBody) {
			return Result{Text: strings.TrimSpace(string(respBody)), Raw: respBody}, nil
		}
		return Result{Raw: respBody}, &ServiceError{Kind: KindNetwork, Provider: "http", StatusCode: resp.StatusCode, Err: err}
	}
	return Result{Text: text, Raw: respBody}, nil
}

func (c *HTTP) form(req Request) (io.Reader, string, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open file error: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file error: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy file error: %w", err)
	}

	base := make(map[string]interface{})
	if req.Model != "" {
		base["model"] = req.Model
	}
	if req.Language != "" {
		base["language"] = req.Language
	}
	if req.Prompt != "" {
		base["prompt"] = req.Prompt
	}
	for k, v := range c.extraConfigMap {
		base[k] = v
	}
	for k, v := range base {
		switch val := v.(type) {
		case string:
			_ = writer.WriteField(k, val)
		case bool, float64, int:
			_ = writer.WriteField(k, fmt.Sprintf("%v", val))
		default:
			if b, err := json.Marshal(val); err == nil {
				_ = writer.WriteField(k, string(b))
			} else {
				_ = writer.WriteField(k, fmt.Sprintf("%v", val))
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
