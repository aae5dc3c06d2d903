package asr

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/http2"

	"talkpaste/internal/config"
)

// Kind classifies transcription failures.
type Kind string

const (
	KindAuth           Kind = "auth"
	KindRateLimit      Kind = "rate-limit"
	KindTimeout        Kind = "timeout"
	KindNetwork        Kind = "network"
	KindMalformedAudio Kind = "malformed-audio"
)

// ServiceError is returned for every failed transcription request.
type ServiceError struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status code to a failure kind.
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusBadRequest || code == http.StatusRequestEntityTooLarge ||
		code == http.StatusUnsupportedMediaType || code == http.StatusUnprocessableEntity:
		return KindMalformedAudio
	}
	return KindNetwork
}

// KindForError classifies a transport error.
func KindForError(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// Request is one transcription call.
type Request struct {
	AudioPath string
	Prompt    string
	Language  string
	Model     string
}

// Result is the transcript and the provider's raw response.
type Result struct {
	Text string
	Raw  []byte
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// New builds the transcriber selected by cfg.Provider.
func New(cfg config.Config, httpClient *http.Client) (Transcriber, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAI(cfg.Token, cfg.APIEndpoint, httpClient), nil
	case "http":
		p, err := NewHTTP(cfg, httpClient)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// NewHTTPClient returns the client shared by providers. Per-request timeouts
// come from the caller's context.
func NewHTTPClient(cfg config.Config) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !cfg.VerifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.EnableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	return &http.Client{Transport: tr}
}

// BuildPrompt joins the configured prompt with the vocabulary hint.
func BuildPrompt(base string, vocab *Vocabulary) string {
	hint := ""
	if vocab != nil {
		hint = vocab.Prompt()
	}
	switch {
	case base == "":
		return hint
	case hint == "":
		return base
	}
	return base + " " + hint
}

func formatResponse(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	const maxText = 1000
	const maxBin = 256

	if utf8.Valid(b) {
		s := string(b)
		if len(s) > maxText {
			return fmt.Sprintf("%s... (truncated, total %d bytes)", s[:maxText], len(b))
		}
		return s
	}

	if len(b) > maxBin {
		return fmt.Sprintf("<binary %d bytes, prefix hex: %s...>", len(b), hex.EncodeToString(b[:maxBin]))
	}
	return fmt.Sprintf("<binary %d bytes, hex: %s>", len(b), hex.EncodeToString(b))
}
