package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/ratelimit"
	"github.com/joseph-ayodele/invoice-pipeline/internal/textparse"
)

const (
	maxRetryAfterWait = 60 * time.Second
	maxRepairDepth    = 1
)

// Client calls an OpenAI-compatible chat completions endpoint with quota
// reservations, bounded retries and a single JSON repair round-trip.
type Client struct {
	cfg        common.LLMConfig
	httpClient *http.Client
	ledger     *ratelimit.Ledger
	logger     *slog.Logger
}

func NewClient(cfg common.LLMConfig, ledger *ratelimit.Ledger, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 4
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		ledger:     ledger,
		logger:     logger,
	}
}

// Complete runs one structured completion. Without an API key it either
// serves the offline stub or fails as a configuration error.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		if c.cfg.AllowStub {
			c.logger.Warn("llm.stub.active", "tag", req.Tag)
			return stubCompletion(req.Messages)
		}
		return "", common.NewAppError("MISSING_API_KEY",
			"no API key configured and stub mode is disabled", common.ErrConfiguration)
	}
	return c.complete(ctx, req, 0)
}

type chatRequestBody struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float32         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Message          string `json:"message"`
		Type             string `json:"type"`
		Code             string `json:"code"`
		FailedGeneration string `json:"failed_generation"`
	} `json:"error"`
}

// quotaHints are the rate-limit headers from the last 429 seen; they feed the
// terminal QuotaError when retries run out.
type quotaHints struct {
	retryAfter        string
	remainingRequests string
	remainingTokens   string
	resetTokens       string
}

func (c *Client) complete(ctx context.Context, req CompletionRequest, repairDepth int) (string, error) {
	estimate := estimateTokens(req)
	var lastHints *quotaHints
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		res, err := c.ledger.Reserve(ctx, estimate, req.Tag)
		if err != nil {
			return "", common.WrapError(err, "quota reservation")
		}

		start := time.Now()
		status, body, headers, err := c.post(ctx, req)
		if err != nil {
			_ = c.ledger.Cancel(res.ID)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = common.NewAppError("UPSTREAM_UNREACHABLE", err.Error(), common.ErrTransient)
			lastHints = nil
			c.logger.Warn("llm.request.failed",
				"tag", req.Tag, "attempt", attempt+1, "error", err.Error())
			if attempt+1 < c.cfg.MaxAttempts {
				if werr := c.backoff(ctx, attempt); werr != nil {
					return "", werr
				}
			}
			continue
		}

		switch {
		case status == http.StatusOK:
			content, prompt, completion, perr := parseChatResponse(body)
			if perr != nil {
				_ = c.ledger.Cancel(res.ID)
				return "", perr
			}
			if prompt == 0 {
				prompt = estimate - int64(req.MaxTokens)
				if prompt < 0 {
					prompt = 0
				}
			}
			_ = c.ledger.Commit(res.ID, prompt, completion)
			c.logger.Info("llm.request.completed",
				"tag", req.Tag, "attempt", attempt+1,
				"prompt_tokens", prompt, "completion_tokens", completion,
				"elapsed_ms", time.Since(start).Milliseconds())
			return content, nil

		case status == http.StatusTooManyRequests:
			_ = c.ledger.Cancel(res.ID)
			hints := &quotaHints{
				retryAfter:        headers.Get("Retry-After"),
				remainingRequests: headers.Get("X-Ratelimit-Remaining-Requests"),
				remainingTokens:   headers.Get("X-Ratelimit-Remaining-Tokens"),
				resetTokens:       headers.Get("X-Ratelimit-Reset-Tokens"),
			}
			lastHints = hints
			lastErr = nil
			c.logger.Warn("llm.request.rate_limited",
				"tag", req.Tag, "attempt", attempt+1,
				"retry_after", hints.retryAfter,
				"remaining_tokens", hints.remainingTokens)
			if attempt+1 < c.cfg.MaxAttempts {
				if werr := c.waitRetryAfter(ctx, hints.retryAfter, attempt); werr != nil {
					return "", werr
				}
			}

		case status == http.StatusBadRequest:
			_ = c.ledger.Cancel(res.ID)
			return c.handleBadRequest(ctx, req, body, repairDepth)

		case isRetryableStatus(status):
			_ = c.ledger.Cancel(res.ID)
			lastErr = common.NewAppError("UPSTREAM_ERROR",
				fmt.Sprintf("completion endpoint returned %d", status), common.ErrTransient)
			lastHints = nil
			c.logger.Warn("llm.request.server_error",
				"tag", req.Tag, "attempt", attempt+1, "status", status)
			if attempt+1 < c.cfg.MaxAttempts {
				if werr := c.backoff(ctx, attempt); werr != nil {
					return "", werr
				}
			}

		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			_ = c.ledger.Cancel(res.ID)
			return "", common.NewAppError("UPSTREAM_AUTH",
				fmt.Sprintf("completion endpoint rejected credentials (%d)", status),
				common.ErrConfiguration)

		default:
			_ = c.ledger.Cancel(res.ID)
			return "", common.NewAppError("UPSTREAM_STATUS",
				fmt.Sprintf("unexpected status %d: %s", status, truncate(string(body), 300)),
				common.ErrTransient)
		}
	}

	if lastHints != nil {
		qe := &common.QuotaError{
			RetryAfter:        lastHints.retryAfter,
			RemainingRequests: lastHints.remainingRequests,
			RemainingTokens:   lastHints.remainingTokens,
			ResetTokens:       lastHints.resetTokens,
			Scope:             common.QuotaScopeWindow,
		}
		if lastHints.remainingTokens == "0" {
			qe.Scope = common.QuotaScopeDaily
		}
		return "", qe
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", common.NewAppError("RETRIES_EXHAUSTED",
		fmt.Sprintf("no successful completion after %d attempts", c.cfg.MaxAttempts),
		common.ErrTransient)
}

// handleBadRequest recovers structured output from a schema rejection. The
// endpoint returns the model's failed text in error.failed_generation; often
// it is valid JSON wrapped in a code fence, and when it is not, one repair
// completion is allowed to fix it.
func (c *Client) handleBadRequest(ctx context.Context, req CompletionRequest, body []byte, repairDepth int) (string, error) {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Code != "json_validate_failed" {
		return "", common.NewAppError("UPSTREAM_BAD_REQUEST",
			truncate(string(body), 300), common.ErrMalformedOutput)
	}

	failed := textparse.StripCodeFence(apiErr.Error.FailedGeneration)
	if failed != "" && json.Valid([]byte(failed)) {
		c.logger.Info("llm.repair.recovered_from_body", "tag", req.Tag)
		return failed, nil
	}
	if repairDepth >= maxRepairDepth || failed == "" {
		return "", common.NewAppError("JSON_VALIDATE_FAILED",
			"model output failed JSON validation and could not be repaired",
			common.ErrMalformedOutput)
	}

	c.logger.Info("llm.repair.requested", "tag", req.Tag)
	repairReq := CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You repair malformed JSON. Return ONLY the corrected JSON document. " +
				"Do not add, remove or rename any fields; fix syntax only."},
			{Role: "user", Content: failed},
		},
		Temperature: 0,
		MaxTokens:   req.MaxTokens,
		Tag:         req.Tag + ".repair",
	}
	return c.complete(ctx, repairReq, repairDepth+1)
}

// post sends one HTTP attempt under the configured per-attempt timeout.
func (c *Client) post(ctx context.Context, req CompletionRequest) (int, []byte, http.Header, error) {
	payload := chatRequestBody{
		Model:          c.cfg.Model,
		Messages:       req.Messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("encode request: %w", err)
	}

	attemptCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, resp.Header, nil
}

func parseChatResponse(body []byte) (content string, prompt, completion int64, err error) {
	var parsed chatResponseBody
	if uerr := json.Unmarshal(body, &parsed); uerr != nil {
		return "", 0, 0, common.NewAppError("RESPONSE_DECODE",
			"completion endpoint returned unparseable body", common.ErrMalformedOutput)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, 0, common.NewAppError("EMPTY_CHOICES",
			"completion endpoint returned no choices", common.ErrMalformedOutput)
	}
	return parsed.Choices[0].Message.Content, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, nil
}

// estimateTokens sizes the reservation before the server reports actual
// usage: a 4-bytes-per-token approximation of the prompt plus the full
// completion budget.
func estimateTokens(req CompletionRequest) int64 {
	encoded, err := json.Marshal(req.Messages)
	if err != nil {
		return int64(req.MaxTokens)
	}
	return int64(len(encoded)/4 + req.MaxTokens)
}

// backoff sleeps 1s, 2s, 4s, 8s across attempts, honoring cancellation.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	return sleepCtx(ctx, time.Duration(1<<attempt)*time.Second)
}

// waitRetryAfter honors a numeric Retry-After hint, capped at one minute;
// without a usable hint it falls back to exponential backoff.
func (c *Client) waitRetryAfter(ctx context.Context, retryAfter string, attempt int) error {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		wait := time.Duration(secs) * time.Second
		if wait > maxRetryAfterWait {
			wait = maxRetryAfterWait
		}
		return sleepCtx(ctx, wait)
	}
	return c.backoff(ctx, attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
