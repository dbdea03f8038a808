package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AICC2024/video-review/internal/observability"
	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/httpx"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/promptstyle"
)

// ImageInput is an image attached to a request.
type ImageInput struct {
	// https://... or data:image/...;base64,...
	ImageURL string
	Detail   string
}

// TextRequest is a single stateless Responses API call.
type TextRequest struct {
	System          string
	User            string
	Images          []ImageInput
	MaxOutputTokens int
	// Style selects the promptstyle guidance block ("review", "chat", "text").
	Style string
}

// Response lifecycle states reported by the Responses API.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusIncomplete = "incomplete"
)

// Response is the state of a (possibly background) response.
type Response struct {
	ID     string
	Status string
	Text   string
	// Reason carries the service error or incomplete reason.
	Reason string
}

func (r Response) Terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusIncomplete:
		return true
	default:
		return false
	}
}

type Client interface {
	Model() string
	Generate(ctx context.Context, req TextRequest) (string, error)
	GenerateText(ctx context.Context, system string, user string) (string, error)

	CreateConversation(ctx context.Context) (string, error)
	AddUserMessage(ctx context.Context, conversationID string, text string, images []ImageInput) error
	// StartResponse queues a background response over the conversation.
	StartResponse(ctx context.Context, conversationID string, instructions string, maxOutputTokens int) (Response, error)
	GetResponse(ctx context.Context, responseID string) (Response, error)
	LatestAssistantText(ctx context.Context, conversationID string) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int

	temperature *float64

	noTempModels   map[string]bool
	noTempPrefixes []string

	// models that rejected temperature at runtime
	noTempMu   sync.RWMutex
	noTempSeen map[string]time.Time
	noTempTTL  time.Duration
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := envutil.String("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(envutil.String("OPENAI_BASE_URL", "https://api.openai.com"), "/")

	timeoutSec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 180)
	if timeoutSec <= 0 {
		timeoutSec = 180
	}
	maxRetries := envutil.Int("OPENAI_MAX_RETRIES", 4)
	if maxRetries < 0 {
		maxRetries = 0
	}

	noTempModels, noTempPrefixes := parseNoTempModelRules(envutil.String("OPENAI_NO_TEMPERATURE_MODELS", ""))

	return &client{
		log:            log.With("service", "OpenAIClient"),
		baseURL:        baseURL,
		apiKey:         apiKey,
		model:          envutil.String("OPENAI_MODEL", "gpt-4o"),
		httpClient:     &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:     maxRetries,
		temperature:    temperatureFromEnv(),
		noTempModels:   noTempModels,
		noTempPrefixes: noTempPrefixes,
		noTempSeen:     map[string]time.Time{},
		noTempTTL:      envutil.Duration("OPENAI_NO_TEMPERATURE_TTL", 24*time.Hour),
	}, nil
}

// temperatureFromEnv returns nil when temperature is disabled.
func temperatureFromEnv() *float64 {
	if envutil.Bool("OPENAI_DISABLE_TEMPERATURE", false) {
		return nil
	}
	temp := 0.2
	if v := strings.ToLower(envutil.String("OPENAI_TEMPERATURE", "")); v != "" {
		switch v {
		case "off", "none", "nil", "false":
			return nil
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			temp = f
		}
	}
	return &temp
}

func (c *client) Model() string { return c.model }

func normalizeModelKey(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

// parseNoTempModelRules reads a comma list of model ids; a trailing "*" makes a prefix rule.
func parseNoTempModelRules(raw string) (map[string]bool, []string) {
	m := map[string]bool{}
	var prefixes []string
	for _, part := range strings.Split(raw, ",") {
		s := normalizeModelKey(part)
		if s == "" {
			continue
		}
		if strings.HasSuffix(s, "*") {
			p := strings.TrimSpace(strings.TrimRight(strings.TrimSuffix(s, "*"), "-_./:"))
			if p != "" {
				prefixes = append(prefixes, p)
			}
			continue
		}
		m[s] = true
	}
	return m, prefixes
}

func (c *client) modelIsNoTemp(model string) bool {
	m := normalizeModelKey(model)
	if m == "" {
		return false
	}
	if c.noTempModels[m] {
		return true
	}
	for _, p := range c.noTempPrefixes {
		if strings.HasPrefix(m, p) {
			return true
		}
	}
	c.noTempMu.RLock()
	ts, ok := c.noTempSeen[m]
	c.noTempMu.RUnlock()
	if !ok {
		return false
	}
	return c.noTempTTL <= 0 || time.Since(ts) < c.noTempTTL
}

func (c *client) noteNoTempModel(model string) {
	m := normalizeModelKey(model)
	if m == "" {
		return
	}
	c.noTempMu.Lock()
	c.noTempSeen[m] = time.Now().UTC()
	c.noTempMu.Unlock()
}

func (c *client) applyTemperature(req *responsesRequest) {
	if c.temperature == nil || c.modelIsNoTemp(req.Model) {
		return
	}
	req.Temperature = c.temperature
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func isUnsupportedTemperatureParam(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, s := range []string{
		"unsupported parameter", "unknown parameter", "unrecognized parameter",
		"not supported", "does not support", "only the default", "unsupported_value",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
		rdr = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second
	start := time.Now()
	model := extractModelFromRequest(body)
	endpoint := metricEndpoint(path)
	metrics := observability.Current()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			inputTokens, outputTokens := extractUsageFromRaw(raw)
			metrics.ObserveLLMRequest(model, endpoint, statusFromResp(resp), time.Since(start), inputTokens, outputTokens)
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			metrics.ObserveLLMRequest(model, endpoint, statusFromRespErr(resp, err), time.Since(start), 0, 0)
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

// doResponses retries once without temperature if the model rejects it.
func (c *client) doResponses(ctx context.Context, req *responsesRequest, out any) error {
	err := c.do(ctx, http.MethodPost, "/v1/responses", req, out)
	if err == nil || req.Temperature == nil || !isUnsupportedTemperatureParam(err) {
		return err
	}
	c.noteNoTempModel(req.Model)
	req.Temperature = nil
	return c.do(ctx, http.MethodPost, "/v1/responses", req, out)
}

type inputMessage struct {
	Type    string `json:"type,omitempty"`
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model           string         `json:"model"`
	Conversation    string         `json:"conversation,omitempty"`
	Instructions    string         `json:"instructions,omitempty"`
	Input           []inputMessage `json:"input,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Background      bool           `json:"background,omitempty"`
}

type outputItem struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content []struct {
		Type    string `json:"type"`
		Text    string `json:"text,omitempty"`
		Refusal string `json:"refusal,omitempty"`
	} `json:"content,omitempty"`
}

type responsesResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output []outputItem `json:"output"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details,omitempty"`
}

func assistantText(items []outputItem) (string, string) {
	var out strings.Builder
	refusal := ""
	for _, item := range items {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			switch {
			case c.Type == "output_text" && c.Text != "":
				out.WriteString(c.Text)
			case c.Type == "refusal" && c.Refusal != "":
				refusal = c.Refusal
			}
		}
	}
	return out.String(), refusal
}

func (r responsesResponse) toResponse() Response {
	text, refusal := assistantText(r.Output)
	out := Response{ID: r.ID, Status: r.Status, Text: text}
	if out.Status == "" && text != "" {
		out.Status = StatusCompleted
	}
	switch {
	case r.Error != nil && r.Error.Message != "":
		out.Reason = r.Error.Message
	case r.IncompleteDetails != nil && r.IncompleteDetails.Reason != "":
		out.Reason = r.IncompleteDetails.Reason
	case refusal != "":
		out.Reason = "model refused: " + refusal
	}
	return out
}

func userContent(text string, images []ImageInput) any {
	content := []map[string]any{{"type": "input_text", "text": text}}
	for _, img := range images {
		u := strings.TrimSpace(img.ImageURL)
		if u == "" {
			continue
		}
		item := map[string]any{"type": "input_image", "image_url": u}
		if d := strings.TrimSpace(img.Detail); d != "" {
			item["detail"] = d
		}
		content = append(content, item)
	}
	if len(content) == 1 {
		return text
	}
	return content
}

func (c *client) Generate(ctx context.Context, in TextRequest) (string, error) {
	style := in.Style
	if style == "" {
		style = "text"
	}
	req := responsesRequest{
		Model:           c.model,
		MaxOutputTokens: in.MaxOutputTokens,
	}
	if system := promptstyle.ApplySystem(in.System, style); system != "" {
		req.Input = append(req.Input, inputMessage{Role: "system", Content: system})
	}
	req.Input = append(req.Input, inputMessage{Role: "user", Content: userContent(in.User, in.Images)})
	c.applyTemperature(&req)

	var resp responsesResponse
	if err := c.doResponses(ctx, &req, &resp); err != nil {
		return "", err
	}
	out := resp.toResponse()
	if strings.TrimSpace(out.Text) == "" {
		if out.Reason != "" {
			return "", errors.New(out.Reason)
		}
		return "", fmt.Errorf("no output_text found in response")
	}
	return out.Text, nil
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	return c.Generate(ctx, TextRequest{System: system, User: user})
}

// -------------------- Conversations API --------------------

func (c *client) CreateConversation(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/conversations", map[string]any{}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", fmt.Errorf("openai create conversation: missing id")
	}
	return strings.TrimSpace(out.ID), nil
}

func (c *client) AddUserMessage(ctx context.Context, conversationID string, text string, images []ImageInput) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return fmt.Errorf("conversation_id required")
	}
	body := map[string]any{
		"items": []inputMessage{{Type: "message", Role: "user", Content: userContent(text, images)}},
	}
	return c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(conversationID)+"/items", body, nil)
}

func (c *client) StartResponse(ctx context.Context, conversationID string, instructions string, maxOutputTokens int) (Response, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return Response{}, fmt.Errorf("conversation_id required")
	}
	req := responsesRequest{
		Model:           c.model,
		Conversation:    conversationID,
		Instructions:    promptstyle.ApplySystem(instructions, "review"),
		MaxOutputTokens: maxOutputTokens,
		Background:      true,
	}
	c.applyTemperature(&req)

	var resp responsesResponse
	if err := c.doResponses(ctx, &req, &resp); err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return Response{}, fmt.Errorf("openai start response: missing id")
	}
	return resp.toResponse(), nil
}

func (c *client) GetResponse(ctx context.Context, responseID string) (Response, error) {
	responseID = strings.TrimSpace(responseID)
	if responseID == "" {
		return Response{}, fmt.Errorf("response_id required")
	}
	var resp responsesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/responses/"+url.PathEscape(responseID), nil, &resp); err != nil {
		return Response{}, err
	}
	return resp.toResponse(), nil
}

func (c *client) LatestAssistantText(ctx context.Context, conversationID string) (string, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return "", fmt.Errorf("conversation_id required")
	}
	var out struct {
		Data []outputItem `json:"data"`
	}
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/items?order=desc&limit=20"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	// newest first
	for _, item := range out.Data {
		if text, _ := assistantText([]outputItem{item}); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("no assistant reply in conversation %s", conversationID)
}

// metricEndpoint collapses ids out of request paths for metric labels.
func metricEndpoint(path string) string {
	path, _, _ = strings.Cut(path, "?")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := range parts {
		if i >= 2 && parts[i] != "items" {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func extractUsageFromRaw(raw []byte) (int, int) {
	if len(raw) == 0 {
		return 0, 0
	}
	var payload struct {
		Usage map[string]any `json:"usage"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Usage == nil {
		return 0, 0
	}
	usage := payload.Usage
	inTokens := intFromAny(usage["input_tokens"])
	outTokens := intFromAny(usage["output_tokens"])
	if inTokens == 0 && outTokens == 0 {
		inTokens = intFromAny(usage["prompt_tokens"])
		outTokens = intFromAny(usage["completion_tokens"])
	}
	return inTokens, outTokens
}

func intFromAny(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return 0
}

func extractModelFromRequest(body any) string {
	switch v := body.(type) {
	case *responsesRequest:
		if v != nil {
			return strings.TrimSpace(v.Model)
		}
	case map[string]any:
		if m, ok := v["model"].(string); ok {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func statusFromResp(resp *http.Response) string {
	if resp == nil {
		return "unknown"
	}
	return strconv.Itoa(resp.StatusCode)
}

func statusFromRespErr(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	var httpErr *openAIHTTPError
	if errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
