package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/AICC2024/video-review/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)
	t.Setenv("OPENAI_MODEL", "gpt-test")
	t.Setenv("OPENAI_MAX_RETRIES", "1")
	c, err := NewClient(logger.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, _ := io.ReadAll(r.Body)
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Errorf("decode body: %v (%s)", err, raw)
	}
	return m
}

const completedBody = `{"id":"resp_1","status":"completed","output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"Tighten the title."}]}],"usage":{"input_tokens":12,"output_tokens":4}}`

func TestGenerateWithImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" || r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}
		body := decodeBody(t, r)
		if body["max_output_tokens"].(float64) != 1000 {
			t.Errorf("max_output_tokens not sent: %v", body["max_output_tokens"])
		}
		input := body["input"].([]any)
		if len(input) != 2 {
			t.Errorf("want system+user input, got %d", len(input))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		user := input[1].(map[string]any)["content"].([]any)
		if len(user) != 2 || user[1].(map[string]any)["image_url"] != "data:image/png;base64,AAAA" {
			t.Errorf("image not attached: %v", user)
		}
		_, _ = io.WriteString(w, completedBody)
	})

	out, err := c.Generate(context.Background(), TextRequest{
		System:          "Review slides.",
		User:            "Page 1",
		Images:          []ImageInput{{ImageURL: "data:image/png;base64,AAAA"}},
		MaxOutputTokens: 1000,
		Style:           "review",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Tighten the title." {
		t.Fatalf("text: %q", out)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, completedBody)
	})
	if _, err := c.GenerateText(context.Background(), "", "hi"); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls: want=2 got=%d", calls.Load())
	}
}

func TestGenerateDropsUnsupportedTemperature(t *testing.T) {
	var withTemp, withoutTemp atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if _, ok := body["temperature"]; ok {
			withTemp.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Unsupported parameter: 'temperature' is not supported with this model."}}`)
			return
		}
		withoutTemp.Add(1)
		_, _ = io.WriteString(w, completedBody)
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.GenerateText(ctx, "sys", "hi"); err != nil {
			t.Fatalf("GenerateText #%d: %v", i, err)
		}
	}
	if withTemp.Load() != 1 || withoutTemp.Load() != 2 {
		t.Fatalf("temperature fallback not learned: with=%d without=%d", withTemp.Load(), withoutTemp.Load())
	}
}

func TestGenerateEmptyOutputIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"resp_2","status":"incomplete","output":[],"incomplete_details":{"reason":"max_output_tokens"}}`)
	})
	_, err := c.GenerateText(context.Background(), "", "hi")
	if err == nil || !strings.Contains(err.Error(), "max_output_tokens") {
		t.Fatalf("expected incomplete reason, got %v", err)
	}
}

func TestConversationFlow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/conversations":
			_, _ = io.WriteString(w, `{"id":"conv_1"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/conversations/conv_1/items":
			body := decodeBody(t, r)
			items := body["items"].([]any)
			if items[0].(map[string]any)["role"] != "user" {
				t.Errorf("item role: %v", items[0])
			}
			_, _ = io.WriteString(w, `{"data":[]}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/responses":
			body := decodeBody(t, r)
			if body["background"] != true || body["conversation"] != "conv_1" {
				t.Errorf("background run body: %v", body)
			}
			_, _ = io.WriteString(w, `{"id":"resp_9","status":"queued","output":[]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/responses/resp_9":
			_, _ = io.WriteString(w, `{"id":"resp_9","status":"failed","output":[],"error":{"code":"server_error","message":"boom"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/conversations/conv_1/items":
			if r.URL.Query().Get("order") != "desc" {
				t.Errorf("items order: %s", r.URL.RawQuery)
			}
			_, _ = io.WriteString(w, `{"data":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"latest"}]},{"type":"message","role":"assistant","content":[{"type":"output_text","text":"older"}]}]}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	convID, err := c.CreateConversation(ctx)
	if err != nil || convID != "conv_1" {
		t.Fatalf("CreateConversation: %q %v", convID, err)
	}
	if err := c.AddUserMessage(ctx, convID, "Page 1", nil); err != nil {
		t.Fatalf("AddUserMessage: %v", err)
	}
	run, err := c.StartResponse(ctx, convID, "Review.", 500)
	if err != nil {
		t.Fatalf("StartResponse: %v", err)
	}
	if run.ID != "resp_9" || run.Terminal() {
		t.Fatalf("run: %+v", run)
	}
	got, err := c.GetResponse(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if got.Status != StatusFailed || !got.Terminal() || got.Reason != "boom" {
		t.Fatalf("polled: %+v", got)
	}
	text, err := c.LatestAssistantText(ctx, convID)
	if err != nil || text != "latest" {
		t.Fatalf("LatestAssistantText: %q %v", text, err)
	}
}

func TestMetricEndpoint(t *testing.T) {
	cases := map[string]string{
		"/v1/responses":                       "/v1/responses",
		"/v1/responses/resp_1":                "/v1/responses/:id",
		"/v1/conversations/c1/items?limit=20": "/v1/conversations/:id/items",
	}
	for in, want := range cases {
		if got := metricEndpoint(in); got != want {
			t.Errorf("metricEndpoint(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNoTempRules(t *testing.T) {
	models, prefixes := parseNoTempModelRules("o1-*, GPT-5 ,")
	if !models["gpt-5"] || len(prefixes) != 1 || prefixes[0] != "o1" {
		t.Fatalf("rules: %v %v", models, prefixes)
	}
}
