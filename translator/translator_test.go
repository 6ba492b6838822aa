package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-shops/config"
	"github.com/jarcoal/httpmock"
)

const endpoint = "http://llm.test/v1/chat/completions"

func testConfig() config.TranslatorConfig {
	cfg := config.DefaultConfig().Translator
	cfg.APIURL = endpoint
	cfg.APIKey = "secret"
	cfg.Model = "test-model"
	return cfg
}

// echoResponder answers with the user message upper-cased.
func echoResponder(t *testing.T) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization=%q", got)
		}
		var body chatRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
		}
		if body.Model != "test-model" || len(body.Messages) != 2 {
			t.Errorf("unexpected request: %+v", body)
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": " " + strings.ToUpper(body.Messages[1].Content) + "\n"}},
			},
		})
	}
}

func TestClientTranslate(t *testing.T) {
	client := NewClient(testConfig())
	httpmock.ActivateNonDefault(client.HTTPClient)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", endpoint, echoResponder(t))

	got, err := client.Translate(context.Background(), "kopfhörer")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "KOPFHÖRER" {
		t.Fatalf("got %q", got)
	}

	if got, err := client.Translate(context.Background(), "   "); err != nil || got != "   " {
		t.Fatalf("blank text should pass through, got %q, %v", got, err)
	}
	if calls := httpmock.GetTotalCallCount(); calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
	if !strings.Contains(client.Prompt, "from de to en") {
		t.Fatalf("prompt=%q", client.Prompt)
	}
}

func TestClientTranslateFailures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantErr   string
	}{
		{
			name:      "status",
			responder: httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"),
			wantErr:   "slow down",
		},
		{
			name:      "no choices",
			responder: httpmock.NewStringResponder(http.StatusOK, `{"choices":[]}`),
			wantErr:   ErrEmptyResponse.Error(),
		},
		{
			name:      "garbage",
			responder: httpmock.NewStringResponder(http.StatusOK, `<html>`),
			wantErr:   "decode translation response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(testConfig())
			httpmock.ActivateNonDefault(client.HTTPClient)
			defer httpmock.DeactivateAndReset()
			httpmock.RegisterResponder("POST", endpoint, tt.responder)

			_, err := client.Translate(context.Background(), "Lautsprecher")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err=%v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

type recordingTranslator struct {
	calls []string
	err   error
}

func (r *recordingTranslator) Translate(_ context.Context, text string) (string, error) {
	r.calls = append(r.calls, text)
	if r.err != nil {
		return "", r.err
	}
	return "<" + text + ">", nil
}

func TestChunkedSplitsOnRuneBoundaries(t *testing.T) {
	next := &recordingTranslator{}
	chunked := NewChunked(next, 4)

	got, err := chunked.Translate(context.Background(), "ääääöööüü")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(next.calls) != 3 {
		t.Fatalf("calls=%v, want 3 chunks", next.calls)
	}
	for _, call := range next.calls {
		if utf8.RuneCountInString(call) > 4 || !utf8.ValidString(call) {
			t.Fatalf("bad chunk %q", call)
		}
	}
	if got != "<ääää> <öööü> <ü>" {
		t.Fatalf("got %q", got)
	}

	next.calls = nil
	if _, err := chunked.Translate(context.Background(), "abcd"); err != nil || len(next.calls) != 1 {
		t.Fatalf("text at the limit should go in one call: %v %v", next.calls, err)
	}
}

func TestChunkedPropagatesErrors(t *testing.T) {
	next := &recordingTranslator{err: errors.New("boom")}
	if _, err := NewChunked(next, 2).Translate(context.Background(), "abcdef"); err == nil {
		t.Fatalf("expected error")
	}
	if len(next.calls) != 1 {
		t.Fatalf("should stop at the first failing chunk, calls=%v", next.calls)
	}
}

func TestCached(t *testing.T) {
	next := &recordingTranslator{}
	cached, err := NewCached(next, 8)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := cached.Translate(context.Background(), "Fernseher")
		if err != nil || got != "<Fernseher>" {
			t.Fatalf("got %q, %v", got, err)
		}
	}
	if len(next.calls) != 1 {
		t.Fatalf("calls=%d, want 1", len(next.calls))
	}

	next.err = errors.New("down")
	if _, err := cached.Translate(context.Background(), "Garten"); err == nil {
		t.Fatalf("expected error")
	}
	next.err = nil
	if got, err := cached.Translate(context.Background(), "Garten"); err != nil || got != "<Garten>" {
		t.Fatalf("failures must not be cached: %q, %v", got, err)
	}
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig().Translator
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := tr.(Identity); !ok {
		t.Fatalf("unconfigured translator should be Identity, got %T", tr)
	}

	cfg.APIURL = endpoint
	tr, err = New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := tr.(*Cached); !ok {
		t.Fatalf("configured translator should be cached, got %T", tr)
	}
}
