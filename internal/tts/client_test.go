package tts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loom/internal/services"
	"loom/internal/tts"
)

func TestSynthesizePostsVoiceEndpoint(t *testing.T) {
	audio := []byte("ID3fake-mp3-bytes")
	var gotPath, gotKey, gotAccept string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotAccept = r.Header.Get("Accept")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer server.Close()

	client := tts.NewClient("secret", tts.WithBaseURL(server.URL))
	payload, err := client.Synthesize(context.Background(), tts.Request{
		Text:    "Good morning.",
		VoiceID: "voice-a",
		ModelID: "model-a",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(payload, audio) {
		t.Fatalf("payload mismatch: got %d bytes", len(payload))
	}
	if gotPath != "/v1/text-to-speech/voice-a" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("unexpected api key header %q", gotKey)
	}
	if gotAccept != "audio/mpeg" {
		t.Fatalf("unexpected accept header %q", gotAccept)
	}
	if gotBody["text"] != "Good morning." || gotBody["model_id"] != "model-a" {
		t.Fatalf("unexpected request body %v", gotBody)
	}
}

func TestSynthesizeErrorCarriesStatusAndExcerpt(t *testing.T) {
	longBody := strings.Repeat("x", 2000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(longBody))
	}))
	defer server.Close()

	client := tts.NewClient("secret", tts.WithBaseURL(server.URL))
	_, err := client.Synthesize(context.Background(), tts.Request{
		Text:    "hello",
		VoiceID: "voice-a",
		ModelID: "model-a",
	})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	msg := err.Error()
	if !strings.Contains(msg, "429") {
		t.Fatalf("expected status code in error, got %q", msg)
	}
	if len(msg) > 600 {
		t.Fatalf("error body excerpt not bounded, message length %d", len(msg))
	}
}

func TestSynthesizeRejectsEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := tts.NewClient("secret", tts.WithBaseURL(server.URL))
	_, err := client.Synthesize(context.Background(), tts.Request{
		Text:    "hello",
		VoiceID: "voice-a",
		ModelID: "model-a",
	})
	if err == nil || !strings.Contains(err.Error(), "empty audio payload") {
		t.Fatalf("expected empty payload error, got %v", err)
	}
}

func TestSynthesizeRequiresVoiceConfig(t *testing.T) {
	client := tts.NewClient("secret")
	_, err := client.Synthesize(context.Background(), tts.Request{Text: "hello"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
