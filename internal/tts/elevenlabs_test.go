package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

func TestClientSynthesize(t *testing.T) {
	var gotPath, gotFormat, gotKey string
	var gotReq synthesisRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		fmt.Fprint(w, "mp3-bytes")
	}))
	defer srv.Close()

	c := NewClient("secret-key", logger.New(logger.LevelOff, nil),
		WithBaseURL(srv.URL), WithVoice("test-voice"))

	audio, err := c.Synthesize(context.Background(), "brake earlier into turn three")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q, want mp3-bytes", audio)
	}
	if gotPath != "/text-to-speech/test-voice" {
		t.Errorf("path = %q", gotPath)
	}
	if gotFormat != DefaultOutputFormat {
		t.Errorf("output_format = %q, want %q", gotFormat, DefaultOutputFormat)
	}
	if gotKey != "secret-key" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if gotReq.Text != "brake earlier into turn three" || gotReq.ModelID != DefaultModel {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestClientRetriesTransientErrors(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError} {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					http.Error(w, "try again", status)
					return
				}
				fmt.Fprint(w, "mp3-bytes")
			}))
			defer srv.Close()

			c := NewClient("k", logger.New(logger.LevelOff, nil), WithBaseURL(srv.URL))
			audio, err := c.Synthesize(context.Background(), "lift for the crest")
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if string(audio) != "mp3-bytes" {
				t.Errorf("audio = %q", audio)
			}
			if calls.Load() != 2 {
				t.Errorf("server saw %d calls, want 2", calls.Load())
			}
		})
	}
}

func TestClientAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", logger.New(logger.LevelOff, nil), WithBaseURL(srv.URL))
	_, err := c.Synthesize(context.Background(), "turn in later")
	if err == nil {
		t.Fatal("expected error for auth failure")
	}
	if !errors.Is(err, domain.ErrExternalService) {
		t.Errorf("error %v does not wrap ErrExternalService", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry)", calls.Load())
	}
}
