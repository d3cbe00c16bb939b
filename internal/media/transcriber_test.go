package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenAITranscriber(t *testing.T) {
	var gotModel, gotLanguage, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "hola"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "m3.ogg")
	if err := os.WriteFile(path, []byte("OggS"), 0600); err != nil {
		t.Fatal(err)
	}

	tr := NewOpenAI("sk-test", srv.URL+"/v1", "", "es")
	text, err := tr.Transcribe(context.Background(), path)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hola" {
		t.Errorf("Transcribe() = %q, want hola", text)
	}
	if gotModel != "whisper-1" || gotLanguage != "es" {
		t.Errorf("request model=%q language=%q, want whisper-1/es", gotModel, gotLanguage)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestOpenAITranscriberError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "m3.ogg")
	_ = os.WriteFile(path, []byte("OggS"), 0600)

	if _, err := NewOpenAI("bad", srv.URL+"/v1", "whisper-1", "es").Transcribe(context.Background(), path); err == nil {
		t.Error("Transcribe() expected error on 401")
	}
}
