package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWhisper(t *testing.T, text string) (*Whisper, *string) {
	t.Helper()

	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))
		gotLanguage = r.FormValue("language")
		json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewWithConfig(cfg, "he"), &gotLanguage
}

func audioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake audio"), 0o644))
	return path
}

func TestTranscribePinsLanguage(t *testing.T) {
	w, gotLanguage := newTestWhisper(t, "  שלום עולם  ")

	text, err := w.Transcribe(context.Background(), audioFixture(t))
	require.NoError(t, err)

	assert.Equal(t, "שלום עולם", text, "result is trimmed")
	assert.Equal(t, "he", *gotLanguage)
}

func TestTranscribeEmptyResult(t *testing.T) {
	w, _ := newTestWhisper(t, "   ")

	_, err := w.Transcribe(context.Background(), audioFixture(t))
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestTranscribeMissingFile(t *testing.T) {
	w, _ := newTestWhisper(t, "irrelevant")

	_, err := w.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}
