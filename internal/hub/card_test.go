package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelPage = `<!doctype html>
<html><head>
<title>org/llama-a · Hugging Face</title>
<meta property="og:title" content="org/llama-a · Hugging Face">
<meta property="og:description" content="A tiny llama quantized to GGUF.">
<meta property="og:image" content="https://cdn.example/llama-a.png">
</head><body>
<a href="/models?pipeline_tag=text-generation">Text Generation</a>
<a href="/models?library=gguf">GGUF</a>
<a href="/models?other=llama">
   llama
</a>
<a href="/models?library=gguf">GGUF</a>
<a href="/datasets">Datasets</a>
</body></html>`

func TestCard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/org/llama-a" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(modelPage))
	}))
	defer srv.Close()

	card, err := newTestClient(srv.URL).Card(context.Background(), "org/llama-a")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/org/llama-a", card.URL)
	assert.Equal(t, "org/llama-a · Hugging Face", card.Title)
	assert.Equal(t, "A tiny llama quantized to GGUF.", card.Description)
	assert.Equal(t, "https://cdn.example/llama-a.png", card.Image)
	assert.Equal(t, []string{"Text Generation", "GGUF", "llama"}, card.Tags)
}

func TestCardFallsBackToTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title> Plain title </title><meta name="description" content="desc"></head></html>`))
	}))
	defer srv.Close()

	card, err := newTestClient(srv.URL).Card(context.Background(), "org/m")
	require.NoError(t, err)
	assert.Equal(t, "Plain title", card.Title)
	assert.Equal(t, "desc", card.Description)
	assert.Empty(t, card.Tags)
}

func TestCardNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(srv.URL).Card(context.Background(), "org/missing")
	assert.True(t, errors.Is(err, ErrDownload))
}
