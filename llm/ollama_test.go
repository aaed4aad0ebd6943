package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docutag/linkaudit/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req models.OllamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		assert.Contains(t, req.Prompt, "privacy")

		json.NewEncoder(w).Encode(models.OllamaResponse{Model: req.Model, Response: "  YES \n", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL+"/", "test-model")
	answer, err := client.Generate(context.Background(), "Is this a privacy policy?")
	require.NoError(t, err)
	assert.Equal(t, "YES", answer)
}

func TestOllamaGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewOllamaClient(server.URL, "missing").Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(models.OllamaTagsResponse{Models: []models.OllamaModel{
			{Name: "llama3.2:latest"},
			{Name: "mistral:7b"},
		}})
	}))
	defer server.Close()

	assert.NoError(t, NewOllamaClient(server.URL, "llama3.2").Available(context.Background()))
	assert.NoError(t, NewOllamaClient(server.URL, "mistral:7b").Available(context.Background()))
	assert.Error(t, NewOllamaClient(server.URL, "phi3").Available(context.Background()))
}

func TestOllamaDefaults(t *testing.T) {
	c := NewOllamaClient("", "")
	assert.Equal(t, DefaultOllamaURL, c.baseURL)
	assert.Equal(t, DefaultOllamaModel, c.Model())
}
