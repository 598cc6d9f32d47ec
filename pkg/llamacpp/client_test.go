package llamacpp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestSimpleQuery(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": `{"objects":[]}`}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", WithJSONReplies(), WithSampling(0, 256))
	require.NoError(t, err)

	reply, err := c.SimpleQuery(context.Background(), "qwen2.5-vl", "list objects", base64.StdEncoding.EncodeToString(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, `{"objects":[]}`, reply)

	assert.Equal(t, "qwen2.5-vl", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)

	require.Len(t, got.Messages, 1)
	var parts []contentPart
	require.NoError(t, json.Unmarshal(got.Messages[0].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "list objects", parts[0].Text)
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/png;base64,")
}

func TestSimpleQueryContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": []map[string]any{{"type": "text", "text": "a cat"}}}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	reply, err := c.SimpleQuery(context.Background(), "m", "p", "")
	require.NoError(t, err)
	assert.Equal(t, "a cat", reply)
}

func TestSimpleQueryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = c.SimpleQuery(context.Background(), "m", "p", "")
	assert.ErrorContains(t, err, "503")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer empty.Close()
	c, err = NewClient(empty.URL)
	require.NoError(t, err)
	_, err = c.SimpleQuery(context.Background(), "m", "p", "")
	assert.ErrorIs(t, err, errNoText)

	_, err = NewClient("localhost:8080")
	assert.Error(t, err)

	c, err = NewClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, c.baseURL)
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,!!", dataURL("!!"))
	png := base64.StdEncoding.EncodeToString(pngHeader)
	assert.Equal(t, "data:image/png;base64,"+png, dataURL(png))
}
