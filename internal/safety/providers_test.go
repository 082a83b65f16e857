package safety

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortly/internal/entities"
)

func TestSafeBrowsingChecker_Check(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "secret", r.URL.Query().Get("key"))

			var body findRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://bad.example", body.ThreatInfo.ThreatEntries[0].URL)
			assert.ElementsMatch(t, entities.ThreatTypes, body.ThreatInfo.ThreatTypes)

			io.WriteString(w, `{"matches":[{"threatType":"MALWARE"}]}`)
		}))
		defer srv.Close()

		c := NewSafeBrowsingChecker("secret", 0, WithSafeBrowsingEndpoint(srv.URL))

		threat, err := c.Check(context.Background(), "https://bad.example")

		require.NoError(t, err)
		require.NotNil(t, threat)
		assert.Equal(t, entities.ThreatMalware, *threat)
	})

	t.Run("no match", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{}`)
		}))
		defer srv.Close()

		c := NewSafeBrowsingChecker("secret", 0, WithSafeBrowsingEndpoint(srv.URL))

		threat, err := c.Check(context.Background(), "https://example.com")

		require.NoError(t, err)
		assert.Nil(t, threat)
	})

	t.Run("unknown threat type", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"matches":[{"threatType":"SOMETHING_NEW"}]}`)
		}))
		defer srv.Close()

		c := NewSafeBrowsingChecker("secret", 0, WithSafeBrowsingEndpoint(srv.URL))

		threat, err := c.Check(context.Background(), "https://example.com")

		require.NoError(t, err)
		assert.Equal(t, entities.ThreatTypeUnspecified, *threat)
	})

	t.Run("provider error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewSafeBrowsingChecker("secret", 0, WithSafeBrowsingEndpoint(srv.URL))

		threat, err := c.Check(context.Background(), "https://example.com")

		assert.Error(t, err)
		assert.Nil(t, threat)
	})
}

func TestChatClassifier_Classify(t *testing.T) {
	t.Run("parses model answer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

			var body chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "test-model", body.Model)
			require.Len(t, body.Messages, 2)
			assert.Contains(t, body.Messages[1].Content, "MALWARE")

			json.NewEncoder(w).Encode(chatResponse{Choices: []struct {
				Message chatMessage `json:"message"`
			}{
				{Message: chatMessage{Role: "assistant", Content: `{"isSafe":false,"flagged":true,"reason":"known malware host","category":"malicious","confidence":5.0}`}},
			}})
		}))
		defer srv.Close()

		c := NewChatClassifier("key", srv.URL, "test-model")

		got, err := c.Classify(context.Background(), "https://bad.example", threatPtr(entities.ThreatMalware))

		require.NoError(t, err)
		assert.True(t, got.Flagged)
		assert.Equal(t, entities.CategoryMalicious, got.Category)
		assert.Equal(t, 1.0, got.Confidence)
		assert.Equal(t, "known malware host", *got.Reason)
	})

	t.Run("malformed answer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"I cannot help with that."}}]}`)
		}))
		defer srv.Close()

		c := NewChatClassifier("key", srv.URL, "")

		_, err := c.Classify(context.Background(), "https://example.com", nil)

		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"choices":[]}`)
		}))
		defer srv.Close()

		c := NewChatClassifier("key", srv.URL, "")

		_, err := c.Classify(context.Background(), "https://example.com", nil)

		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}
