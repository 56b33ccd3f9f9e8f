package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "+15551234567",
		"  +15551234567 ":   "+15551234567",
		"555.123.4567":      "5551234567",
		"+44 20 7946 0958":  "+442079460958",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestHTTPProviderCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/check", r.URL.Path)
		assert.Equal(t, "tok-1", r.URL.Query().Get("token"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"phone": "+1 (555) 000-1111"}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(server.URL, "secret", time.Second)
	require.NoError(t, err)

	phone, err := provider.Check(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", phone, "provider responses are normalized")
}

func TestHTTPProviderCheckFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("token") {
		case "expired":
			w.WriteHeader(http.StatusNotFound)
		case "empty":
			w.Write([]byte(`{}`))
		default:
			w.Write([]byte(`not json`))
		}
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(server.URL, "", 0)
	require.NoError(t, err)

	_, err = provider.Check(context.Background(), "expired")
	assert.Error(t, err)
	_, err = provider.Check(context.Background(), "empty")
	assert.Error(t, err)
	_, err = provider.Check(context.Background(), "garbled")
	assert.Error(t, err)
	_, err = provider.Check(context.Background(), "")
	assert.Error(t, err, "empty token never reaches the provider")
}

func TestNewHTTPProviderRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPProvider("", "key", time.Second)
	assert.Error(t, err)
}
