package fog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-fog-pipeline/internal/data"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.StandardClaims{
		ExpiresAt: expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte("server-side-secret"))
	require.NoError(t, err)
	return signed
}

func TestCloudClientLogin(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	token := signedToken(t, expiry)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/login", r.URL.Path)
		username, password, ok := r.BasicAuth()
		if !ok || username != "fog_node" || password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer server.Close()

	t.Run("valid credentials", func(t *testing.T) {
		client := NewCloudClient(server.URL, "fog_node", "secret", 10*time.Second, zerolog.Nop())

		gotToken, gotExpiry, err := client.Login()
		require.NoError(t, err)
		assert.Equal(t, token, gotToken)
		assert.Equal(t, expiry.Unix(), gotExpiry.Unix(), "expiry read from token claims")
	})

	t.Run("rejected credentials", func(t *testing.T) {
		client := NewCloudClient(server.URL, "fog_node", "wrong", 10*time.Second, zerolog.Nop())

		_, _, err := client.Login()
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestCloudClientForward(t *testing.T) {
	record := data.AggregatedRecord{AvgTemperature: 25, SamplesCount: 3, Region: "south_zone"}

	t.Run("success", func(t *testing.T) {
		var gotAuth string
		var gotBody data.AggregatedRecord
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]string{"status": "success"})
		}))
		defer server.Close()

		client := NewCloudClient(server.URL, "fog_node", "secret", 10*time.Second, zerolog.Nop())
		require.NoError(t, client.Forward("tok", record))
		assert.Equal(t, "Bearer tok", gotAuth)
		assert.Equal(t, record.AvgTemperature, gotBody.AvgTemperature)
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewCloudClient(server.URL, "fog_node", "secret", 10*time.Second, zerolog.Nop())
		assert.ErrorIs(t, client.Forward("tok", record), ErrUnauthorized)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewCloudClient(server.URL, "fog_node", "secret", 10*time.Second, zerolog.Nop())
		assert.ErrorIs(t, client.Forward("tok", record), ErrForwardFailed)
	})

	t.Run("network error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // connection refused from here on

		client := NewCloudClient(server.URL, "fog_node", "secret", time.Second, zerolog.Nop())
		assert.ErrorIs(t, client.Forward("tok", record), ErrForwardFailed)
	})
}
