package fog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog"

	"iot-fog-pipeline/internal/data"
)

var (
	// ErrUnauthorized signals a 401 from the cloud: the held token is
	// stale and must be discarded.
	ErrUnauthorized = errors.New("cloud rejected credentials")
	// ErrForwardFailed covers network errors, timeouts and non-2xx
	// responses other than 401.
	ErrForwardFailed = errors.New("forward to cloud failed")
)

// CloudAPI is what the node needs from the central service. Tests swap
// in a fake; CloudClient is the HTTP implementation.
type CloudAPI interface {
	Login() (token string, expiry time.Time, err error)
	Forward(token string, record data.AggregatedRecord) error
}

// CloudClient talks to the central service over HTTP with a bounded
// request timeout.
type CloudClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      zerolog.Logger
}

func NewCloudClient(baseURL, username, password string, timeout time.Duration, log zerolog.Logger) *CloudClient {
	return &CloudClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "cloud-client").Logger(),
	}
}

// Login exchanges the node's credentials for a token. The expiry is read
// from the token's claims without verifying the signature; the node does
// not hold the server secret, and the server re-verifies on every call.
func (c *CloudClient) Login() (string, time.Time, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/login", nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", time.Time{}, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("decoding login response: %w", err)
	}

	expiry, err := tokenExpiry(body.Token)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("decoding token expiry: %w", err)
	}

	c.log.Info().Time("expires", expiry).Msg("authenticated with cloud")
	return body.Token, expiry, nil
}

func tokenExpiry(tokenString string) (time.Time, error) {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, err
	}
	return time.Unix(claims.ExpiresAt, 0), nil
}

// Forward posts one aggregated record under the given bearer token.
func (c *CloudClient) Forward(token string, record data.AggregatedRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/data", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForwardFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: status %d", ErrForwardFailed, resp.StatusCode)
	}
}
