// Package auth provides BrickFi API authentication using HMAC-SHA256 signatures.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Credentials holds the API key and signing secret for request authentication.
type Credentials struct {
	KeyID  string // API key ID from the BrickFi dashboard
	Secret []byte // HMAC signing secret
}

// NewCredentials builds credentials from a key ID and its signing secret.
func NewCredentials(keyID, secret string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("API key ID is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("API secret is required")
	}

	return &Credentials{
		KeyID:  keyID,
		Secret: []byte(secret),
	}, nil
}

// SignRequest generates authentication headers for a BrickFi API request.
// For WebSocket connections, method should be "GET" and path should be "/ws".
func (c *Credentials) SignRequest(method, path string) map[string]string {
	timestampMs := time.Now().UnixMilli()
	signature := c.generateSignature(timestampMs, method, path)

	return map[string]string{
		"BRICKFI-ACCESS-KEY":       c.KeyID,
		"BRICKFI-ACCESS-TIMESTAMP": fmt.Sprintf("%d", timestampMs),
		"BRICKFI-ACCESS-SIGNATURE": signature,
	}
}

// generateSignature creates an HMAC-SHA256 signature for the given request.
// Message format: timestamp_ms + method + path
func (c *Credentials) generateSignature(timestampMs int64, method, path string) string {
	message := fmt.Sprintf("%d%s%s", timestampMs, method, path)

	mac := hmac.New(sha256.New, c.Secret)
	mac.Write([]byte(message))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// WebSocketPath is the path used for WebSocket signature generation.
const WebSocketPath = "/ws"

// SignWebSocket generates authentication headers specifically for WebSocket connections.
func (c *Credentials) SignWebSocket() map[string]string {
	return c.SignRequest("GET", WebSocketPath)
}

// Header returns the signing headers for a request as an http.Header,
// ready to pass to a WebSocket dialer or attach to an outgoing request.
func (c *Credentials) Header(method, path string) http.Header {
	h := http.Header{}
	for k, v := range c.SignRequest(method, path) {
		h.Set(k, v)
	}
	return h
}
