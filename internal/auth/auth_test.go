package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"testing"
)

func TestNewCredentials(t *testing.T) {
	creds, err := NewCredentials("test-key-id", "topsecret")
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	if creds.KeyID != "test-key-id" {
		t.Errorf("KeyID = %q, want %q", creds.KeyID, "test-key-id")
	}
	if string(creds.Secret) != "topsecret" {
		t.Errorf("Secret = %q, want %q", creds.Secret, "topsecret")
	}
}

func TestNewCredentials_MissingFields(t *testing.T) {
	if _, err := NewCredentials("", "secret"); err == nil {
		t.Error("expected error for empty key ID, got nil")
	}
	if _, err := NewCredentials("key", ""); err == nil {
		t.Error("expected error for empty secret, got nil")
	}
}

func TestCredentials_SignRequest(t *testing.T) {
	creds := &Credentials{
		KeyID:  "test-key-id",
		Secret: []byte("topsecret"),
	}

	headers := creds.SignRequest("GET", "/v1/pools")

	if headers["BRICKFI-ACCESS-KEY"] != "test-key-id" {
		t.Errorf("BRICKFI-ACCESS-KEY = %q, want %q", headers["BRICKFI-ACCESS-KEY"], "test-key-id")
	}
	if headers["BRICKFI-ACCESS-TIMESTAMP"] == "" {
		t.Error("BRICKFI-ACCESS-TIMESTAMP is empty")
	}
	if headers["BRICKFI-ACCESS-SIGNATURE"] == "" {
		t.Error("BRICKFI-ACCESS-SIGNATURE is empty")
	}

	if _, err := strconv.ParseInt(headers["BRICKFI-ACCESS-TIMESTAMP"], 10, 64); err != nil {
		t.Fatalf("parse timestamp: %v", err)
	}

	// Recompute the signature with the same timestamp and verify it matches
	mac := hmac.New(sha256.New, creds.Secret)
	mac.Write([]byte(headers["BRICKFI-ACCESS-TIMESTAMP"] + "GET" + "/v1/pools"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if headers["BRICKFI-ACCESS-SIGNATURE"] != want {
		t.Errorf("BRICKFI-ACCESS-SIGNATURE = %q, want %q", headers["BRICKFI-ACCESS-SIGNATURE"], want)
	}
}

func TestCredentials_SignWebSocket(t *testing.T) {
	creds := &Credentials{
		KeyID:  "ws-key",
		Secret: []byte("ws-secret"),
	}

	headers := creds.SignWebSocket()

	if headers["BRICKFI-ACCESS-KEY"] != "ws-key" {
		t.Errorf("BRICKFI-ACCESS-KEY = %q, want %q", headers["BRICKFI-ACCESS-KEY"], "ws-key")
	}
	if headers["BRICKFI-ACCESS-TIMESTAMP"] == "" {
		t.Error("BRICKFI-ACCESS-TIMESTAMP is empty")
	}
	if headers["BRICKFI-ACCESS-SIGNATURE"] == "" {
		t.Error("BRICKFI-ACCESS-SIGNATURE is empty")
	}
}

func TestCredentials_Header(t *testing.T) {
	creds := &Credentials{
		KeyID:  "hdr-key",
		Secret: []byte("hdr-secret"),
	}

	h := creds.Header("GET", WebSocketPath)

	if got := h.Get("BRICKFI-ACCESS-KEY"); got != "hdr-key" {
		t.Errorf("BRICKFI-ACCESS-KEY = %q, want %q", got, "hdr-key")
	}
	if h.Get("BRICKFI-ACCESS-TIMESTAMP") == "" {
		t.Error("BRICKFI-ACCESS-TIMESTAMP is empty")
	}
	if h.Get("BRICKFI-ACCESS-SIGNATURE") == "" {
		t.Error("BRICKFI-ACCESS-SIGNATURE is empty")
	}
}

func TestGenerateSignature_Deterministic(t *testing.T) {
	creds := &Credentials{
		KeyID:  "det-key",
		Secret: []byte("det-secret"),
	}

	sig1 := creds.generateSignature(1700000000000, "GET", "/v1/pools")
	sig2 := creds.generateSignature(1700000000000, "GET", "/v1/pools")
	if sig1 != sig2 {
		t.Errorf("signatures differ for identical input: %q vs %q", sig1, sig2)
	}

	sig3 := creds.generateSignature(1700000000001, "GET", "/v1/pools")
	if sig1 == sig3 {
		t.Error("signatures identical for different timestamps")
	}
}
