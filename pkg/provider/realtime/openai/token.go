package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/topology-ai/topology/pkg/provider/realtime"
)

// minTokenLen is the shortest plausible ephemeral token. Anything shorter is
// rejected before it reaches the transport.
const minTokenLen = 20

// tokenPrefix is the fixed prefix of OpenAI ephemeral session tokens.
const tokenPrefix = "ek_"

// sessionRequest is the body of the ephemeral session creation call.
type sessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice,omitempty"`
}

// sessionResponse is the subset of the session creation response we consume.
type sessionResponse struct {
	ClientSecret struct {
		Value string `json:"value"`
	} `json:"client_secret"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// exchangeToken trades the long-lived API key for a short-lived session token
// by POSTing to the realtime sessions endpoint. Remote error messages are
// propagated verbatim.
func exchangeToken(ctx context.Context, client *http.Client, baseURL, apiKey, model, voice string) (string, error) {
	body, err := json.Marshal(sessionRequest{Model: model, Voice: voice})
	if err != nil {
		return "", fmt.Errorf("openai: marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/v1/realtime/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", realtime.ErrRemoteRequest, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read session response: %v", realtime.ErrRemoteRequest, err)
	}

	var parsed sessionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("%w: decode session response: %v", realtime.ErrRemoteRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: %s", realtime.ErrCredentialInvalid, msg)
		}
		return "", fmt.Errorf("%w: %s", realtime.ErrRemoteRequest, msg)
	}

	token := parsed.ClientSecret.Value
	if err := validateToken(token); err != nil {
		return "", err
	}
	return token, nil
}

// validateToken checks the shape of an ephemeral session token.
func validateToken(token string) error {
	if !strings.HasPrefix(token, tokenPrefix) || len(token) < minTokenLen {
		return fmt.Errorf("%w: malformed ephemeral token", realtime.ErrCredentialInvalid)
	}
	return nil
}
