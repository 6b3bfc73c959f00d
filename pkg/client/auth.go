package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/digitalhub/dhsdk/pkg/config"
)

// DiscoveryPath is appended to the issuer to find the token endpoint.
const DiscoveryPath = "/.well-known/openid-configuration"

func (c *RemoteClient) canRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.AuthMode() == config.AuthOAuth2 && c.cfg.CanRefresh()
}

// refreshToken exchanges the refresh token for new credentials and stores
// them in memory and in the token cache.
func (c *RemoteClient) refreshToken(ctx context.Context) (err error) {
	defer func() { c.tel.Metrics.RecordTokenRefresh(err == nil) }()

	c.mu.Lock()
	issuer := strings.TrimRight(c.cfg.Issuer, "/")
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"refresh_token": {c.cfg.RefreshToken},
	}
	c.mu.Unlock()

	tokenURL, err := c.discoverTokenEndpoint(ctx, issuer)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tokens config.Tokens
	if err := c.fetchJSON(req, &tokens); err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("token response carries no access_token")
	}

	c.mu.Lock()
	c.cfg.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		c.cfg.RefreshToken = tokens.RefreshToken
	} else {
		tokens.RefreshToken = c.cfg.RefreshToken
	}
	c.mu.Unlock()

	tokens.Endpoint = c.endpoint
	if err := c.cache.Save(&tokens); err != nil {
		c.log.WithError(err).Warn("failed to persist refreshed tokens")
	}
	c.log.Debug("access token refreshed")
	return nil
}

func (c *RemoteClient) discoverTokenEndpoint(ctx context.Context, issuer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+DiscoveryPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var doc struct {
		TokenEndpoint string `json:"token_endpoint"`
	}
	if err := c.fetchJSON(req, &doc); err != nil {
		return "", fmt.Errorf("issuer discovery failed: %w", err)
	}
	if doc.TokenEndpoint == "" {
		return "", fmt.Errorf("issuer %s does not advertise a token_endpoint", issuer)
	}
	return doc.TokenEndpoint, nil
}

func (c *RemoteClient) fetchJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}
