package msteams

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTokenEndpoint = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	tokenScope           = "https://api.botframework.com/.default"

	// tokens are refreshed this long before their reported expiry so an
	// in-flight request never carries a token about to lapse.
	tokenRefreshMargin = 5 * time.Minute
)

// tokenSource fetches and caches the bot's client-credentials token.
type tokenSource struct {
	appID     string
	appSecret string
	endpoint  string
	client    *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(appID, appSecret, endpoint string, client *http.Client) *tokenSource {
	if endpoint == "" {
		endpoint = defaultTokenEndpoint
	}
	return &tokenSource{appID: appID, appSecret: appSecret, endpoint: endpoint, client: client}
}

func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && time.Now().Before(ts.expires) {
		return ts.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.appID},
		"client_secret": {ts.appSecret},
		"scope":         {tokenScope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response: empty access_token")
	}

	ts.token = tr.AccessToken
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl > tokenRefreshMargin {
		ttl -= tokenRefreshMargin
	}
	ts.expires = time.Now().Add(ttl)
	return ts.token, nil
}

// invalidate drops the cached token after an auth failure.
func (ts *tokenSource) invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expires = time.Time{}
	ts.mu.Unlock()
}
