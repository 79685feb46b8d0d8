package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultTimeout = 3 * time.Second
)

// UserInfo is the auth provider's view of an authenticated principal.
type UserInfo struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Client talks to the external auth provider. Userinfo responses are cached
// per token for a short window to keep session checks off the provider's
// hot path.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	baseURL   string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(1*time.Minute, 5*time.Minute),
		userAgent: "dwell/1.0",
		baseURL:   baseURL,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// GetUserInfo resolves the identity behind an access token via the
// provider's userinfo endpoint.
func (c *Client) GetUserInfo(ctx context.Context, token string) (UserInfo, error) {

	cacheKey := "userinfo:" + token
	x, found := c.cache.Get(cacheKey)
	if found {
		return x.(UserInfo), nil
	}

	url := c.baseURL + "/api/v1/userinfo"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return UserInfo{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return UserInfo{}, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return UserInfo{}, fmt.Errorf("token rejected by auth provider")
	}
	if resp.StatusCode != http.StatusOK {
		return UserInfo{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info UserInfo
	err = json.NewDecoder(resp.Body).Decode(&info)
	if err != nil {
		return UserInfo{}, fmt.Errorf("failed to decode userinfo: %v", err)
	}

	c.cache.Set(cacheKey, info, cache.DefaultExpiration)

	return info, nil
}
