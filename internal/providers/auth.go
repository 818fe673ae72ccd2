package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthType selects how requests to a provider are authenticated.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthHeader AuthType = "header"
	AuthOAuth2 AuthType = "oauth2"
)

// Auth holds the credentials for one provider.
type Auth struct {
	Type AuthType

	// header
	HeaderName  string
	HeaderValue string

	// oauth2 client credentials
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Validate checks that the fields required by Type are present.
func (a Auth) Validate() error {
	switch a.Type {
	case "", AuthNone:
		return nil
	case AuthHeader:
		if a.HeaderName == "" || a.HeaderValue == "" {
			return fmt.Errorf("header auth requires header_name and header_value")
		}
	case AuthOAuth2:
		if a.TokenURL == "" || a.ClientID == "" || a.ClientSecret == "" {
			return fmt.Errorf("oauth2 auth requires token_url, client_id and client_secret")
		}
	default:
		return fmt.Errorf("unknown auth type %q", a.Type)
	}
	return nil
}

// NewHTTPClient creates the client a fetcher uses. Static headers (the
// User-Agent and header auth) are set on every request; oauth2 tokens are
// fetched and refreshed by the client-credentials token source bound to ctx.
func NewHTTPClient(ctx context.Context, auth Auth, timeout time.Duration, userAgent string) (*http.Client, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	headers := http.Header{}
	if userAgent != "" {
		headers.Set("User-Agent", userAgent)
	}
	if auth.Type == AuthHeader {
		headers.Set(auth.HeaderName, auth.HeaderValue)
	}

	base := &http.Client{
		Timeout:   timeout,
		Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
	}

	if auth.Type != AuthOAuth2 {
		return base, nil
	}

	cc := &clientcredentials.Config{
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		TokenURL:     auth.TokenURL,
		Scopes:       auth.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	client := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = timeout
	return client, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		r.Header[k] = v
	}
	return t.base.RoundTrip(r)
}
