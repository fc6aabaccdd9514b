package foundry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultScope is the token audience of the agent service
const DefaultScope = "https://ai.azure.com/.default"

const defaultAuthorityHost = "https://login.microsoftonline.com"

// Credentials selects how requests are authenticated. A static token wins over
// client credentials when both are set.
type Credentials struct {
	Token string

	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string

	// TokenURL overrides the token endpoint derived from TenantID
	TokenURL string
}

// NewHTTPClient returns an HTTP client that attaches a bearer token to every request.
// ctx is used for token fetches and should outlive the client.
func NewHTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	if creds.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"})
		return oauth2.NewClient(ctx, src), nil
	}

	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.New("either a token or client_id and client_secret are required")
	}

	tokenURL := creds.TokenURL
	if tokenURL == "" {
		if creds.TenantID == "" {
			return nil, errors.New("tenant_id is required for client credentials")
		}
		tokenURL = fmt.Sprintf("%s/%s/oauth2/v2.0/token", defaultAuthorityHost, creds.TenantID)
	}

	scope := creds.Scope
	if scope == "" {
		scope = DefaultScope
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cfg.Client(ctx), nil
}
