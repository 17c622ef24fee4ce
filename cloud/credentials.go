package cloud

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuth scopes requested by the sinks.
const (
	ScopeSheets = "https://www.googleapis.com/auth/spreadsheets"
	ScopeDrive  = "https://www.googleapis.com/auth/drive.file"
)

// Credentials hands out an authenticated HTTP client for one export call.
// The returned release function must be called once the call is done.
type Credentials interface {
	Client(ctx context.Context, scopes ...string) (*http.Client, func(), error)
}

// ServiceAccount authenticates with a service account key. JSON takes
// precedence over Path; when both are empty the application default
// credentials are used.
type ServiceAccount struct {
	Path string
	JSON []byte
}

// Client implements [Credentials]. Every call gets its own transport, and
// release closes its idle connections.
func (s ServiceAccount) Client(ctx context.Context, scopes ...string) (*http.Client, func(), error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})

	creds, err := s.credentials(ctx, scopes)
	if err != nil {
		base.CloseIdleConnections()
		return nil, nil, err
	}
	return oauth2.NewClient(ctx, creds.TokenSource), base.CloseIdleConnections, nil
}

func (s ServiceAccount) credentials(ctx context.Context, scopes []string) (*google.Credentials, error) {
	data := s.JSON
	if len(data) == 0 && s.Path != "" {
		var err error
		if data, err = os.ReadFile(s.Path); err != nil {
			return nil, fmt.Errorf("cloud: reading credentials: %w", err)
		}
	}
	if len(data) == 0 {
		creds, err := google.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("cloud: default credentials: %w", err)
		}
		return creds, nil
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("cloud: parsing credentials: %w", err)
	}
	return creds, nil
}

// StaticClient uses an existing client, for example one built by the
// caller's own OAuth flow.
type StaticClient struct {
	HTTP *http.Client
}

// Client implements [Credentials]. Release is a no-op.
func (s StaticClient) Client(context.Context, ...string) (*http.Client, func(), error) {
	if s.HTTP == nil {
		return nil, nil, fmt.Errorf("cloud: no HTTP client configured")
	}
	return s.HTTP, func() {}, nil
}
