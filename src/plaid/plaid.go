package plaid

import (
	"fmt"
	"net/http"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"
)

// NewPlaidClient builds an API client for the named environment. Every request
// made through it is bounded by timeout.
func NewPlaidClient(clientID, secret, env string, timeout time.Duration) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)
	configuration.HTTPClient = &http.Client{Timeout: timeout}

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %s", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

// NewPlaidClientForURL points the client at an arbitrary base URL, such as a
// local stub server.
func NewPlaidClientForURL(clientID, secret, baseURL string, timeout time.Duration) *plaid.APIClient {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)
	configuration.HTTPClient = &http.Client{Timeout: timeout}
	configuration.UseEnvironment(plaid.Environment(baseURL))

	return plaid.NewAPIClient(configuration)
}
