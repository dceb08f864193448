package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Set with ldflags at build time.
var (
	HCPOrgID     string
	HCPProjectID string
)

const defaultHCPBaseURL = "https://api.cloud.hashicorp.com"

// HCPSecretsClient reads static secrets from HashiCorp Cloud Platform
// Vault Secrets.
type HCPSecretsClient struct {
	BaseURL    string
	orgID      string
	projectID  string
	apiToken   string
	httpClient *http.Client
}

// NewHCPSecretsClient decrypts HCP_ENCRYPTED_API_TOKEN with HCP_TOKEN_ENC_KEY.
func NewHCPSecretsClient() (*HCPSecretsClient, error) {
	if HCPOrgID == "" || HCPProjectID == "" {
		return nil, errors.New("HCPOrgID and HCPProjectID must be set with ldflags")
	}
	encrypted := os.Getenv("HCP_ENCRYPTED_API_TOKEN")
	if encrypted == "" {
		return nil, errors.New("HCP_ENCRYPTED_API_TOKEN env var is missing")
	}
	key := os.Getenv("HCP_TOKEN_ENC_KEY")
	if key == "" {
		return nil, errors.New("HCP_TOKEN_ENC_KEY env var is missing")
	}
	token, err := DecryptOpenSSLSalted([]byte(key), encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt HCP token: %w", err)
	}
	return NewHCPSecretsClientWithToken(HCPOrgID, HCPProjectID, token), nil
}

func NewHCPSecretsClientWithToken(orgID, projectID, token string) *HCPSecretsClient {
	return &HCPSecretsClient{
		BaseURL:    defaultHCPBaseURL,
		orgID:      orgID,
		projectID:  projectID,
		apiToken:   token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type hcpSecretsResponse struct {
	Secrets []struct {
		Name          string `json:"name"`
		StaticVersion *struct {
			Value string `json:"value"`
		} `json:"static_version"`
	} `json:"secrets"`
}

// GetHCPSecrets returns name -> value for every static secret of hcpAppName
// (e.g. "booking-service-dev").
func (c *HCPSecretsClient) GetHCPSecrets(ctx context.Context, hcpAppName string) (map[string]string, error) {
	url := fmt.Sprintf("%s/secrets/2023-11-28/organizations/%s/projects/%s/apps/%s/secrets:open",
		c.BaseURL, c.orgID, c.projectID, hcpAppName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HCP secrets request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: HCP secrets: %v", ErrExternalServiceFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading HCP secrets response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from HCP: %s", resp.StatusCode, body)
	}

	var payload hcpSecretsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding HCP secrets response: %w", err)
	}

	// Only static secrets are expected.
	out := make(map[string]string, len(payload.Secrets))
	for _, s := range payload.Secrets {
		if s.Name == "" {
			return nil, errors.New("HCP secret is missing 'name'")
		}
		if s.StaticVersion == nil || s.StaticVersion.Value == "" {
			return nil, fmt.Errorf("HCP secret '%s' has no static value", s.Name)
		}
		out[s.Name] = s.StaticVersion.Value
	}
	return out, nil
}

// GetHCPSecretsFromSecretsJSON unpacks the single SECRETS_JSON secret of
// hcpAppName, which holds every sub-secret as one JSON object.
func (c *HCPSecretsClient) GetHCPSecretsFromSecretsJSON(ctx context.Context, hcpAppName string) (map[string]string, error) {
	all, err := c.GetHCPSecrets(ctx, hcpAppName)
	if err != nil {
		return nil, err
	}
	raw, ok := all["SECRETS_JSON"]
	if !ok {
		return nil, fmt.Errorf("SECRETS_JSON not found among HCP secrets for %s", hcpAppName)
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse SECRETS_JSON for %s: %w", hcpAppName, err)
	}
	return parsed, nil
}

// ExportMissingEnv sets each secret as an environment variable unless the
// variable is already set, so local overrides win. It returns the names set.
func ExportMissingEnv(secrets map[string]string) ([]string, error) {
	var set []string
	for name, value := range secrets {
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return set, fmt.Errorf("setenv %s: %w", name, err)
		}
		set = append(set, name)
	}
	return set, nil
}
