// Package crm holds the CRM adapter registry. Adapters only validate
// credentials; they never call vendor APIs.
package crm

import (
	"context"
	"sort"
	"strings"
	"time"

	apperrors "leak-audit/internal/common/errors"
)

const (
	Salesforce  = "salesforce"
	HubSpot     = "hubspot"
	Pipedrive   = "pipedrive"
	Zoho        = "zoho"
	GoHighLevel = "gohighlevel"
	Webhook     = "webhook"
)

const minKeyLength = 6

// Credentials is the bag of secrets a user submits for a provider.
type Credentials struct {
	Provider    string            `json:"provider"`
	APIKey      string            `json:"apiKey,omitempty"`
	AccessToken string            `json:"accessToken,omitempty"`
	Domain      string            `json:"domain,omitempty"`
	LocationID  string            `json:"locationId,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Key returns the API key, falling back to the OAuth access token.
func (c Credentials) Key() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.AccessToken
}

// Masked hides all but the last four characters of the key.
func (c Credentials) Masked() string {
	key := c.Key()
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

type ValidateFunc func(ctx context.Context, creds Credentials) (bool, error)

type Adapter struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	IconName string        `json:"iconName"`
	Latency  time.Duration `json:"-"`
	Validate ValidateFunc  `json:"-"`

	// KeyOptional adapters accept an empty key (the demo webhook feed).
	KeyOptional bool `json:"-"`
	hidden      bool
}

// Result is the outcome of Authenticate. Error is user-facing copy.
type Result struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Error    string `json:"error,omitempty"`

	code apperrors.ErrorCode
}

// Err converts a failed result into an application error, nil on success.
func (r Result) Err() *apperrors.StandardError {
	if r.Success {
		return nil
	}
	switch r.code {
	case apperrors.ErrCodeProviderUnsupported:
		return apperrors.NewProviderUnsupportedError(r.Provider)
	case apperrors.ErrCodeCredentialsMissing:
		return apperrors.NewCredentialsMissingError()
	case apperrors.ErrCodeCRMConnectionTimeout:
		return apperrors.NewCRMConnectionTimeoutError(r.Provider, context.DeadlineExceeded)
	default:
		return apperrors.NewCredentialsInvalidError(r.Provider)
	}
}

type Registry struct {
	adapters      map[string]Adapter
	aliases       map[string]string
	honourLatency bool
}

type Option func(*Registry)

// WithSimulatedLatency makes Authenticate wait for each adapter's Latency
// before validating, bounded by the caller's context.
func WithSimulatedLatency() Option {
	return func(r *Registry) { r.honourLatency = true }
}

// NewRegistry builds a registry over adapters.
func NewRegistry(adapters []Adapter, opts ...Option) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter, len(adapters)),
		aliases:  map[string]string{"ghl": GoHighLevel},
	}
	for _, a := range adapters {
		r.adapters[a.ID] = a
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns the five supported CRMs plus the hidden webhook demo feed.
func Default(opts ...Option) *Registry {
	return NewRegistry(DefaultAdapters(), opts...)
}

func DefaultAdapters() []Adapter {
	return []Adapter{
		{ID: Salesforce, Name: "Salesforce", IconName: "Cloud", Latency: 1800 * time.Millisecond, Validate: validateKeyLength},
		{ID: HubSpot, Name: "HubSpot", IconName: "Hexagon", Latency: 1200 * time.Millisecond, Validate: validateKeyLength},
		{ID: Pipedrive, Name: "Pipedrive", IconName: "Kanban", Latency: 1500 * time.Millisecond, Validate: validateKeyLength},
		{ID: Zoho, Name: "Zoho CRM", IconName: "Box", Latency: 1400 * time.Millisecond, Validate: validateKeyLength},
		{ID: GoHighLevel, Name: "GoHighLevel", IconName: "Zap", Latency: 1600 * time.Millisecond, Validate: validateKeyLength},
		{ID: Webhook, Name: "Webhook", IconName: "Webhook", KeyOptional: true, hidden: true, Validate: acceptAll},
	}
}

func validateKeyLength(_ context.Context, creds Credentials) (bool, error) {
	return len(creds.Key()) >= minKeyLength, nil
}

func acceptAll(context.Context, Credentials) (bool, error) {
	return true, nil
}

// Resolve maps a provider id or alias onto a registered adapter id.
func (r *Registry) Resolve(id string) (string, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if canonical, ok := r.aliases[id]; ok {
		id = canonical
	}
	_, ok := r.adapters[id]
	return id, ok
}

func (r *Registry) Lookup(id string) (Adapter, bool) {
	canonical, ok := r.Resolve(id)
	if !ok {
		return Adapter{}, false
	}
	return r.adapters[canonical], true
}

// Providers lists the public provider ids in sorted order.
func (r *Registry) Providers() []string {
	ids := make([]string, 0, len(r.adapters))
	for id, a := range r.adapters {
		if !a.hidden {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Authenticate validates creds against the matching adapter.
func (r *Registry) Authenticate(ctx context.Context, creds Credentials) Result {
	adapter, ok := r.Lookup(creds.Provider)
	if !ok {
		return Result{Provider: creds.Provider, Error: "Unsupported CRM Provider", code: apperrors.ErrCodeProviderUnsupported}
	}
	res := Result{Provider: adapter.ID}

	if creds.Key() == "" && !adapter.KeyOptional {
		res.Error, res.code = "API Key is required", apperrors.ErrCodeCredentialsMissing
		return res
	}

	if r.honourLatency && adapter.Latency > 0 {
		timer := time.NewTimer(adapter.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			res.Error, res.code = "Connection Timeout", apperrors.ErrCodeCRMConnectionTimeout
			return res
		case <-timer.C:
		}
	}
	if ctx.Err() != nil {
		res.Error, res.code = "Connection Timeout", apperrors.ErrCodeCRMConnectionTimeout
		return res
	}

	valid, err := adapter.Validate(ctx, creds)
	if err != nil {
		res.Error, res.code = "Connection Timeout", apperrors.ErrCodeCRMConnectionTimeout
		return res
	}
	if !valid {
		res.Error, res.code = "Invalid API Credentials", apperrors.ErrCodeCredentialsInvalid
		return res
	}

	res.Success = true
	return res
}

// CredentialsFromMap maps the free-form credential bag posted by the
// dashboard or a process variable onto Credentials. Unknown keys go to Extra.
func CredentialsFromMap(provider string, bag map[string]string) Credentials {
	creds := Credentials{Provider: provider}
	for k, v := range bag {
		switch k {
		case "apiKey", "api_key", "token":
			creds.APIKey = v
		case "accessToken", "access_token":
			creds.AccessToken = v
		case "domain", "instanceUrl":
			creds.Domain = v
		case "locationId", "location_id":
			creds.LocationID = v
		default:
			if creds.Extra == nil {
				creds.Extra = make(map[string]string)
			}
			creds.Extra[k] = v
		}
	}
	return creds
}
