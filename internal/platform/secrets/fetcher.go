// Package secrets resolves secret:// configuration references against Google
// Secret Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

const defaultVersion = "latest"

// Fetcher reads secret payloads, caching each resolved name for the process
// lifetime. Secrets this service consumes (the oracle API key) do not rotate
// mid-flight.
type Fetcher struct {
	projectID string
	access    func(ctx context.Context, resourceName string) (string, error)
	closeFn   func() error

	mu    sync.Mutex
	cache map[string]string
}

// Option customises the Fetcher.
type Option func(*Fetcher)

// WithAccessFunc replaces the Secret Manager call, for tests.
func WithAccessFunc(access func(ctx context.Context, resourceName string) (string, error)) Option {
	return func(f *Fetcher) {
		if access != nil {
			f.access = access
			f.closeFn = func() error { return nil }
		}
	}
}

// NewFetcher constructs a Fetcher bound to the given project.
func NewFetcher(ctx context.Context, projectID string, opts ...Option) (*Fetcher, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("secrets: project id is required")
	}

	fetcher := &Fetcher{
		projectID: projectID,
		cache:     make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fetcher)
		}
	}

	if fetcher.access == nil {
		client, err := secretmanager.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("secrets: create client: %w", err)
		}
		fetcher.access = func(ctx context.Context, resourceName string) (string, error) {
			resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
			if err != nil {
				return "", err
			}
			if resp.GetPayload() == nil {
				return "", errors.New("secrets: empty payload")
			}
			return string(resp.GetPayload().GetData()), nil
		}
		fetcher.closeFn = client.Close
	}

	return fetcher, nil
}

// Resolve returns the payload for the named secret. Names may carry an
// explicit version as NAME@VERSION; the default is latest.
func (f *Fetcher) Resolve(ctx context.Context, name string) (string, error) {
	if f == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: secret name is required")
	}

	f.mu.Lock()
	if cached, ok := f.cache[name]; ok {
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	secretName, version, found := strings.Cut(name, "@")
	if !found {
		version = defaultVersion
	}
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, secretName, version)

	payload, err := f.access(ctx, resourceName)
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", secretName, err)
	}

	f.mu.Lock()
	f.cache[name] = payload
	f.mu.Unlock()
	return payload, nil
}

// Close releases the underlying client.
func (f *Fetcher) Close() error {
	if f == nil || f.closeFn == nil {
		return nil
	}
	return f.closeFn()
}
