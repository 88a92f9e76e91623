package secrets

import (
	"context"
	"errors"
	"testing"
)

func TestResolveBuildsResourceNameAndCaches(t *testing.T) {
	calls := 0
	fetcher, err := NewFetcher(context.Background(), "summit-prod", WithAccessFunc(func(_ context.Context, resourceName string) (string, error) {
		calls++
		if resourceName != "projects/summit-prod/secrets/oracle-key/versions/latest" {
			t.Fatalf("unexpected resource name %q", resourceName)
		}
		return "sk-test", nil
	}))
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}

	for i := 0; i < 3; i++ {
		value, err := fetcher.Resolve(context.Background(), "oracle-key")
		if err != nil {
			t.Fatalf("Resolve error: %v", err)
		}
		if value != "sk-test" {
			t.Fatalf("unexpected value %q", value)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one backend access, got %d", calls)
	}
}

func TestResolveExplicitVersion(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), "summit-prod", WithAccessFunc(func(_ context.Context, resourceName string) (string, error) {
		if resourceName != "projects/summit-prod/secrets/oracle-key/versions/7" {
			t.Fatalf("unexpected resource name %q", resourceName)
		}
		return "sk-v7", nil
	}))
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	value, err := fetcher.Resolve(context.Background(), "oracle-key@7")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if value != "sk-v7" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestResolvePropagatesBackendErrors(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), "summit-prod", WithAccessFunc(func(context.Context, string) (string, error) {
		return "", errors.New("permission denied")
	}))
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	if _, err := fetcher.Resolve(context.Background(), "oracle-key"); err == nil {
		t.Fatalf("expected error to surface")
	}
}

func TestNewFetcherRequiresProject(t *testing.T) {
	if _, err := NewFetcher(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for missing project id")
	}
}
