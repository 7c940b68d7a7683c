package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	cacheTTL            = 5 * time.Minute
)

var errSecretNotFound = errors.New("secrets: secret not found")

// IsNotFound reports whether the error indicates a missing secret.
func IsNotFound(err error) bool {
	return errors.Is(err, errSecretNotFound)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var clientFactory = func(ctx context.Context, opts ...option.ClientOption) (secretManagerClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// Fetcher resolves secret:// references through Google Secret Manager with a
// short-lived cache and a local fallback file for development environments.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher) {
		f.fallbackPath = strings.TrimSpace(path)
	}
}

// WithClient injects a preconfigured Secret Manager client (primarily for tests).
func WithClient(client secretManagerClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher builds a Fetcher for the given default project. Construction
// does not dial Secret Manager; the client is created lazily on first use so
// local environments with only a fallback file need no credentials.
func NewFetcher(projectID string, opts ...Option) *Fetcher {
	f := &Fetcher{
		logger:       zap.NewNop(),
		projectID:    strings.TrimSpace(projectID),
		fallbackPath: defaultFallbackPath,
		cache:        make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ResolveSecret resolves a canonical secret://name[@version] reference.
// Lookup order: in-memory cache, local fallback file, Secret Manager.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, version, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	cacheKey := name + "@" + version
	if value, ok := f.cachedValue(cacheKey); ok {
		return value, nil
	}

	if value, ok := f.fallbackValue(name); ok {
		f.storeCached(cacheKey, value)
		return value, nil
	}

	value, err := f.fetchRemote(ctx, name, version)
	if err != nil {
		return "", err
	}
	f.storeCached(cacheKey, value)
	return value, nil
}

// Close releases the Secret Manager client when this fetcher created it.
func (f *Fetcher) Close() error {
	if f.client != nil && f.ownsClient {
		return f.client.Close()
	}
	return nil
}

func (f *Fetcher) cachedValue(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	if !ok || time.Since(entry.fetchedAt) > cacheTTL {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) storeCached(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[key] = cacheEntry{value: value, fetchedAt: time.Now()}
}

func (f *Fetcher) fallbackValue(name string) (string, bool) {
	f.fallbackOnce.Do(func() {
		f.fallbackVals = loadFallbackFile(f.fallbackPath, f.logger)
	})
	value, ok := f.fallbackVals[name]
	return value, ok
}

func (f *Fetcher) fetchRemote(ctx context.Context, name, version string) (string, error) {
	if f.projectID == "" {
		return "", fmt.Errorf("secrets: no project configured for ref %q: %w", name, errSecretNotFound)
	}

	client, err := f.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version)
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("secrets: %s: %w", name, errSecretNotFound)
		}
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: %s: empty payload: %w", name, errSecretNotFound)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) ensureClient(ctx context.Context) (secretManagerClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	client, err := clientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("secrets: create client: %w", err)
	}
	f.client = client
	f.ownsClient = true
	return client, nil
}

func parseRef(ref string) (name, version string, err error) {
	trimmed := strings.TrimSpace(ref)
	trimmed = strings.TrimPrefix(trimmed, "secret://")
	if trimmed == "" {
		return "", "", errors.New("secrets: empty secret reference")
	}
	version = "latest"
	if idx := strings.LastIndex(trimmed, "@"); idx >= 0 {
		if v := strings.TrimSpace(trimmed[idx+1:]); v != "" {
			version = v
		}
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "", "", errors.New("secrets: malformed secret reference")
	}
	return trimmed, version, nil
}

func loadFallbackFile(path string, logger *zap.Logger) map[string]string {
	values := make(map[string]string)
	if path == "" {
		return values
	}
	file, err := os.Open(path)
	if err != nil {
		return values
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("secrets fallback file unreadable", zap.String("path", path), zap.Error(err))
	}
	return values
}
