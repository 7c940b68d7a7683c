package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orderdesk/adminsearch/internal/platform/httpx"
	"github.com/orderdesk/adminsearch/internal/platform/requestctx"
)

const (
	defaultSignatureHeader = "X-Signature"
	defaultTimestampHeader = "X-Signature-Timestamp"
	defaultClockSkew       = 5 * time.Minute
	maxSignedBodySize      = 1 << 20
)

type callerContextKey struct{}

// WithCaller stores the authenticated caller name on the context.
func WithCaller(ctx context.Context, caller string) context.Context {
	if caller == "" {
		return ctx
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller name set by the HMAC middleware.
func CallerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	caller, ok := ctx.Value(callerContextKey{}).(string)
	return caller, ok && caller != ""
}

var (
	errMissingSignature = errors.New("auth: missing signature header")
	errMissingTimestamp = errors.New("auth: missing timestamp header")
	errStaleTimestamp   = errors.New("auth: timestamp outside accepted skew")
	errBadSignature     = errors.New("auth: signature mismatch")
)

// HMACVerifier verifies signed requests from trusted internal callers (the
// admin UI proxy and the host platform's hook dispatcher). Each caller signs
// with a named shared secret; any configured secret may authenticate a
// request.
type HMACVerifier struct {
	secrets         map[string]string
	signatureHeader string
	timestampHeader string
	clockSkew       time.Duration
	now             func() time.Time
}

// HMACOption customises the verifier.
type HMACOption func(*HMACVerifier)

// WithHeaders overrides the signature and timestamp header names.
func WithHeaders(signature, timestamp string) HMACOption {
	return func(v *HMACVerifier) {
		if signature != "" {
			v.signatureHeader = signature
		}
		if timestamp != "" {
			v.timestampHeader = timestamp
		}
	}
}

// WithClockSkew adjusts the accepted timestamp skew.
func WithClockSkew(d time.Duration) HMACOption {
	return func(v *HMACVerifier) {
		if d > 0 {
			v.clockSkew = d
		}
	}
}

// WithClock injects a custom clock, primarily for tests.
func WithClock(now func() time.Time) HMACOption {
	return func(v *HMACVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewHMACVerifier builds a verifier over the supplied named secrets. An
// empty secret map disables verification entirely (local development).
func NewHMACVerifier(secrets map[string]string, opts ...HMACOption) *HMACVerifier {
	copied := make(map[string]string, len(secrets))
	for name, secret := range secrets {
		if name != "" && secret != "" {
			copied[name] = secret
		}
	}
	v := &HMACVerifier{
		secrets:         copied,
		signatureHeader: defaultSignatureHeader,
		timestampHeader: defaultTimestampHeader,
		clockSkew:       defaultClockSkew,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Enabled reports whether any secret is configured.
func (v *HMACVerifier) Enabled() bool {
	return v != nil && len(v.secrets) > 0
}

// Verify checks the signature over "timestamp\nmethod\npath\nbody" against
// every configured secret, returning the matching secret name.
func (v *HMACVerifier) Verify(_ context.Context, r *http.Request, body []byte) (string, error) {
	signature := strings.TrimSpace(r.Header.Get(v.signatureHeader))
	if signature == "" {
		return "", errMissingSignature
	}
	rawTimestamp := strings.TrimSpace(r.Header.Get(v.timestampHeader))
	if rawTimestamp == "" {
		return "", errMissingTimestamp
	}

	unix, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return "", errMissingTimestamp
	}
	issued := time.Unix(unix, 0)
	now := v.now()
	if issued.Before(now.Add(-v.clockSkew)) || issued.After(now.Add(v.clockSkew)) {
		return "", errStaleTimestamp
	}

	payload := rawTimestamp + "\n" + r.Method + "\n" + r.URL.RequestURI() + "\n" + string(body)
	for name, secret := range v.secrets {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(payload))
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
			return name, nil
		}
	}
	return "", errBadSignature
}

// Middleware rejects unsigned or mis-signed requests. When no secret is
// configured the middleware passes requests through untouched.
func (v *HMACVerifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			body, err := readSignedBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body unreadable", http.StatusBadRequest))
				return
			}

			caller, err := v.Verify(ctx, r, body)
			if err != nil {
				requestctx.Logger(ctx).Warn("request signature rejected", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "request signature invalid", http.StatusUnauthorized))
				return
			}

			logger := requestctx.Logger(ctx).With(zap.String("hmac_caller", caller))
			ctx = requestctx.WithLogger(WithCaller(ctx, caller), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func readSignedBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodySize))
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
