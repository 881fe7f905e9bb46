package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"velora/internal/config"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func authConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "site-key", Extra: "site-extra", Name: "site", Permissions: []string{"read:catalog", "write:bookings"}},
				{Key: "admin-key", Extra: "admin-extra", Name: "backoffice", Permissions: []string{"admin"}},
				{Key: "open-key", Extra: "open-extra"},
			},
		},
		RateLimit: config.APIRateLimitConfig{
			RPS:   100,
			Burst: 200,
		},
	}
}

func TestAuthInterceptor(t *testing.T) {
	cfg := authConfig()
	auth := NewAuthInterceptor(&cfg)
	interceptor := auth.Unary()

	handler := func(_ context.Context, req any) (any, error) {
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: PricingQuoteMethod}

	t.Run("Success", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "site-key", "x-api-extra", "site-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("AdminImpliesAll", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "admin-key", "x-api-extra", "admin-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs())
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "invalid", "x-api-extra", "site-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "site-key", "x-api-extra", "invalid")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("HealthSkipsAuth", func(t *testing.T) {
		healthInfo := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
		_, err := interceptor(context.Background(), "req", healthInfo, handler)
		assert.NoError(t, err)
	})
}

func TestAuthInterceptor_PermissionDenied(t *testing.T) {
	cfg := authConfig()
	cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, config.APIClientKey{Key: "book-key", Extra: "book-extra", Permissions: []string{"write:bookings"}})
	interceptor := NewAuthInterceptor(&cfg).Unary()

	md := metadata.Pairs("x-api-key", "book-key", "x-api-extra", "book-extra")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	_, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: PricingRefundPreviewMethod}, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestAuthInterceptor_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth:    config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{
			RPS:   1,
			Burst: 1,
		},
	}

	interceptor := NewAuthInterceptor(&cfg).Unary()
	info := &grpc.UnaryServerInfo{FullMethod: "test"}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key1"))

	// First request - ok
	_, err := interceptor(ctx, "req", info, handler)
	assert.NoError(t, err)

	// Second request - blocked
	_, err = interceptor(ctx, "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// Another key has its own bucket
	other := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key2"))
	_, err = interceptor(other, "req", info, handler)
	assert.NoError(t, err)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(nil)
	handler := func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "test"}

	resp, err := interceptor(context.Background(), "req", info, handler)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor(nil)
	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "test"}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptors_Order(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}

	chain := ChainUnaryInterceptors(mk("a"), mk("b"), mk("c"))
	_, err := chain(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "handler"}, order)
}

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "abc"))
	assert.Equal(t, "abc", requestIDFromMetadata(ctx))
	assert.NotEmpty(t, requestIDFromMetadata(context.Background()))
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{PricingQuoteMethod, "read:catalog"},
		{PricingRefundPreviewMethod, "read:catalog"},
		{"other", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, requiredPermission(tt.method))
	}
}

func TestRequiredPermissionHTTP(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/dresses", permReadCatalog},
		{http.MethodGet, "/api/v1/dresses/x/quote", permReadCatalog},
		{http.MethodPost, "/api/v1/dresses", permAdmin},
		{http.MethodPost, "/api/v1/bookings/dress", permWriteBookings},
		{http.MethodDelete, "/api/v1/bookings/dress/x", permWriteBookings},
		{http.MethodGet, "/api/v1/admin/dress-rentals", permAdmin},
		{http.MethodGet, "/healthz", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.path, nil)
		assert.Equal(t, tt.want, requiredPermissionHTTP(r), tt.path)
	}
}

func TestHTTPAuth(t *testing.T) {
	st := newTestStack(t)
	ts := newTestHTTPServer(t, st, authConfig())

	get := func(path, key, extra string) int {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		if key != "" {
			req.Header.Set("X-Api-Key", key)
			req.Header.Set("X-Api-Extra", extra)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/v1/dresses", "", ""))
	assert.Equal(t, http.StatusUnauthorized, get("/api/v1/dresses", "site-key", "wrong"))
	assert.Equal(t, http.StatusOK, get("/api/v1/dresses", "site-key", "site-extra"))
	assert.Equal(t, http.StatusForbidden, get("/api/v1/admin/dress-rentals", "site-key", "site-extra"))
	assert.Equal(t, http.StatusOK, get("/api/v1/admin/dress-rentals", "admin-key", "admin-extra"))
	assert.Equal(t, http.StatusOK, get("/api/v1/admin/dress-rentals", "open-key", "open-extra"))
	assert.Equal(t, http.StatusOK, get("/healthz", "", ""))
}

func TestHTTPRateLimit(t *testing.T) {
	st := newTestStack(t)
	ts := newTestHTTPServer(t, st, config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1}})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/dresses", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/dresses", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, codeRateLimited, body["code"])
}
