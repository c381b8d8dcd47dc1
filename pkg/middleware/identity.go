package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

// Identity is the caller as asserted by the upstream gateway.
type Identity struct {
	UserID   string
	UserName string
	Role     string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity, zero when none was set.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// Identify copies the identity headers into the request context.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity{
			UserID:   strings.TrimSpace(c.GetHeader(HeaderUserID)),
			UserName: strings.TrimSpace(c.GetHeader(HeaderUserName)),
			Role:     strings.TrimSpace(c.GetHeader(HeaderUserRole)),
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// IdentityInterceptor does the same for gRPC metadata.
func IdentityInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}

		first := func(key string) string {
			if v := md.Get(key); len(v) > 0 {
				return strings.TrimSpace(v[0])
			}
			return ""
		}

		ctx = WithIdentity(ctx, Identity{
			UserID:   first(strings.ToLower(HeaderUserID)),
			UserName: first(strings.ToLower(HeaderUserName)),
			Role:     first(strings.ToLower(HeaderUserRole)),
		})
		return handler(ctx, req)
	}
}
