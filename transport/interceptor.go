package transport

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"jazz-tools/jazz-crypto/auth"
)

// AuthorizationHeader carries the caller's bearer token.
const AuthorizationHeader = "authorization"

type subjectKey struct{}

// SubjectFromContext returns the authenticated subject of a request, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey{}).(string)
	return subject, ok
}

// authInterceptor verifies the authorization metadata of every call with the
// manager's required authenticator. Calls pass through when authentication
// is disabled.
func authInterceptor(authManager *auth.AuthManager, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if authManager == nil || !authManager.Enabled() {
			return handler(ctx, req)
		}

		var token string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(AuthorizationHeader); len(values) > 0 {
				token = values[0]
			}
		}
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing authorization")
		}

		result, err := authManager.Verify(ctx, token)
		if err != nil {
			logger.Debug("request rejected",
				zap.String("method", info.FullMethod),
				zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "unauthenticated")
		}

		if result != nil {
			ctx = context.WithValue(ctx, subjectKey{}, result.Subject)
		}
		return handler(ctx, req)
	}
}
