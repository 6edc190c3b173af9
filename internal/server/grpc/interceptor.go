package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/auth"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	pb "github.com/dmitrijs2005/commissionsync/internal/proto"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	userIDKey    ctxKey = "userID"
	requestIDKey ctxKey = "requestID"
)

// userID returns the caller uid placed into ctx by the access token interceptors.
func userID(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok && uid != ""
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *GRPCServer) authenticate(ctx context.Context) (context.Context, error) {
	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	userId, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return context.WithValue(ctx, userIDKey, userId), nil
}

// Ping is the only call served without a token; clients use it as a
// reachability probe before signing in.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if info.FullMethod != pb.PingMethod {
		var err error
		ctx, err = s.authenticate(ctx)
		if err != nil {
			return nil, err
		}
	}

	return handler(ctx, req)
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *wrappedStream) Context() context.Context { return a.ctx }

func (s *GRPCServer) streamAccessTokenInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
}

func (s *GRPCServer) requestLogInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	id := ulid.Make().String()
	ctx = context.WithValue(ctx, requestIDKey, id)
	start := time.Now()

	resp, err := handler(ctx, req)

	s.logger.Debug(ctx, "request",
		"method", info.FullMethod,
		"request_id", id,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}

func (s *GRPCServer) streamLogInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	id := ulid.Make().String()
	ctx := context.WithValue(ss.Context(), requestIDKey, id)
	s.logger.Debug(ctx, "stream opened", "method", info.FullMethod, "request_id", id)

	err := handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})

	s.logger.Debug(ctx, "stream closed", "method", info.FullMethod, "request_id", id, "code", status.Code(err).String())
	return err
}
