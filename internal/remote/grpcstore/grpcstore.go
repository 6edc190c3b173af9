// Package grpcstore is a remote.Store backed by the document server.
package grpcstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	pb "github.com/dmitrijs2005/commissionsync/internal/proto"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// TokenSource returns the current access token, or "" when signed out.
type TokenSource func() string

type Store struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *pb.DocumentStoreClient
	token       TokenSource
	logger      logging.Logger
}

var (
	_ remote.Store  = (*Store)(nil)
	_ remote.Pinger = (*Store)(nil)
)

// Dial creates a client for endpointURL. No connection is made until the
// first call. Extra dial options are appended to the defaults.
func Dial(endpointURL string, token TokenSource, logger logging.Logger, opts ...grpc.DialOption) (*Store, error) {
	s := &Store{
		endpointURL: endpointURL,
		token:       token,
		logger:      logger.With("module", "grpcstore"),
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamAccessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.client = pb.NewDocumentStoreClient(conn)
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *Store) currentToken() string {
	if s.token == nil {
		return ""
	}
	return s.token()
}

func (s *Store) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, s.currentToken()), method, req, reply, cc, opts...)
}

func (s *Store) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withAccessToken(ctx, s.currentToken()), desc, cc, method, opts...)
}

// mapError translates gRPC status errors into remote sentinels.
func (s *Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.NotFound:
		sentinel = remote.ErrNotFound
	case codes.PermissionDenied:
		sentinel = remote.ErrPermissionDenied
	case codes.Unauthenticated:
		sentinel = remote.ErrUnauthenticated
	case codes.InvalidArgument:
		sentinel = remote.ErrInvalidArgument
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = remote.ErrUnavailable
	case codes.Canceled:
		return context.Canceled
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}

func (s *Store) Query(ctx context.Context, collection string, filter remote.Filter) ([]remote.Document, error) {
	req, err := pb.NewQueryRequest(collection, filter)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return pb.ParseDocuments(resp)
}

func (s *Store) SetFields(ctx context.Context, collection, docID string, fields map[string]any, merge bool) error {
	req, err := pb.NewSetFieldsRequest(collection, docID, fields, merge)
	if err != nil {
		return err
	}
	_, err = s.client.SetFields(ctx, req)
	return s.mapError(err)
}

func (s *Store) Delete(ctx context.Context, collection, docID string) error {
	req, err := pb.NewDeleteRequest(collection, docID)
	if err != nil {
		return err
	}
	_, err = s.client.Delete(ctx, req)
	return s.mapError(err)
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Ping(ctx, pb.Empty())
	return s.mapError(err)
}

// Subscribe opens a server stream and waits for its initial signal, so
// authorization failures surface here rather than on the channel. The stream
// lives until Close, independent of ctx.
func (s *Store) Subscribe(ctx context.Context, collection string, filter remote.Filter) (remote.Subscription, error) {
	req, err := pb.NewQueryRequest(collection, filter)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopWatch := context.AfterFunc(ctx, cancel)

	stream, err := s.client.Subscribe(streamCtx, req)
	if err == nil {
		err = stream.RecvMsg(new(structpb.Struct))
	}
	fired := !stopWatch()
	if err != nil {
		cancel()
		if fired && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, s.mapError(err)
	}
	if fired {
		cancel()
		return nil, ctx.Err()
	}

	sub := &subscription{
		ch:     make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub.ch <- struct{}{}

	go sub.run(streamCtx, stream, s.logger.With("collection", collection))
	return sub, nil
}

type subscription struct {
	ch     chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func (sub *subscription) run(ctx context.Context, stream grpc.ClientStream, logger logging.Logger) {
	defer close(sub.done)
	defer close(sub.ch)

	for {
		if err := stream.RecvMsg(new(structpb.Struct)); err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				logger.Warn(ctx, "subscription ended", "error", err)
			}
			return
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

func (sub *subscription) Changes() <-chan struct{} { return sub.ch }

// Close is idempotent.
func (sub *subscription) Close() error {
	sub.cancel()
	<-sub.done
	return nil
}
