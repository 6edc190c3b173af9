// Package grpc exposes a remote.Store to sync clients over gRPC. Every call is
// scoped to the uid carried in the caller's access token.
package grpc

import (
	"context"
	"net"
	"sync"

	"github.com/dmitrijs2005/commissionsync/internal/logging"
	pb "github.com/dmitrijs2005/commissionsync/internal/proto"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
	"google.golang.org/grpc"
)

// Backend is the document store the server fronts.
type Backend interface {
	remote.Store
	Get(ctx context.Context, collection, docID string) (remote.Document, error)
}

type GRPCServer struct {
	address   string
	store     Backend
	logger    logging.Logger
	jwtSecret []byte

	stopOnce sync.Once
	stopping chan struct{}
}

var _ pb.DocumentStoreServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, store Backend, secretKey string) (*GRPCServer, error) {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		store:     store,
		jwtSecret: []byte(secretKey),
		stopping:  make(chan struct{}),
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.requestLogInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamLogInterceptor, s.streamAccessTokenInterceptor),
	)
	pb.RegisterDocumentStoreServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		// open subscriptions would otherwise hold GracefulStop forever
		s.stopOnce.Do(func() { close(s.stopping) })
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
