package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/commissionsync/internal/common"
	pb "github.com/dmitrijs2005/commissionsync/internal/proto"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var collections = map[string]bool{
	common.CollectionProjects: true,
	common.CollectionFixtures: true,
	common.CollectionOrgs:     true,
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, remote.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, remote.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, remote.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, remote.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, remote.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) fail(ctx context.Context, op string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, op+" failed", "request_id", requestID(ctx), "error", err)
	}
	return st
}

func caller(ctx context.Context) (string, error) {
	uid, ok := userID(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing caller identity")
	}
	return uid, nil
}

func checkCollection(name string) error {
	if !collections[name] {
		return status.Errorf(codes.InvalidArgument, "unknown collection %q", name)
	}
	return nil
}

// checkScope requires the filter to pin documents to the caller.
func checkScope(uid string, f remote.Filter) error {
	if f.Field != common.OwnerField {
		return status.Error(codes.PermissionDenied, "query must filter on "+common.OwnerField)
	}
	if v, _ := f.Value.(string); v != uid {
		return status.Error(codes.PermissionDenied, "query is scoped to another owner")
	}
	return nil
}

func ownerOf(data map[string]any) string {
	v, _ := remote.StringField(data, common.OwnerField)
	return v
}

func (s *GRPCServer) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	collection, filter, err := pb.ParseQueryRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkScope(uid, filter); err != nil {
		return nil, err
	}

	docs, err := s.store.Query(ctx, collection, filter)
	if err != nil {
		return nil, s.fail(ctx, "query", err)
	}

	resp, err := pb.NewDocuments(docs)
	if err != nil {
		return nil, s.fail(ctx, "query", err)
	}
	return resp, nil
}

// existing returns the stored document and whether it exists. A document of
// another owner yields PermissionDenied.
func (s *GRPCServer) existing(ctx context.Context, uid, collection, docID string) (bool, error) {
	doc, err := s.store.Get(ctx, collection, docID)
	if errors.Is(err, remote.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(ctx, "get", err)
	}
	if ownerOf(doc.Data) != uid {
		return true, status.Error(codes.PermissionDenied, "document belongs to another owner")
	}
	return true, nil
}

func (s *GRPCServer) SetFields(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	in, err := pb.ParseSetFieldsRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := checkCollection(in.Collection); err != nil {
		return nil, err
	}

	exists, err := s.existing(ctx, uid, in.Collection, in.DocID)
	if err != nil {
		return nil, err
	}

	if v, ok := in.Fields[common.OwnerField]; ok {
		if owner, _ := v.(string); owner != uid {
			return nil, status.Error(codes.PermissionDenied, "cannot write a document for another owner")
		}
	} else if !exists || !in.Merge {
		in.Fields[common.OwnerField] = uid
	}

	if err := s.store.SetFields(ctx, in.Collection, in.DocID, in.Fields, in.Merge); err != nil {
		return nil, s.fail(ctx, "set fields", err)
	}
	return pb.Empty(), nil
}

func (s *GRPCServer) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	collection, docID, err := pb.ParseDeleteRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	exists, err := s.existing(ctx, uid, collection, docID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return pb.Empty(), nil
	}

	if err := s.store.Delete(ctx, collection, docID); err != nil {
		return nil, s.fail(ctx, "delete", err)
	}
	return pb.Empty(), nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if p, ok := s.store.(remote.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn(ctx, "backend ping failed", "error", err)
			return nil, status.Error(codes.Unavailable, "backend unavailable")
		}
	}
	return pb.Empty(), nil
}

// Subscribe sends one empty message per coalesced change until the client
// goes away, the backend feed breaks or the server stops.
func (s *GRPCServer) Subscribe(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	uid, err := caller(ctx)
	if err != nil {
		return err
	}
	collection, filter, err := pb.ParseQueryRequest(req)
	if err != nil {
		return toStatus(err)
	}
	if err := checkCollection(collection); err != nil {
		return err
	}
	if err := checkScope(uid, filter); err != nil {
		return err
	}

	sub, err := s.store.Subscribe(ctx, collection, filter)
	if err != nil {
		return s.fail(ctx, "subscribe", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopping:
			return status.Error(codes.Unavailable, "server shutting down")
		case _, ok := <-sub.Changes():
			if !ok {
				return status.Error(codes.Unavailable, "change feed ended")
			}
			if err := stream.SendMsg(pb.Empty()); err != nil {
				return err
			}
		}
	}
}
