// Package rpcconv holds the helpers shared by the gRPC services: domain values
// travel as google.protobuf.Struct documents and domain errors become status codes.
package rpcconv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	MetadataUserID   = "x-user-id"
	MetadataUserRole = "x-user-role"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ToStruct converts v through its JSON form, so field names match the HTTP API.
func ToStruct(v any) (*structpb.Struct, error) {
	m, err := toJSONValue[map[string]any](v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

func ToList[T any](items []T) (*structpb.ListValue, error) {
	raw, err := toJSONValue[[]any](items)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	if raw == nil {
		raw = []any{}
	}
	l, err := structpb.NewList(raw)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return l, nil
}

func toJSONValue[T any](v any) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

// Error maps a domain error onto a gRPC status. Unknown errors are masked.
func Error(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrFlightNotFound), errors.Is(err, domain.ErrBookingNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientInventory), errors.Is(err, domain.ErrFlightNotBookable),
		errors.Is(err, domain.ErrCancellationClosed), errors.Is(err, domain.ErrCapacityBelowBooked),
		errors.Is(err, domain.ErrFlightHasBookings):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrAlreadyCancelled), errors.Is(err, domain.ErrDuplicateFlightNumber):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

// Caller reads the identity the gateway forwards in request metadata.
func Caller(ctx context.Context) (int64, string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	ids := md.Get(MetadataUserID)
	if len(ids) == 0 {
		return 0, "", status.Error(codes.Unauthenticated, "missing "+MetadataUserID)
	}
	id, err := strconv.ParseInt(ids[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", status.Error(codes.Unauthenticated, "invalid "+MetadataUserID)
	}
	role := RoleUser
	if roles := md.Get(MetadataUserRole); len(roles) > 0 && roles[0] != "" {
		role = roles[0]
	}
	return id, role, nil
}

// UnaryHandler builds a grpc.MethodDesc handler for a method taking In and
// returning Out. S is the service implementation type.
func UnaryHandler[S any, In any, Out any](fullMethod string, call func(S, context.Context, *In) (*Out, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(In)
		if err := dec(in); err != nil {
			return nil, err
		}
		impl, ok := srv.(S)
		if !ok {
			return nil, status.Error(codes.Unimplemented, fmt.Sprintf("%T does not serve %s", srv, fullMethod))
		}
		if interceptor == nil {
			return call(impl, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(impl, ctx, req.(*In))
		}
		return interceptor(ctx, in, info, handler)
	}
}
