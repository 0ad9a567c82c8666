package admin_service_api

import (
	"context"

	"github.com/Khaja-0531/flight-finders/internal/api/rpcconv"
	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"github.com/Khaja-0531/flight-finders/internal/service/stats"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "flightbooking.admin.v1.AdminService"

type AdminServiceServer interface {
	GetStatistics(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListAllBookings(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

type Server struct {
	stats    stats.StatsUseCase
	bookings booking.BookingUseCase
}

func NewServer(stats stats.StatsUseCase, bookings booking.BookingUseCase) *Server {
	return &Server{stats: stats, bookings: bookings}
}

func (s *Server) GetStatistics(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	st, err := s.stats.ComputeStatistics(ctx)
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToStruct(st)
}

func (s *Server) ListAllBookings(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	list, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToList(list)
}

func requireAdmin(ctx context.Context) error {
	_, role, err := rpcconv.Caller(ctx)
	if err != nil {
		return err
	}
	if role != rpcconv.RoleAdmin {
		return status.Error(codes.PermissionDenied, "role not allowed")
	}
	return nil
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatistics",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/GetStatistics", AdminServiceServer.GetStatistics),
		},
		{
			MethodName: "ListAllBookings",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/ListAllBookings", AdminServiceServer.ListAllBookings),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func Register(registrar grpc.ServiceRegistrar, s AdminServiceServer) {
	registrar.RegisterService(&ServiceDesc, s)
}
