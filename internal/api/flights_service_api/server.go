package flights_service_api

import (
	"context"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/api/rpcconv"
	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/service/flights"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "flightbooking.flights.v1.FlightsService"

type FlightsServiceServer interface {
	ListFlights(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetFlight(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	SearchFlights(context.Context, *structpb.Struct) (*structpb.ListValue, error)
}

// Server exposes the read side of the flight catalogue over gRPC.
type Server struct {
	flights flights.FlightUseCase
}

func NewServer(flights flights.FlightUseCase) *Server {
	return &Server{flights: flights}
}

func (s *Server) ListFlights(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	list, err := s.flights.List(ctx)
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToList(list)
}

func (s *Server) GetFlight(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id must be a positive integer")
	}
	flight, err := s.flights.GetByID(ctx, req.GetValue())
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToStruct(flight)
}

// SearchFlights takes a struct with optional from, to and date (YYYY-MM-DD) fields.
func (s *Server) SearchFlights(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	fields := req.GetFields()
	criteria := domain.SearchCriteria{
		DepartureCity:   fields["from"].GetStringValue(),
		DestinationCity: fields["to"].GetStringValue(),
	}
	if raw := fields["date"].GetStringValue(); raw != "" {
		date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "date must be formatted as YYYY-MM-DD")
		}
		criteria.DepartureDate = date
	}
	found, err := s.flights.Search(ctx, criteria)
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToList(found)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FlightsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListFlights",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/ListFlights", FlightsServiceServer.ListFlights),
		},
		{
			MethodName: "GetFlight",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/GetFlight", FlightsServiceServer.GetFlight),
		},
		{
			MethodName: "SearchFlights",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/SearchFlights", FlightsServiceServer.SearchFlights),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func Register(registrar grpc.ServiceRegistrar, s FlightsServiceServer) {
	registrar.RegisterService(&ServiceDesc, s)
}
