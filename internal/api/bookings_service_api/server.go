package bookings_service_api

import (
	"context"
	"encoding/json"

	"github.com/Khaja-0531/flight-finders/internal/api/rpcconv"
	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "flightbooking.bookings.v1.BookingsService"

type BookingsServiceServer interface {
	CreateBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBooking(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	ListBookings(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	CancelBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server is the traveler booking API over gRPC. The caller comes from the
// x-user-id metadata key.
type Server struct {
	bookings booking.BookingUseCase
}

func NewServer(bookings booking.BookingUseCase) *Server {
	return &Server{bookings: bookings}
}

type createRequest struct {
	FlightID   int64              `json:"flight_id"`
	Passengers []domain.Passenger `json:"passengers"`
}

type cancelRequest struct {
	ID     int64   `json:"id"`
	Reason *string `json:"reason"`
}

func (s *Server) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	travelerID, _, err := rpcconv.Caller(ctx)
	if err != nil {
		return nil, err
	}
	var in createRequest
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	created, err := s.bookings.CreateBooking(ctx, booking.CreateBookingInput{
		TravelerID: travelerID,
		FlightID:   in.FlightID,
		Passengers: in.Passengers,
	})
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToStruct(created)
}

func (s *Server) GetBooking(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	travelerID, _, err := rpcconv.Caller(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetBooking(ctx, travelerID, req.GetValue())
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToStruct(b)
}

func (s *Server) ListBookings(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	travelerID, _, err := rpcconv.Caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.bookings.ListBookings(ctx, travelerID)
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToList(list)
}

func (s *Server) CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	travelerID, _, err := rpcconv.Caller(ctx)
	if err != nil {
		return nil, err
	}
	var in cancelRequest
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	if in.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id must be a positive integer")
	}
	cancelled, err := s.bookings.CancelBooking(ctx, booking.CancelBookingInput{
		TravelerID: travelerID,
		BookingID:  in.ID,
		Reason:     in.Reason,
	})
	if err != nil {
		return nil, rpcconv.Error(err)
	}
	return rpcconv.ToStruct(cancelled)
}

func decodeStruct(req *structpb.Struct, dst any) error {
	data, err := protojson.Marshal(req)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateBooking",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/CreateBooking", BookingsServiceServer.CreateBooking),
		},
		{
			MethodName: "GetBooking",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/GetBooking", BookingsServiceServer.GetBooking),
		},
		{
			MethodName: "ListBookings",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/ListBookings", BookingsServiceServer.ListBookings),
		},
		{
			MethodName: "CancelBooking",
			Handler:    rpcconv.UnaryHandler("/"+ServiceName+"/CancelBooking", BookingsServiceServer.CancelBooking),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func Register(registrar grpc.ServiceRegistrar, s BookingsServiceServer) {
	registrar.RegisterService(&ServiceDesc, s)
}
