package api

import (
	"context"
	"strings"
	"time"

	"velora/internal/models"
	"velora/internal/pricing"
	"velora/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	PricingServiceName         = "velora.rental.v1.PricingService"
	PricingQuoteMethod         = "/" + PricingServiceName + "/Quote"
	PricingRefundPreviewMethod = "/" + PricingServiceName + "/RefundPreview"
)

// PricingServer prices rentals over gRPC. Messages are google.protobuf.Struct
// with the same camelCase fields as the HTTP API.
type PricingServer interface {
	Quote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefundPreview(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var PricingServiceDesc = grpc.ServiceDesc{
	ServiceName: PricingServiceName,
	HandlerType: (*PricingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Quote", Handler: pricingQuoteHandler},
		{MethodName: "RefundPreview", Handler: pricingRefundPreviewHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "velora/rental/v1/pricing.proto",
}

func RegisterPricingServer(s grpc.ServiceRegistrar, srv PricingServer) {
	s.RegisterService(&PricingServiceDesc, srv)
}

func pricingQuoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PricingServer).Quote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PricingQuoteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PricingServer).Quote(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func pricingRefundPreviewHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PricingServer).RefundPreview(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PricingRefundPreviewMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PricingServer).RefundPreview(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type PricingService struct {
	rentals *service.RentalService
}

func NewPricingService(rentals *service.RentalService) *PricingService {
	return &PricingService{rentals: rentals}
}

func (s *PricingService) Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	dressID := strings.TrimSpace(fields["dressId"].GetStringValue())
	if dressID == "" {
		return nil, status.Error(codes.InvalidArgument, "dressId is required")
	}

	start, err := parseDate(fields["startDate"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid startDate; expected YYYY-MM-DD")
	}
	end, err := parseDate(fields["endDate"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid endDate; expected YYYY-MM-DD")
	}

	q, err := s.rentals.Quote(ctx, dressID, start, end)
	if err != nil {
		return nil, grpcError(err)
	}

	return structpb.NewStruct(map[string]any{
		"dressId":        q.DressID,
		"startDate":      q.StartDate.Format(models.DateLayout),
		"endDate":        q.EndDate.Format(models.DateLayout),
		"rentalDays":     q.RentalDays,
		"totalPrice":     q.TotalPrice,
		"depositAmount":  q.DepositAmount,
		"depositPercent": pricing.DepositPercent,
		"available":      q.Available,
	})
}

func (s *PricingService) RefundPreview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetFields()["rentalId"].GetStringValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "rentalId is required")
	}

	c, err := s.rentals.PreviewCancellation(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}

	return structpb.NewStruct(map[string]any{
		"rentalId":        c.RentalID,
		"refundAmount":    c.RefundAmount,
		"daysUntilRental": c.DaysUntilRental,
		"refundable":      c.RefundAmount > 0,
		"message":         c.Message,
	})
}

func grpcError(err error) error {
	e := classify(err)
	return status.Error(e.grpc, e.message)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(models.DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return pricing.DateOnly(t), nil
}
