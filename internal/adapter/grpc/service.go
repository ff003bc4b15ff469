package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "portfolio.v1.PortfolioService"

const (
	methodGetPositions           = "/" + ServiceName + "/GetPositions"
	methodComputePnlSummary      = "/" + ServiceName + "/ComputePnlSummary"
	methodRebuildTaxLots         = "/" + ServiceName + "/RebuildTaxLots"
	methodProcessCorporateAction = "/" + ServiceName + "/ProcessCorporateAction"
	methodMaterializeSnapshot    = "/" + ServiceName + "/MaterializeSnapshot"
)

// PortfolioServiceServer is the server API for PortfolioService
type PortfolioServiceServer interface {
	GetPositions(context.Context, *GetPositionsRequest) (*GetPositionsResponse, error)
	ComputePnlSummary(context.Context, *ComputePnlSummaryRequest) (*ComputePnlSummaryResponse, error)
	RebuildTaxLots(context.Context, *RebuildTaxLotsRequest) (*RebuildTaxLotsResponse, error)
	ProcessCorporateAction(context.Context, *ProcessCorporateActionRequest) (*ProcessCorporateActionResponse, error)
	MaterializeSnapshot(context.Context, *MaterializeSnapshotRequest) (*MaterializeSnapshotResponse, error)
}

// RegisterPortfolioServiceServer registers srv on s
func RegisterPortfolioServiceServer(s grpc.ServiceRegistrar, srv PortfolioServiceServer) {
	s.RegisterService(&PortfolioServiceDesc, srv)
}

// unary adapts a typed method to the grpc.MethodDesc handler shape
func unary[Req any, Resp any](
	fullMethod string,
	call func(PortfolioServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PortfolioServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PortfolioServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PortfolioServiceDesc is the grpc.ServiceDesc for PortfolioService
var PortfolioServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PortfolioServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetPositions",
			Handler:    unary(methodGetPositions, PortfolioServiceServer.GetPositions),
		},
		{
			MethodName: "ComputePnlSummary",
			Handler:    unary(methodComputePnlSummary, PortfolioServiceServer.ComputePnlSummary),
		},
		{
			MethodName: "RebuildTaxLots",
			Handler:    unary(methodRebuildTaxLots, PortfolioServiceServer.RebuildTaxLots),
		},
		{
			MethodName: "ProcessCorporateAction",
			Handler:    unary(methodProcessCorporateAction, PortfolioServiceServer.ProcessCorporateAction),
		},
		{
			MethodName: "MaterializeSnapshot",
			Handler:    unary(methodMaterializeSnapshot, PortfolioServiceServer.MaterializeSnapshot),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portfolio/v1/portfolio.proto",
}

// PortfolioServiceClient is the client API for PortfolioService
type PortfolioServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPortfolioServiceClient wraps a connection. Calls use the JSON codec.
func NewPortfolioServiceClient(cc grpc.ClientConnInterface) *PortfolioServiceClient {
	return &PortfolioServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PortfolioServiceClient) GetPositions(ctx context.Context, in *GetPositionsRequest, opts ...grpc.CallOption) (*GetPositionsResponse, error) {
	return invoke[GetPositionsResponse](ctx, c.cc, methodGetPositions, in, opts)
}

func (c *PortfolioServiceClient) ComputePnlSummary(ctx context.Context, in *ComputePnlSummaryRequest, opts ...grpc.CallOption) (*ComputePnlSummaryResponse, error) {
	return invoke[ComputePnlSummaryResponse](ctx, c.cc, methodComputePnlSummary, in, opts)
}

func (c *PortfolioServiceClient) RebuildTaxLots(ctx context.Context, in *RebuildTaxLotsRequest, opts ...grpc.CallOption) (*RebuildTaxLotsResponse, error) {
	return invoke[RebuildTaxLotsResponse](ctx, c.cc, methodRebuildTaxLots, in, opts)
}

func (c *PortfolioServiceClient) ProcessCorporateAction(ctx context.Context, in *ProcessCorporateActionRequest, opts ...grpc.CallOption) (*ProcessCorporateActionResponse, error) {
	return invoke[ProcessCorporateActionResponse](ctx, c.cc, methodProcessCorporateAction, in, opts)
}

func (c *PortfolioServiceClient) MaterializeSnapshot(ctx context.Context, in *MaterializeSnapshotRequest, opts ...grpc.CallOption) (*MaterializeSnapshotResponse, error) {
	return invoke[MaterializeSnapshotResponse](ctx, c.cc, methodMaterializeSnapshot, in, opts)
}
