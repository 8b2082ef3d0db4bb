// Package rpcapi implements the gRPC segmentation service: rule-chain
// previews over the customer population and single-customer evaluation.
//
// Messages travel with a JSON codec, so the service descriptor and client
// are written by hand rather than generated.
package rpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/sumitkumar2005/xeno-crm/internal/segment"
)

// Full method names.
const (
	ServiceName    = "xeno.segment.v1.SegmentService"
	PreviewMethod  = "/" + ServiceName + "/Preview"
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
)

// PreviewRequest asks how many customers a rule chain selects.
type PreviewRequest struct {
	Rules []segment.Condition `json:"rules"`
}

// CustomerSummary is the preview view of a customer.
type CustomerSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	LifetimeSpend string     `json:"lifetime_spend"`
	Visits        int        `json:"visits"`
	LastOrderDate *time.Time `json:"last_order_date,omitempty"`
}

type PreviewResponse struct {
	TotalCustomers   int               `json:"total_customers"`
	MatchedCount     int               `json:"matched_count"`
	MatchedCustomers []CustomerSummary `json:"matched_customers"`
}

// EvaluateRequest asks whether one customer satisfies a rule chain.
type EvaluateRequest struct {
	CustomerID string              `json:"customer_id"`
	Rules      []segment.Condition `json:"rules"`
}

type EvaluateResponse struct {
	Matched bool `json:"matched"`
}

// SegmentServer is the server API of the segment service.
type SegmentServer interface {
	Preview(context.Context, *PreviewRequest) (*PreviewResponse, error)
	Evaluate(context.Context, *EvaluateRequest) (*EvaluateResponse, error)
}

// ServiceDesc describes the segment service to grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SegmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Preview", Handler: previewHandler},
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "xeno/segment/v1/segment.json",
}

func previewHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PreviewRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SegmentServer).Preview(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PreviewMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SegmentServer).Preview(ctx, req.(*PreviewRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EvaluateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SegmentServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SegmentServer).Evaluate(ctx, req.(*EvaluateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the segment service over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Preview(ctx context.Context, in *PreviewRequest, opts ...grpc.CallOption) (*PreviewResponse, error) {
	out := new(PreviewResponse)
	if err := c.cc.Invoke(ctx, PreviewMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Evaluate(ctx context.Context, in *EvaluateRequest, opts ...grpc.CallOption) (*EvaluateResponse, error) {
	out := new(EvaluateResponse)
	if err := c.cc.Invoke(ctx, EvaluateMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}
