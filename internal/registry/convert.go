package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/schema"
)

const (
	fieldName    = "name"
	fieldNetwork = "network"
	fieldAddress = "address"
	fieldBoundAt = "bound_at"
)

func toPBBinding(b schema.Binding) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldName:    b.Name,
		fieldNetwork: b.Endpoint.Network,
		fieldAddress: b.Endpoint.Address,
	}
	if !b.BoundAt.IsZero() {
		fields[fieldBoundAt] = b.BoundAt.UTC().Format(time.RFC3339Nano)
	}
	return structpb.NewStruct(fields)
}

func fromPBBinding(s *structpb.Struct) (schema.Binding, error) {
	if s == nil {
		return schema.Binding{}, errors.New("empty binding")
	}
	fields := s.GetFields()
	b := schema.Binding{
		Name: fields[fieldName].GetStringValue(),
		Endpoint: schema.Endpoint{
			Network: fields[fieldNetwork].GetStringValue(),
			Address: fields[fieldAddress].GetStringValue(),
		},
	}
	if raw := fields[fieldBoundAt].GetStringValue(); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return schema.Binding{}, fmt.Errorf("parse bound_at: %w", err)
		}
		b.BoundAt = ts
	}
	return b, nil
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, schema.ErrNotBound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, schema.ErrInvalidName), errors.Is(err, schema.ErrInvalidEndpoint):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// wrapRegistryError maps a failed registry call onto the error taxonomy: an
// unbound or invalid name is a lookup failure, an unreachable or unresponsive
// registry is a connectivity failure.
func wrapRegistryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *core.ComputeError
	if errors.As(err, &existing) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return core.NewComputeError(core.ErrorCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewComputeError(core.ErrorConnectivity, op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return core.NewComputeError(core.ErrorUnknown, op, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return &core.ComputeError{Kind: core.ErrorLookup, Op: op, Message: st.Message(), Err: fmt.Errorf("%w: %s", schema.ErrNotBound, st.Message())}
	case codes.InvalidArgument:
		return &core.ComputeError{Kind: core.ErrorLookup, Op: op, Message: st.Message(), Err: err}
	case codes.Unavailable, codes.DeadlineExceeded:
		return core.NewComputeError(core.ErrorConnectivity, op, err)
	case codes.Canceled:
		return core.NewComputeError(core.ErrorCanceled, op, err)
	default:
		return core.NewComputeError(core.ErrorUnknown, op, err)
	}
}
