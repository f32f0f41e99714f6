package computegrpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

const (
	errorDomain = "computeengine.pkt.systems"
	typeURLBase = "type.pkt.systems/computeengine.task/"

	reasonTaskFailed    = "TASK_FAILED"
	reasonSerialization = "SERIALIZATION"
	metaTaskKind        = "task_kind"
)

func toPBEnvelope(env core.Envelope) *anypb.Any {
	return &anypb.Any{TypeUrl: typeURLBase + string(env.Kind), Value: env.Payload}
}

func fromPBEnvelope(msg *anypb.Any) (core.Envelope, error) {
	if msg == nil {
		return core.Envelope{}, errors.New("empty envelope")
	}
	kind, ok := strings.CutPrefix(msg.GetTypeUrl(), typeURLBase)
	if !ok || kind == "" {
		return core.Envelope{}, fmt.Errorf("unsupported type url %q", msg.GetTypeUrl())
	}
	return core.Envelope{Kind: schema.TaskKind(kind), Payload: msg.GetValue()}, nil
}

// toStatus converts a compute service failure into a gRPC status carrying
// enough detail for the client to rebuild the classification.
func toStatus(err error) error {
	var ce *core.ComputeError
	if !errors.As(err, &ce) {
		return status.Error(codes.Internal, err.Error())
	}
	var code codes.Code
	var reason string
	switch ce.Kind {
	case core.ErrorRemoteExecution:
		code, reason = codes.Aborted, reasonTaskFailed
	case core.ErrorSerialization:
		code, reason = codes.InvalidArgument, reasonSerialization
	case core.ErrorCanceled:
		return status.Error(codes.Canceled, ce.Error())
	case core.ErrorTimeout:
		return status.Error(codes.DeadlineExceeded, ce.Error())
	default:
		return status.Error(codes.Internal, ce.Error())
	}
	message := ce.Message
	if message == "" && ce.Err != nil {
		message = ce.Err.Error()
	}
	st := status.New(code, message)
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   errorDomain,
		Metadata: map[string]string{metaTaskKind: string(ce.TaskKind)},
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// wrapCallError maps a failed ExecuteTask call back onto the error taxonomy.
func wrapCallError(op string, err error) error {
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
		return core.NewComputeError(core.ErrorTimeout, op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return core.NewComputeError(core.ErrorUnknown, op, err)
	}
	info := errorInfo(st)
	switch st.Code() {
	case codes.Aborted:
		if info != nil && info.GetReason() == reasonTaskFailed {
			return &core.ComputeError{
				Kind:     core.ErrorRemoteExecution,
				Op:       op,
				TaskKind: schema.TaskKind(info.GetMetadata()[metaTaskKind]),
				Message:  st.Message(),
				Err:      err,
			}
		}
		return core.NewComputeError(core.ErrorUnknown, op, err)
	case codes.InvalidArgument:
		ce := &core.ComputeError{Kind: core.ErrorSerialization, Op: op, Message: st.Message(), Err: err}
		if info != nil {
			ce.TaskKind = schema.TaskKind(info.GetMetadata()[metaTaskKind])
		}
		return ce
	case codes.Unavailable:
		return core.NewComputeError(core.ErrorConnectivity, op, err)
	case codes.DeadlineExceeded:
		return core.NewComputeError(core.ErrorTimeout, op, err)
	case codes.Canceled:
		return core.NewComputeError(core.ErrorCanceled, op, err)
	default:
		return core.NewComputeError(core.ErrorUnknown, op, err)
	}
}

func errorInfo(st *status.Status) *errdetails.ErrorInfo {
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return info
		}
	}
	return nil
}

func logGRPCError(log pslog.Logger, msg string, err error) {
	if log == nil || err == nil {
		return
	}
	if st, ok := status.FromError(err); ok {
		log.Warn(msg, "err", err, "code", st.Code().String(), "message", st.Message())
		return
	}
	log.Warn(msg, "err", err)
}
