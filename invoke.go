package computeengine

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/internal/computegrpc"
	"pkt.systems/computeengine/internal/logx"
	"pkt.systems/computeengine/internal/registry"
	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

// ResolveOptions controls the handle returned by Resolve.
type ResolveOptions struct {
	// CallTimeout bounds each call on the handle. Zero means no timeout.
	CallTimeout time.Duration
}

// Publish makes the service at ep resolvable under name, replacing any prior binding.
func Publish(ctx context.Context, reg registry.Registry, name string, ep schema.Endpoint) error {
	if reg == nil {
		return core.NewComputeError(core.ErrorConnectivity, "publish", fmt.Errorf("registry is nil"))
	}
	if err := reg.Rebind(ctx, name, ep); err != nil {
		return err
	}
	pslog.Ctx(ctx).Debug("service published", "service", name, "endpoint", ep.String())
	return nil
}

// Resolve looks name up in reg and returns a handle to the service bound there.
// An unbound name is a lookup error; an unreachable registry is a connectivity
// error. The caller closes the handle.
func Resolve(ctx context.Context, reg registry.Registry, name string, opts ResolveOptions) (*computegrpc.Client, error) {
	if reg == nil {
		return nil, core.NewComputeError(core.ErrorConnectivity, "resolve", fmt.Errorf("registry is nil"))
	}
	binding, err := reg.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	client, err := computegrpc.Dial(ctx, binding.Endpoint, computegrpc.ClientOptions{CallTimeout: opts.CallTimeout})
	if err != nil {
		return nil, err
	}
	logx.WithService(pslog.Ctx(ctx), name, binding.Endpoint).Debug("service resolved")
	return client, nil
}

// InvokeOptions controls a single Invoke.
type InvokeOptions struct {
	// CallTimeout bounds the remote call. Zero means the call blocks until the
	// server answers or ctx ends.
	CallTimeout time.Duration
	// Call receives the lifecycle of this invocation when set. It must be idle.
	Call *core.Call
}

// Invoke resolves name in reg, runs task on the service bound there and
// returns its result. There are no retries: the first failure is returned.
func Invoke[R any](ctx context.Context, reg registry.Registry, name string, task core.Task[R], opts InvokeOptions) (R, error) {
	var zero R
	if ctx == nil {
		ctx = context.Background()
	}
	if task == nil {
		return zero, core.NewComputeError(core.ErrorSerialization, "invoke", fmt.Errorf("task is nil"))
	}
	call := opts.Call
	if call == nil {
		call = core.NewCall(core.CallIDFromContext(ctx))
	}
	ctx = core.ContextWithCallID(ctx, call.ID)
	ctx = logx.ContextWithCall(ctx, call.ID)
	log := pslog.Ctx(ctx).With("service", name, "task_kind", string(task.Kind()))

	fail := func(err error) (R, error) {
		_ = call.Fail(err)
		log.Warn("invoke failed", "state", string(call.State()), "error_kind", string(core.KindOf(err)), "err", err, "elapsed", call.Elapsed())
		return zero, err
	}

	if err := call.Resolving(); err != nil {
		return zero, err
	}
	client, err := Resolve(ctx, reg, name, ResolveOptions{CallTimeout: opts.CallTimeout})
	if err != nil {
		return fail(err)
	}
	defer client.Close()

	if err := call.Invoking(); err != nil {
		return zero, err
	}
	log.Debug("invoke start", "endpoint", client.Endpoint().String())
	result, err := core.ExecuteTask(ctx, client, task)
	if err != nil {
		return fail(err)
	}
	_ = call.Succeed()
	log.Info("invoke done", "elapsed", call.Elapsed())
	return result, nil
}
