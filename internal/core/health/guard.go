package health

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dep2p/go-netguard/pkg/interfaces"
)

const tracerName = "github.com/dep2p/go-netguard/health"

// 守护调用结果标签
const (
	callResultOK       = "ok"
	callResultError    = "error"
	callResultTimeout  = "timeout"
	callResultCanceled = "canceled"
)

// ============================================================================
//                              守护调用
// ============================================================================

// Result 守护调用结果
type Result[T any] struct {
	Value T
	Err   error
}

// OK 调用是否成功
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Guard 在超时约束下执行 op，并把结果记入监控器
//
// timeout <= 0 时使用 Config.CallTimeout。超时只是竞速：op 不会被取消，
// 晚到的结果被丢弃，其副作用仍然生效。op 收到的是调用方的 ctx。
//
// 调用方 ctx 先结束时返回 ctx.Err()，不记录任何结果。
func Guard[T any](ctx context.Context, m *Monitor, op func(context.Context) (T, error), timeout time.Duration) Result[T] {
	if timeout <= 0 {
		timeout = m.config.CallTimeout
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "netguard.guarded_call",
		trace.WithAttributes(attribute.Int64("netguard.timeout_ms", timeout.Milliseconds())))
	defer span.End()

	// 计时器先于 op 创建，mock 时钟下 Add 一定能触发它
	timer := m.clock.Timer(timeout)
	defer timer.Stop()

	done := make(chan Result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result[T]{Err: fmt.Errorf("%w: %v", ErrOperationPanic, r)}
			}
		}()
		v, err := op(ctx)
		if err == nil {
			err = outcomeErr(v)
		}
		done <- Result[T]{Value: v, Err: err}
	}()

	var (
		res   Result[T]
		label string
	)
	select {
	case res = <-done:
		switch {
		case res.Err == nil:
			label = callResultOK
			m.RecordSuccess()
		case ctx.Err() != nil && errors.Is(res.Err, ctx.Err()):
			label = callResultCanceled
		default:
			label = callResultError
			m.RecordFailure()
		}
	case <-timer.C:
		label = callResultTimeout
		res = Result[T]{Err: &TimeoutError{After: timeout}}
		m.RecordFailure()
		logger.DebugContext(ctx, "守护调用超时", "timeout", timeout)
	case <-ctx.Done():
		label = callResultCanceled
		res = Result[T]{Err: ctx.Err()}
	}

	m.metrics.guardedCall(label)
	span.SetAttributes(attribute.String("netguard.result", label))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, label)
	}
	return res
}

// GuardValue 守护不会失败的操作
//
// 返回值实现 interfaces.Outcome 时仍按其 OutcomeErr 判定。
func GuardValue[T any](ctx context.Context, m *Monitor, op func(context.Context) T, timeout time.Duration) Result[T] {
	return Guard(ctx, m, func(ctx context.Context) (T, error) {
		return op(ctx), nil
	}, timeout)
}

// WithGuardedCall 非泛型形式的 Guard
func (m *Monitor) WithGuardedCall(ctx context.Context, op func(context.Context) (any, error), timeout time.Duration) Result[any] {
	return Guard(ctx, m, op, timeout)
}

// outcomeErr 提取自带结果的返回值中的错误；nil 指针视为无结果
func outcomeErr(v any) error {
	o, ok := v.(interfaces.Outcome)
	if !ok {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return o.OutcomeErr()
}
