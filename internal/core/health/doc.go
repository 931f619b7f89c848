// Package health 提供后端连接健康监控与熔断状态机
//
// # 概述
//
// health 包观察每一次后端调用的结果，按滞回阈值把连接归类为
// Healthy / Degraded / Down，并在非健康状态下驱动后台恢复探测。
//
//   - Monitor: 状态机主体，串行化所有计数与状态变更
//   - Registry: 状态变更订阅，单个订阅者出错不影响其他订阅者
//   - recoveryProber: 非健康期间的周期探测，至多一个 ticker
//   - Guard / GuardValue: 带超时竞争的守护调用，结果回写状态机
//   - 链路覆盖层: LinkUp / LinkDown，与状态机正交，仅用于展示
//
// # 状态机
//
//	Healthy --(failures >= DegradedThreshold)--> Degraded
//	Healthy --(failures >= DownThreshold)------> Down
//	Degraded --(failures >= DownThreshold)-----> Down
//	any --(success)----------------------------> Healthy
//
// Degraded 之后继续失败不会重复触发 Degraded，但跨过 Down 阈值一定触发
// Down 事件：两种状态的探测节奏和展示不同。
//
// # 使用示例
//
//	monitor, err := health.NewMonitor(health.DefaultConfig(),
//	    health.WithProber(probes.NewHTTPProber("https://api.example.com/health")))
//	if err != nil {
//	    return err
//	}
//	defer monitor.Stop()
//
//	unsubscribe := monitor.OnStatusChange(func(c interfaces.StatusChange) {
//	    logger.Info("连接状态变更", "previous", c.Previous, "current", c.Current)
//	})
//	defer unsubscribe()
//
//	res := health.Guard(ctx, monitor, client.FetchRecords, 0)
//	if res.Err != nil {
//	    // 重试策略由调用方决定
//	}
//
// 守护调用只做超时竞争，不会取消被包装的操作：超时后操作仍可能完成，
// 其副作用不会被撤销，迟到的结果也不再计入状态机。
package health
