// Package netguard 提供后端连接健康监控与熔断状态机
//
// netguard 观察每一次远程调用的结果，按连续失败次数把连接状态划分为
// Healthy、Degraded、Down 三级，非健康时在后台周期探测，探测成功即恢复。
// 守护调用包装器为每次调用加上超时，并把结果回灌到状态机。
//
// # 快速开始
//
//	import "github.com/dep2p/go-netguard"
//
//	monitor, err := netguard.New(
//	    netguard.WithProber(netguard.ProberFunc(ping)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer monitor.Stop()
//
//	unsubscribe := monitor.OnStatusChange(func(c netguard.StatusChange) {
//	    fmt.Println(c.Previous, "->", c.Current)
//	})
//	defer unsubscribe()
//
//	res := netguard.Guard(ctx, monitor, func(ctx context.Context) (*Reply, error) {
//	    return client.Call(ctx, req)
//	}, 0)
//	if errors.Is(res.Err, netguard.ErrTimeout) {
//	    // 超时已计为一次失败
//	}
//
// # 状态转换
//
//	Healthy  --连续失败 >= DegradedThreshold-->  Degraded
//	Degraded --连续失败 >= DownThreshold-->      Down
//	任意状态 --一次成功（调用或探测）-->          Healthy
//
// 状态机本身从不重试；失败的调用原样返回给调用方。
//
// # 链路覆盖层
//
// LinkDown/LinkUp 报告本机网络链路的有无。链路断开时 EffectiveStatus
// 返回 offline，但不修改失败计数；链路恢复时若状态非健康，立即触发一次探测。
package netguard
