// Package lib 包含与监控组件无关的基础设施工具库
//
//   - log: 基于 log/slog 的组件日志封装
package lib
