// Package run 管理文档生成运行的排队、执行与状态追踪：
// Store 持久化运行状态，Queue 负责投递，Processor 消费队列并通过
// Executor 驱动完整的文档生成流水线。
package run
