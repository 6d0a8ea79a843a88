// Package crew 实现顺序执行的多智能体流水线：每个任务由一个角色化
// 智能体承担，工具观察与上游任务输出会注入提示词，经大模型推理得到
// 文本输出并传递给后续任务。
package crew
