package crew

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/knowledge"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/llm"
	"github.com/Streamweaver/CodebaseDocumentationCrew/pkg/logger"
)

// Tool 表示智能体可用的仓库观察能力，其输出会注入到任务提示词中。
type Tool interface {
	Name() string
	Observe(ctx context.Context) (string, error)
}

// Agent 描述一个角色化的智能体。构造之后不再修改。
type Agent struct {
	Role      string
	Goal      string
	Backstory string
	Tools     []Tool
}

// Task 描述流水线中的一个任务。Context 列出其上游任务，
// 上游任务的输出会作为上下文注入本任务的提示词。
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
	Context        []*Task
}

// TaskOutput 记录单个任务执行完毕后的输出。
type TaskOutput struct {
	Name       string
	Role       string
	Output     string
	TokensUsed int
	Duration   time.Duration
}

// Result 汇总一次完整流水线执行的产出。Raw 是末位任务的原始文本。
type Result struct {
	Raw         string
	TaskOutputs []TaskOutput
	TokensUsed  int
}

// StepCallback 在每个任务完成后被调用，用于向界面回显进度。
type StepCallback func(output TaskOutput)

// Crew 按声明顺序依次执行任务，把每个任务的文本输出传递给后续任务。
type Crew struct {
	name       string
	tasks      []*Task
	llmClient  llm.Client
	knowledge  knowledge.Provider
	llmTimeout time.Duration
	onStep     StepCallback
}

// Option 定义可选的 Crew 配置。
type Option func(*Crew)

// WithKnowledgeProvider 配置写作指南库，用于在写作任务前补充上下文。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(c *Crew) {
		c.knowledge = provider
	}
}

// WithLLMTimeout 设置单个任务调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(c *Crew) {
		if timeout <= 0 {
			c.llmTimeout = 0
			return
		}
		c.llmTimeout = timeout
	}
}

// WithStepCallback 注册任务完成回调。
func WithStepCallback(callback StepCallback) Option {
	return func(c *Crew) {
		c.onStep = callback
	}
}

// New 创建一个 Crew。任务顺序即执行顺序。
func New(name string, tasks []*Task, llmClient llm.Client, opts ...Option) (*Crew, error) {
	c := &Crew{
		name:      name,
		tasks:     tasks,
		llmClient: llmClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validate 检查任务编排是否构成一条严格的顺序流水线：
// 每个任务的上游必须是排在它之前的任务。
func (c *Crew) validate() error {
	if c.llmClient == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if len(c.tasks) == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "任务列表不能为空")
	}
	position := make(map[*Task]int, len(c.tasks))
	for idx, task := range c.tasks {
		if task == nil {
			return xerrors.New(xerrors.CodeInvalidArgument, "任务不能为空")
		}
		if task.Agent == nil {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("任务 %s 未绑定智能体", task.Name))
		}
		if strings.TrimSpace(task.Description) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("任务 %s 缺少描述", task.Name))
		}
		for _, upstream := range task.Context {
			if _, ok := position[upstream]; !ok {
				return xerrors.New(xerrors.CodeInvalidArgument,
					fmt.Sprintf("任务 %s 引用了未在其之前声明的上游任务", task.Name))
			}
		}
		position[task] = idx
	}
	return nil
}

// Kickoff 依次执行全部任务并返回末位任务的输出。任何任务失败都会
// 立即中止流水线，错误原样向上传播。
func (c *Crew) Kickoff(ctx context.Context) (*Result, error) {
	outputs := make(map[*Task]string, len(c.tasks))
	result := &Result{TaskOutputs: make([]TaskOutput, 0, len(c.tasks))}

	for _, task := range c.tasks {
		started := time.Now()
		output, tokens, err := c.executeTask(ctx, task, outputs)
		if err != nil {
			return nil, err
		}
		outputs[task] = output

		taskOutput := TaskOutput{
			Name:       task.Name,
			Role:       task.Agent.Role,
			Output:     output,
			TokensUsed: tokens,
			Duration:   time.Since(started),
		}
		result.TaskOutputs = append(result.TaskOutputs, taskOutput)
		result.TokensUsed += tokens
		result.Raw = output

		logger.L().Info("任务执行完成",
			slog.String("crew", c.name),
			slog.String("task", task.Name),
			slog.String("role", task.Agent.Role),
			slog.Int("tokens", tokens),
			slog.Duration("duration", taskOutput.Duration),
		)
		if c.onStep != nil {
			c.onStep(taskOutput)
		}
	}
	return result, nil
}

// executeTask 收集工具观察与上游输出，调用大模型完成单个任务。
func (c *Crew) executeTask(ctx context.Context, task *Task, outputs map[*Task]string) (string, int, error) {
	observations, err := c.collectObservations(ctx, task)
	if err != nil {
		return "", 0, xerrors.Wrap(xerrors.CodeExecutorFailure, err,
			fmt.Sprintf("任务 %s 收集工具观察失败", task.Name))
	}

	llmCtx := ctx
	if c.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, c.llmTimeout)
		defer cancel()
	}

	response, err := c.llmClient.Generate(llmCtx, llm.Request{
		System: buildSystemPrompt(task.Agent),
		Prompt: c.buildTaskPrompt(task, observations, outputs),
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", 0, xerrors.Wrap(xerrors.CodeTimeout, err,
				fmt.Sprintf("任务 %s 推理超时", task.Name))
		}
		return "", 0, xerrors.Wrap(xerrors.CodeExecutorFailure, err,
			fmt.Sprintf("任务 %s 推理失败", task.Name))
	}

	output := strings.TrimSpace(response.Text)
	if output == "" {
		return "", response.TokensUsed, xerrors.New(xerrors.CodeExecutorFailure,
			fmt.Sprintf("任务 %s 得到空输出", task.Name))
	}
	return output, response.TokensUsed, nil
}

// collectObservations 依次执行智能体的工具并汇总观察文本。
func (c *Crew) collectObservations(ctx context.Context, task *Task) ([]string, error) {
	if len(task.Agent.Tools) == 0 {
		return nil, nil
	}
	observations := make([]string, 0, len(task.Agent.Tools))
	for _, tool := range task.Agent.Tools {
		observation, err := tool.Observe(ctx)
		if err != nil {
			return nil, fmt.Errorf("工具 %s 执行失败: %w", tool.Name(), err)
		}
		if strings.TrimSpace(observation) == "" {
			continue
		}
		observations = append(observations, fmt.Sprintf("[%s]\n%s", tool.Name(), observation))
	}
	return observations, nil
}

// buildSystemPrompt 把智能体的角色设定渲染成系统提示词。
func buildSystemPrompt(agent *Agent) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("You are %s.\n\n", agent.Role))
	if goal := strings.TrimSpace(agent.Goal); goal != "" {
		builder.WriteString("Your goal: ")
		builder.WriteString(goal)
		builder.WriteString("\n\n")
	}
	if backstory := strings.TrimSpace(agent.Backstory); backstory != "" {
		builder.WriteString("Background: ")
		builder.WriteString(backstory)
		builder.WriteString("\n")
	}
	return builder.String()
}

// buildTaskPrompt 渲染任务提示词：任务描述、期望输出、上游上下文、
// 工具观察与写作指南依次拼接。
func (c *Crew) buildTaskPrompt(task *Task, observations []string, outputs map[*Task]string) string {
	var builder strings.Builder
	builder.WriteString("## Task\n")
	builder.WriteString(strings.TrimSpace(task.Description))
	builder.WriteString("\n")

	if expected := strings.TrimSpace(task.ExpectedOutput); expected != "" {
		builder.WriteString("\n## Expected Output\n")
		builder.WriteString(expected)
		builder.WriteString("\n")
	}

	if len(task.Context) > 0 {
		builder.WriteString("\n## Context from previous tasks\n")
		for _, upstream := range task.Context {
			output := strings.TrimSpace(outputs[upstream])
			if output == "" {
				continue
			}
			builder.WriteString(fmt.Sprintf("### Output of %q\n%s\n\n", upstream.Name, output))
		}
	}

	if len(observations) > 0 {
		builder.WriteString("\n## Tool observations\n")
		for _, observation := range observations {
			builder.WriteString(observation)
			builder.WriteString("\n")
		}
	}

	if c.knowledge != nil {
		snippets := c.knowledge.Query(task.Name, task.Agent.Role)
		if len(snippets) > 0 {
			builder.WriteString("\n## Style guide\n")
			for _, snippet := range snippets {
				builder.WriteString(fmt.Sprintf("- %s: %s\n", snippet.Title, snippet.Content))
			}
		}
	}

	builder.WriteString("\nComplete the task now. Respond with the deliverable only.")
	return builder.String()
}
