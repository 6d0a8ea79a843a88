package run

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/crew"
	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/knowledge"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/llm"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/output"
)

// 写入存储的摘要截取长度。
const summaryLimit = 512

// CrewExecutor 把一次运行转换成完整的文档生成流水线：
// 组建 Crew、执行全部任务并把最终文档落盘。
type CrewExecutor struct {
	baseCfg    config.CrewConfig
	llmClient  llm.Client
	writer     *output.Writer
	knowledge  knowledge.Provider
	llmTimeout time.Duration
}

// ExecutorOption 定义可选配置。
type ExecutorOption func(*CrewExecutor)

// WithExecutorKnowledge 配置写作指南库。
func WithExecutorKnowledge(provider knowledge.Provider) ExecutorOption {
	return func(e *CrewExecutor) {
		e.knowledge = provider
	}
}

// WithExecutorLLMTimeout 配置单任务推理超时。
func WithExecutorLLMTimeout(timeout time.Duration) ExecutorOption {
	return func(e *CrewExecutor) {
		e.llmTimeout = timeout
	}
}

// NewCrewExecutor 构造 CrewExecutor。baseCfg 提供目录过滤与体积上限
// 等默认参数，仓库路径与文件标签由每次运行自带。
func NewCrewExecutor(baseCfg config.CrewConfig, llmClient llm.Client, writer *output.Writer, opts ...ExecutorOption) (*CrewExecutor, error) {
	if llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if writer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置输出写入器")
	}
	e := &CrewExecutor{
		baseCfg:   baseCfg,
		llmClient: llmClient,
		writer:    writer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Execute 实现 Executor 接口。任何任务失败都不会产生输出文件。
func (e *CrewExecutor) Execute(ctx context.Context, r *Run) (*DocumentResult, error) {
	if r == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "run 不能为空")
	}

	cfg := e.baseCfg
	cfg.RepoPath = r.RepoPath
	cfg.FileLabel = r.FileLabel

	crewOpts := []crew.Option{}
	if e.knowledge != nil {
		crewOpts = append(crewOpts, crew.WithKnowledgeProvider(e.knowledge))
	}
	if e.llmTimeout > 0 {
		crewOpts = append(crewOpts, crew.WithLLMTimeout(e.llmTimeout))
	}

	var pipeline *crew.Crew
	var err error
	if strings.TrimSpace(r.Blueprint) != "" {
		var blueprint *crew.Blueprint
		blueprint, err = crew.LoadBlueprint(r.Blueprint)
		if err != nil {
			return nil, err
		}
		pipeline, err = blueprint.Build(cfg, e.llmClient, crewOpts...)
	} else {
		pipeline, err = crew.NewDocumentationCrew(cfg, e.llmClient, crewOpts...)
	}
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := pipeline.Kickoff(ctx)
	if err != nil {
		return nil, err
	}

	path, err := e.writer.Write(r.FileLabel, result.Raw)
	if err != nil {
		return nil, err
	}

	return &DocumentResult{
		DocumentPath: path,
		Summary:      excerpt(result.Raw, summaryLimit),
		TokensUsed:   result.TokensUsed,
		TaskCount:    len(result.TaskOutputs),
		DurationMS:   time.Since(started).Milliseconds(),
	}, nil
}

func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	// 避免截断多字节字符。
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

var _ Executor = (*CrewExecutor)(nil)
