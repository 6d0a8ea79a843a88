package crew

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/llm"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/tools"
)

// Blueprint 描述一份 YAML 编排文件：自定义的智能体与任务流水线。
type Blueprint struct {
	Name   string           `yaml:"name"`
	Agents []AgentBlueprint `yaml:"agents"`
	Tasks  []TaskBlueprint  `yaml:"tasks"`
}

// AgentBlueprint 是 YAML 中的智能体定义。Tools 取值见 buildTool。
type AgentBlueprint struct {
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
}

// TaskBlueprint 是 YAML 中的任务定义。Context 按任务名引用上游任务。
type TaskBlueprint struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	ExpectedOutput string   `yaml:"expected_output"`
	Agent          string   `yaml:"agent"`
	Context        []string `yaml:"context"`
}

// LoadBlueprint 从 YAML 文件解析编排定义。
func LoadBlueprint(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "读取编排文件失败")
	}
	var blueprint Blueprint
	if err := yaml.Unmarshal(data, &blueprint); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析编排文件失败")
	}
	if err := blueprint.Validate(); err != nil {
		return nil, err
	}
	return &blueprint, nil
}

// Validate 检查编排定义的完整性：智能体名唯一、任务引用有效、
// 上游任务必须先于当前任务声明。
func (b *Blueprint) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "编排缺少名称")
	}
	if len(b.Agents) == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "编排至少需要一个智能体")
	}
	if len(b.Tasks) == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "编排至少需要一个任务")
	}

	agents := make(map[string]bool, len(b.Agents))
	for _, agent := range b.Agents {
		name := strings.TrimSpace(agent.Name)
		if name == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "智能体缺少名称")
		}
		if agents[name] {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("智能体 %s 重复定义", name))
		}
		if strings.TrimSpace(agent.Role) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("智能体 %s 缺少角色", name))
		}
		for _, tool := range agent.Tools {
			if !knownTools[tool] {
				return xerrors.New(xerrors.CodeInvalidArgument,
					fmt.Sprintf("智能体 %s 引用了未知工具 %s", name, tool))
			}
		}
		agents[name] = true
	}

	seen := make(map[string]bool, len(b.Tasks))
	for _, task := range b.Tasks {
		name := strings.TrimSpace(task.Name)
		if name == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "任务缺少名称")
		}
		if seen[name] {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("任务 %s 重复定义", name))
		}
		if !agents[task.Agent] {
			return xerrors.New(xerrors.CodeInvalidArgument,
				fmt.Sprintf("任务 %s 引用了未定义的智能体 %s", name, task.Agent))
		}
		for _, upstream := range task.Context {
			if !seen[upstream] {
				return xerrors.New(xerrors.CodeInvalidArgument,
					fmt.Sprintf("任务 %s 引用了未在其之前声明的上游任务 %s", name, upstream))
			}
		}
		seen[name] = true
	}
	return nil
}

// 编排文件中可引用的工具名。
const (
	ToolDirectoryList = "directory_list"
	ToolFileProbe     = "file_probe"
)

var knownTools = map[string]bool{
	ToolDirectoryList: true,
	ToolFileProbe:     true,
}

// Build 按编排定义实例化一个 Crew，仓库访问参数来自 cfg。
func (b *Blueprint) Build(cfg config.CrewConfig, llmClient llm.Client, opts ...Option) (*Crew, error) {
	directory, err := tools.NewDirectoryReader(cfg.RepoPath, cfg.IgnoreDirs, cfg.MaxListFiles)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化目录读取器失败")
	}
	files, err := tools.NewFileReader(cfg.RepoPath, cfg.MaxFileBytes)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化文件读取器失败")
	}

	toolset := map[string]Tool{
		ToolDirectoryList: tools.NewDirectoryListTool(directory),
		ToolFileProbe:     tools.NewFileProbeTool(directory, files, defaultProbeFiles, defaultExcerptBytes),
	}

	agents := make(map[string]*Agent, len(b.Agents))
	for _, spec := range b.Agents {
		agent := &Agent{
			Role:      spec.Role,
			Goal:      spec.Goal,
			Backstory: spec.Backstory,
		}
		for _, name := range spec.Tools {
			agent.Tools = append(agent.Tools, toolset[name])
		}
		agents[spec.Name] = agent
	}

	byName := make(map[string]*Task, len(b.Tasks))
	ordered := make([]*Task, 0, len(b.Tasks))
	for _, spec := range b.Tasks {
		task := &Task{
			Name:           spec.Name,
			Description:    spec.Description,
			ExpectedOutput: spec.ExpectedOutput,
			Agent:          agents[spec.Agent],
		}
		for _, upstream := range spec.Context {
			task.Context = append(task.Context, byName[upstream])
		}
		byName[spec.Name] = task
		ordered = append(ordered, task)
	}

	return New(b.Name, ordered, llmClient, opts...)
}
