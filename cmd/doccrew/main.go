package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/crew"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/knowledge"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/llm"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/output"
	"github.com/Streamweaver/CodebaseDocumentationCrew/pkg/logger"
)

// main 是一次性文档生成命令的入口：针对单个仓库执行完整流水线并落盘。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := generate(ctx); err != nil {
		log.Fatalf("doccrew 运行失败: %v", err)
	}
}

func generate(ctx context.Context) error {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "JSON 配置文件路径，留空时仅使用环境变量")
		repoPath   = flag.String("repo", "", "待分析仓库的根目录，覆盖配置中的 repo_path")
		fileLabel  = flag.String("label", "", "输出文件名中的标签，覆盖配置中的 file_label")
		blueprint  = flag.String("blueprint", "", "YAML 流水线蓝图路径，留空时使用内置三阶段流水线")
		outputDir  = flag.String("output", "", "文档输出目录，覆盖配置中的 output.dir")
	)
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if *repoPath != "" {
		cfg.Crew.RepoPath = *repoPath
	}
	if *fileLabel != "" {
		cfg.Crew.FileLabel = *fileLabel
	}
	if *blueprint != "" {
		cfg.Crew.Blueprint = *blueprint
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return err
	}

	opts := []crew.Option{
		crew.WithLLMTimeout(cfg.LLM.Timeout()),
		crew.WithStepCallback(func(out crew.TaskOutput) {
			fmt.Printf("[%s] %s 完成，耗时 %s\n", out.Name, out.Role, out.Duration.Round(time.Millisecond))
		}),
	}
	if cfg.Knowledge.Source != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
		if err != nil {
			return err
		}
		opts = append(opts, crew.WithKnowledgeProvider(provider))
	}

	var pipeline *crew.Crew
	if cfg.Crew.Blueprint != "" {
		bp, err := crew.LoadBlueprint(cfg.Crew.Blueprint)
		if err != nil {
			return err
		}
		pipeline, err = bp.Build(cfg.Crew, llmClient, opts...)
		if err != nil {
			return err
		}
	} else {
		pipeline, err = crew.NewDocumentationCrew(cfg.Crew, llmClient, opts...)
		if err != nil {
			return err
		}
	}

	writer, err := output.NewWriter(cfg.Output.Dir)
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := pipeline.Kickoff(ctx)
	if err != nil {
		return err
	}

	docPath, err := writer.Write(cfg.Crew.FileLabel, result.Raw)
	if err != nil {
		return err
	}

	fmt.Printf("文档已生成: %s\n", docPath)
	fmt.Printf("共 %d 个任务，消耗 %d tokens，耗时 %s\n",
		len(result.TaskOutputs), result.TokensUsed, time.Since(started).Round(time.Millisecond))
	return nil
}
