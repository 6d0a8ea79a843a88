package crew

import (
	"fmt"
	"strings"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/llm"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/tools"
)

// 文件探针的默认参数：最多读取多少个文件、每个文件截取多少字节。
const (
	defaultProbeFiles   = 12
	defaultExcerptBytes = 8 * 1024
)

// NewDocumentationCrew 构建标准的代码文档流水线：
// 仓库分析员 -> 代码评审员 -> 文档撰写员。
func NewDocumentationCrew(cfg config.CrewConfig, llmClient llm.Client, opts ...Option) (*Crew, error) {
	if strings.TrimSpace(cfg.RepoPath) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "仓库路径不能为空")
	}

	directory, err := tools.NewDirectoryReader(cfg.RepoPath, cfg.IgnoreDirs, cfg.MaxListFiles)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化目录读取器失败")
	}
	files, err := tools.NewFileReader(cfg.RepoPath, cfg.MaxFileBytes)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化文件读取器失败")
	}

	listTool := tools.NewDirectoryListTool(directory)
	probeTool := tools.NewFileProbeTool(directory, files, defaultProbeFiles, defaultExcerptBytes)

	analyzer := &Agent{
		Role: "Repository Analyzer",
		Goal: "Conduct an exhaustive analysis of the codebase structure, identifying all key " +
			"components, dependencies, and architectural patterns while providing a detailed " +
			"map of the project's organization.",
		Backstory: "You are a veteran software architect with decades of experience in dissecting " +
			"complex codebases across various industries. Your keen eye for design patterns " +
			"and ability to quickly grasp intricate system interactions have made you the " +
			"go-to expert for understanding large-scale software projects. You've developed a " +
			"proprietary method for creating visual and textual representations of code " +
			"structures that even novice developers can understand. Your analysis forms the " +
			"foundation upon which all other documentation is built.",
		Tools: []Tool{listTool, probeTool},
	}

	reviewer := &Agent{
		Role: "Code Reviewer",
		Goal: "Perform a meticulous review of all code components, uncovering and documenting " +
			"every feature, function, class, and their interactions while assessing code quality, " +
			"performance implications, and adherence to best practices.",
		Backstory: "As a renowned code review specialist, you've honed your skills through years of " +
			"contributing to open-source projects and leading development teams at top tech " +
			"companies. Your extraordinary ability to understand code at both micro and macro " +
			"levels allows you to provide insights that go beyond mere functionality. You're " +
			"known for your comprehensive reviews that not only explain what the code does but " +
			"why it's structured that way, potential optimizations, and how it fits into the larger " +
			"system architecture. Your analyses have helped countless teams improve their codebases " +
			"and onboard new developers efficiently.",
		Tools: []Tool{probeTool},
	}

	writer := &Agent{
		Role: "Documentation Writer",
		Goal: "Translate complex software functionality and architecture into clear, concise, " +
			"and well-structured documentation that is easily understood by developers of all skill levels.",
		Backstory: "With a unique background in both software engineering and technical writing, you've " +
			"become the bridge between complex code and human understanding. Your documentation has " +
			"been praised across the industry for its clarity, completeness, and ability to make even " +
			"the most intricate systems accessible. You've developed a knack for anticipating questions " +
			"developers might have and addressing them proactively in your writing. Your work has been " +
			"used as a benchmark for documentation best practices in numerous tech companies and " +
			"open-source projects.",
	}

	analyzeTask := &Task{
		Name: "analyze_repo_structure",
		Description: fmt.Sprintf(
			"Conduct a thorough analysis of the repository structure at %s. Your task is to:\n"+
				"1. Map out the complete directory structure, noting the purpose of each folder.\n"+
				"2. Identify all key files, including source code, configuration files, and assets.\n"+
				"3. Detect any design patterns evident in the file organization.\n"+
				"4. Analyze naming conventions used throughout the project.\n"+
				"5. Identify any modular or microservice architecture if present.\n"+
				"6. Note any deviation from standard project structures for the main programming language(s) used.\n"+
				"7. Highlight any build, test, or deployment scripts.\n"+
				"8. Identify documentation files or folders.\n"+
				"9. The following directories are excluded from your analysis: %s.",
			directory.Root(), strings.Join(cfg.IgnoreDirs, ", ")),
		ExpectedOutput: "Provide a detailed report on the repository structure that includes:\n" +
			"1. A hierarchical representation of the directory structure with descriptions for each significant folder.\n" +
			"2. A list of key files with brief descriptions of their purposes.\n" +
			"3. An analysis of the overall architectural approach evident from the file organization.\n" +
			"4. Insights into the project's adherence to or deviation from standard practices.\n" +
			"5. Identification of any missing crucial components or folders.\n" +
			"6. Recommendations for improving the repository structure if applicable.\n" +
			"7. A summary of the build and deployment setup based on relevant scripts or configuration files found.",
		Agent: analyzer,
	}

	reviewTask := &Task{
		Name: "review_code_components",
		Description: "Based on the repository analysis, perform a comprehensive review of the main code components. Your task involves:\n" +
			"1. Identifying and describing key features and functionalities of the project.\n" +
			"2. Analyzing important classes and functions, noting their purposes and interactions.\n" +
			"3. Recognizing and explaining design patterns and architectural decisions.\n" +
			"4. Evaluating the code quality, including readability, modularity, and adherence to best practices.\n" +
			"5. Assessing error handling and logging mechanisms.\n" +
			"6. Identifying any performance optimizations or scalability considerations.\n" +
			"7. Noting the use of external libraries, APIs, or services and their integration.\n" +
			"8. Analyzing any database schemas or data models used.\n" +
			"9. Reviewing test coverage and testing strategies employed.\n" +
			"10. Identifying potential areas for improvement or refactoring.",
		ExpectedOutput: "Deliver a comprehensive analysis of the codebase that includes:\n" +
			"1. An overview of the main features and functionalities, explaining how they're implemented.\n" +
			"2. Detailed descriptions of critical classes and functions, including their roles, inputs, outputs, and key algorithms.\n" +
			"3. A catalog of design patterns and architectural decisions, with explanations of their benefits and trade-offs.\n" +
			"4. An assessment of code quality, highlighting areas of excellence and suggestions for improvement.\n" +
			"5. An analysis of error handling and logging strategies.\n" +
			"6. Insights into performance considerations and how they're addressed in the code.\n" +
			"7. A list of key external dependencies, explaining their purpose and integration points.\n" +
			"8. An overview of data models or database schemas used.\n" +
			"9. An evaluation of the testing approach and coverage.\n" +
			"10. Recommendations for code improvements, optimizations, or architectural refinements.",
		Agent:   reviewer,
		Context: []*Task{analyzeTask},
	}

	writeTask := &Task{
		Name: "write_documentation",
		Description: "Create comprehensive documentation for the codebase based on the repository analysis and code review. Your task is to:\n" +
			"1. Write an executive summary of the project, its purpose, and its main features.\n" +
			"2. Detail the overall architecture and design philosophy of the project.\n" +
			"3. Provide an in-depth explanation of each major component, module, or service.\n" +
			"4. Document all public APIs, including function signatures, parameters, return values, and usage examples.\n" +
			"5. Explain the data flow and interactions between different parts of the system.\n" +
			"6. Describe the project's approach to common concerns like authentication, logging, and error handling.\n" +
			"7. Detail any algorithms or complex business logic implemented in the code.\n" +
			"8. Provide a guide on how to set up the development environment.\n" +
			"9. Include instructions for building, testing, and deploying the project.\n" +
			"10. Document any configuration options and environment variables.\n" +
			"11. Explain how to extend or modify key functionalities.\n" +
			"12. Include a troubleshooting section for common issues.\n" +
			"13. If applicable, provide performance benchmarks or scalability information.",
		ExpectedOutput: "Deliver a beautifully formatted markdown file that includes the following sections:\n" +
			"1. Table of Contents: A comprehensive, clickable guide to all sections of the document.\n" +
			"2. README: An overview of the project, including its purpose, main features, and a quick start guide.\n" +
			"3. CONTRIBUTING: Guidelines on how to contribute to the project.\n" +
			"4. ARCHITECTURE: A detailed explanation of the overall system design and component interactions.\n" +
			"5. API Documentation: Comprehensive documentation for all public interfaces.\n" +
			"6. CONFIGURATION: A guide explaining all configurable options and environment variables.\n" +
			"7. DEPLOYMENT: Step-by-step instructions for deploying the project in different environments.\n" +
			"8. DEVELOPMENT: Instructions on setting up the development environment and workflow.\n" +
			"9. TESTING: Details on the testing strategy and how to run tests.\n" +
			"10. TROUBLESHOOTING: A guide addressing common issues and their solutions.\n" +
			"11. PERFORMANCE and SCALING (if applicable): Benchmarks and best practices for performance and scalability.\n" +
			"12. Additional specialized sections relevant to the specific project (e.g., SECURITY, COMPLIANCE).\n\n" +
			"Each section should be clearly demarcated with appropriate headings and be formatted for maximum " +
			"readability and navigability. The document should make effective use of markdown features such as " +
			"code blocks, tables, lists, and internal links to create a cohesive and user-friendly documentation resource.",
		Agent:   writer,
		Context: []*Task{analyzeTask, reviewTask},
	}

	return New("code_documentation", []*Task{analyzeTask, reviewTask, writeTask}, llmClient, opts...)
}
