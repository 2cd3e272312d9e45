package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/claimscope/internal/app"
	"github.com/ternarybob/claimscope/internal/common"
)

func main() {
	configPath := os.Getenv("CLAIMSCOPE_CONFIG")
	if configPath == "" {
		configPath = "claimscope.toml"
	}

	// A missing default file falls back to defaults plus env overrides
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && os.Getenv("CLAIMSCOPE_CONFIG") == "" {
		configPath = ""
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries the MCP protocol; keep console logging minimal
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"claimscope",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)
	registerTools(mcpServer, application.AnalysisService, logger)

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

func registerTools(s *server.MCPServer, svc jobService, logger arbor.ILogger) {
	s.AddTool(createCreateJobTool(), handleCreateJob(svc, logger))
	s.AddTool(createGetJobTool(), handleGetJob(svc, logger))
	s.AddTool(createGetJobResultsTool(), handleGetJobResults(svc, logger))
	s.AddTool(createRunJobTool(), handleRunJob(svc, logger))
	s.AddTool(createListJobsTool(), handleListJobs(svc, logger))
	s.AddTool(createRunBatchSweepTool(), handleRunBatchSweep(svc, logger))
}
