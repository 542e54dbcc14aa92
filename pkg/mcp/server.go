package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"image-crawler/pkg/config"
	"image-crawler/pkg/crawler"
)

const (
	serverName    = "image-crawler"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes image discovery and background downloads as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	service    *crawler.Service
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	service, err := crawler.NewService(cfg.AppConfig, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating crawler service: %w", err)
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		service:    service,
		jobManager: NewJobManager(),
	}

	s.registerTools()
	s.log.WithField("config", s.configSource()).Debug("MCP server configured")

	return s, nil
}

// configSource names where the effective configuration came from
func (s *Server) configSource() string {
	if s.cfg.ConfigPath == "" {
		return "built-in defaults"
	}
	return s.cfg.ConfigPath
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	discoverTool := mcp.NewTool("discover_images",
		mcp.WithDescription("Fetch a web page and list the images it references, largest first"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page URL to scan for <img> tags"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of images to return (default: all)"),
		),
	)
	s.mcpServer.AddTool(discoverTool, s.handleDiscoverImages)

	downloadTool := mcp.NewTool("download_images",
		mcp.WithDescription("Start a background download of images into an existing directory. Returns immediately with a job ID."),
		mcp.WithString("destination",
			mcp.Required(),
			mcp.Description("Existing directory the images are saved into"),
		),
		mcp.WithString("urls",
			mcp.Description("Image URLs separated by commas or whitespace"),
		),
		mcp.WithString("page_url",
			mcp.Description("Page to discover images on when urls is omitted"),
		),
		mcp.WithNumber("top",
			mcp.Description("With page_url: number of largest images to download (default: configured selection)"),
		),
		mcp.WithBoolean("all",
			mcp.Description("With page_url: download every discovered image"),
		),
		mcp.WithNumber("concurrency",
			mcp.Description("Simultaneous downloads for this job (default: configured concurrency)"),
		),
	)
	s.mcpServer.AddTool(downloadTool, s.handleDownloadImages)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the progress and failures of a download job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by download_images"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	listJobsTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List all download jobs started by this server"),
	)
	s.mcpServer.AddTool(listJobsTool, s.handleListJobs)

	s.log.Infof("Registered %d MCP tools", 4)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels unfinished jobs and releases the probe cache
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return s.service.Close()
}
