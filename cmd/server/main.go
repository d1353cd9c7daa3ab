package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"gopkg.in/yaml.v3"

	"github.com/sahilpatel/media-summarizer/internal/broadcast"
	"github.com/sahilpatel/media-summarizer/internal/cleanup"
	"github.com/sahilpatel/media-summarizer/internal/handlers"
	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/media"
	"github.com/sahilpatel/media-summarizer/internal/pipeline"
	"github.com/sahilpatel/media-summarizer/internal/ratelimit"
	"github.com/sahilpatel/media-summarizer/internal/storage"
	"github.com/sahilpatel/media-summarizer/internal/summarize"
	"github.com/sahilpatel/media-summarizer/internal/transcription"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Admission struct {
		Create struct {
			Limit         int `yaml:"limit"`
			WindowMinutes int `yaml:"window_minutes"`
		} `yaml:"create"`
		Query struct {
			Limit         int `yaml:"limit"`
			WindowMinutes int `yaml:"window_minutes"`
		} `yaml:"query"`
	} `yaml:"admission"`

	Storage struct {
		TempDir  string `yaml:"temp_dir"`
		Database string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		TTLMinutes      int `yaml:"ttl_minutes"`
	} `yaml:"cleanup"`

	Download struct {
		Binary string `yaml:"binary"`
	} `yaml:"download"`

	Whisper struct {
		Python string `yaml:"python"`
		Script string `yaml:"script"`
		Model  string `yaml:"model"`
	} `yaml:"whisper"`

	Summarizer struct {
		URL   string `yaml:"url"`
		Model string `yaml:"model"`
	} `yaml:"summarizer"`
}

func main() {
	// Load configuration
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(config.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(config.Storage.Database), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	// Initialize components
	log.Println("Initializing components...")

	registry := jobs.NewRegistry()
	hub := broadcast.NewHub()

	archive, err := storage.NewArchive(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize archive: %v", err)
	}
	defer archive.Close()

	// Stage adapters
	downloader := media.NewDownloader(config.Download.Binary)
	transcriber := transcription.NewWhisper(config.Whisper.Python, config.Whisper.Script, config.Whisper.Model)
	summarizer := summarize.NewClient(config.Summarizer.URL, config.Summarizer.Model)

	runner := pipeline.NewRunner(registry, hub, archive, downloader, transcriber, summarizer, config.Storage.TempDir)

	// Admission control: job creation is bounded much tighter than reads.
	createLimiter := ratelimit.NewLimiter(
		config.Admission.Create.Limit,
		time.Duration(config.Admission.Create.WindowMinutes)*time.Minute,
	)
	queryLimiter := ratelimit.NewLimiter(
		config.Admission.Query.Limit,
		time.Duration(config.Admission.Query.WindowMinutes)*time.Minute,
	)

	// Janitor
	janitor := cleanup.NewJanitor(
		registry,
		[]*ratelimit.Limiter{createLimiter, queryLimiter},
		config.Storage.TempDir,
		time.Duration(config.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(config.Cleanup.TTLMinutes)*time.Minute,
	)
	janitor.Start()
	defer janitor.Stop()

	// Create Fiber app
	app := fiber.New()

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	jobsHandler := handlers.NewJobsHandler(registry, runner)
	eventsHandler := handlers.NewEventsHandler(registry, hub)
	wsHandler := handlers.NewWSHandler(registry, hub)
	briefsHandler := handlers.NewBriefsHandler(archive)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
			"jobs":    registry.Stats(),
			"expired": janitor.Removed(),
		})
	})

	app.Post("/api/jobs", ratelimit.Middleware(createLimiter), jobsHandler.Create)
	app.Get("/api/jobs/:id", ratelimit.Middleware(queryLimiter), jobsHandler.Get)
	app.Post("/api/jobs/:id/cancel", ratelimit.Middleware(queryLimiter), jobsHandler.Cancel)
	app.Get("/api/jobs/:id/events", eventsHandler.Handle)

	// WebSocket route
	app.Get("/ws", websocket.New(wsHandler.Handle))

	app.Get("/api/briefs", ratelimit.Middleware(queryLimiter), briefsHandler.List)
	app.Get("/api/briefs/:id", ratelimit.Middleware(queryLimiter), briefsHandler.Get)

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /api/jobs             - Create summarization job")
	log.Println("   GET  /api/jobs/:id         - Job snapshot")
	log.Println("   POST /api/jobs/:id/cancel  - Request cancellation")
	log.Println("   GET  /api/jobs/:id/events  - SSE progress feed")
	log.Println("   GET  /ws                   - WebSocket progress push")
	log.Println("   GET  /api/briefs           - Archived briefs")
	log.Println("   GET  /logs                 - View server logs")
	log.Println("   GET  /health               - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// Append new line
	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// Return copy of slice
	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
