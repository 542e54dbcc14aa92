package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"image-crawler/pkg/config"
	"image-crawler/pkg/crawler"
	"image-crawler/pkg/models"
	"image-crawler/pkg/utils"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "discover":
		runDiscover(os.Args[2:])
	case "crawl":
		runCrawl(os.Args[2:])
	case "download":
		runDownload(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("image-crawler %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `image-crawler - Find the largest images on a web page and download them

Usage:
  image-crawler <command> [options]

Commands:
  discover    List the images of a page, largest first
  crawl       Discover a page and download its largest images
  download    Download explicit image URLs
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'image-crawler <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path yields the built-in defaults.
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// prepareConfig loads, validates and logs the effective configuration
func prepareConfig(path string, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	logAppConfig(appCfg, log)
	return appCfg, nil
}

// setupLogger builds the process logger; an invalid level falls back to info
func setupLogger(logLevel string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevel, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. In-flight downloads drain
// after cancellation; a second signal or a 30s grace period forces exit.
func signalContext(log *logrus.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Debugf("Config: ProbeConcurrency:%d, DownloadConcurrency:%d, MaxRequests:%d, DefaultSelection:%d",
		appCfg.ProbeConcurrency, appCfg.DownloadConcurrency, appCfg.MaxRequests, appCfg.DefaultSelectionCount)
	log.Debugf("Config Timeouts: Probe:%v, Page:%v, Download:%v",
		appCfg.ProbeTimeout, appCfg.PageTimeout, appCfg.DownloadTimeout)
	log.Debugf("Config Probe Cache: Disabled:%t, TTL:%v, MaxPageSize:%d bytes",
		appCfg.DisableProbeCache, appCfg.ProbeCacheTTL, appCfg.MaxPageSizeBytes)
	log.Debugf("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v, MaxRedirects:%d",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout,
		appCfg.HTTPClientSettings.MaxRedirects)
}

// commonFlags are shared by every network subcommand
type commonFlags struct {
	configFile *string
	logLevel   *string
	format     *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configFile: fs.String("config", "", "Path to YAML config file (built-in defaults when empty)"),
		logLevel:   fs.String("loglevel", "info", "Log level (debug, info, warn, error)"),
		format:     fs.String("format", "text", "Report format (text, yaml)"),
	}
}

// runDiscover handles the discover subcommand
func runDiscover(args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	common := addCommonFlags(fs)
	pageURL := fs.String("url", "", "Page URL to scan (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: image-crawler discover -url URL [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*common.logLevel, os.Stderr)
	ctx, stop := signalContext(log)
	exitCode := doDiscover(ctx, *common.configFile, *pageURL, *common.format, log, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// doDiscover prints the ranked image list of pageURL. Returns exit code.
func doDiscover(ctx context.Context, configPath, pageURL, format string, log *logrus.Logger, stdout, stderr io.Writer) int {
	if !validFormat(format) {
		fmt.Fprintf(stderr, "Error: unknown format '%s' (supported: text, yaml)\n", format)
		return 1
	}
	appCfg, err := prepareConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	svc, err := crawler.NewService(appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	list, err := svc.Discover(ctx, pageURL)
	if err != nil {
		reportError(stderr, err)
		return 1
	}
	if err := writeRankedList(stdout, list, format); err != nil {
		fmt.Fprintf(stderr, "Error writing report: %v\n", err)
		return 1
	}
	return 0
}

// crawlOptions carries the parsed crawl flags
type crawlOptions struct {
	configPath  string
	pageURL     string
	destDir     string
	top         int
	all         bool
	concurrency int
	format      string
	progress    bool
}

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	common := addCommonFlags(fs)
	pageURL := fs.String("url", "", "Page URL to scan (required)")
	destDir := fs.String("dest", "", "Existing directory to save images into (required)")
	top := fs.Int("top", 0, "Download the N largest images (default: configured selection)")
	all := fs.Bool("all", false, "Download every discovered image")
	concurrency := fs.Int("concurrency", 0, "Simultaneous downloads (default: configured concurrency)")
	progress := fs.Bool("progress", true, "Show a progress bar on stderr")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: image-crawler crawl -url URL -dest DIR [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  image-crawler crawl -url https://example.com/gallery -dest ./images\n")
		fmt.Fprintf(os.Stderr, "  image-crawler crawl -url https://example.com/gallery -dest ./images -all -concurrency 8\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*common.logLevel, os.Stderr)
	ctx, stop := signalContext(log)
	exitCode := doCrawl(ctx, crawlOptions{
		configPath:  *common.configFile,
		pageURL:     *pageURL,
		destDir:     *destDir,
		top:         *top,
		all:         *all,
		concurrency: *concurrency,
		format:      *common.format,
		progress:    *progress,
	}, log, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// doCrawl discovers a page and downloads the selection. Item failures are reported
// but do not change the exit code.
func doCrawl(ctx context.Context, opts crawlOptions, log *logrus.Logger, stdout, stderr io.Writer) int {
	if !validFormat(opts.format) {
		fmt.Fprintf(stderr, "Error: unknown format '%s' (supported: text, yaml)\n", opts.format)
		return 1
	}
	appCfg, err := prepareConfig(opts.configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	svc, err := crawler.NewService(appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	observer := newLazyProgress(stderr, opts.progress)
	_, result, err := svc.Crawl(ctx, crawler.CrawlRequest{
		PageURL:     opts.pageURL,
		DestDir:     opts.destDir,
		Top:         opts.top,
		All:         opts.all,
		Concurrency: opts.concurrency,
	}, observer)
	if err != nil {
		reportError(stderr, err)
		return 1
	}
	return finishBatch(ctx, result, opts.format, log, stdout, stderr)
}

// runDownload handles the download subcommand
func runDownload(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	common := addCommonFlags(fs)
	destDir := fs.String("dest", "", "Existing directory to save images into (required)")
	concurrency := fs.Int("concurrency", 0, "Simultaneous downloads (default: configured concurrency)")
	progress := fs.Bool("progress", true, "Show a progress bar on stderr")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: image-crawler download -dest DIR [options] URL...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*common.logLevel, os.Stderr)
	ctx, stop := signalContext(log)
	exitCode := doDownload(ctx, *common.configFile, fs.Args(), *destDir, *concurrency, *common.format, *progress, log, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// doDownload fetches explicit URLs into destDir. Returns exit code.
func doDownload(ctx context.Context, configPath string, urls []string, destDir string, concurrency int, format string, progress bool, log *logrus.Logger, stdout, stderr io.Writer) int {
	if !validFormat(format) {
		fmt.Fprintf(stderr, "Error: unknown format '%s' (supported: text, yaml)\n", format)
		return 1
	}
	items, err := crawler.ItemsFromURLs(urls)
	if err != nil {
		reportError(stderr, err)
		return 1
	}
	appCfg, err := prepareConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	svc, err := crawler.NewService(appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	result, err := svc.Download(ctx, items, destDir, concurrency, newLazyProgress(stderr, progress))
	if err != nil {
		reportError(stderr, err)
		return 1
	}
	return finishBatch(ctx, result, format, log, stdout, stderr)
}

func finishBatch(ctx context.Context, result models.BatchResult, format string, log *logrus.Logger, stdout, stderr io.Writer) int {
	if err := writeBatchReport(stdout, result, format); err != nil {
		fmt.Fprintf(stderr, "Error writing report: %v\n", err)
		return 1
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("Download cancelled gracefully; unfinished items are reported as failures.")
	}
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: image-crawler validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: download concurrency %d, probe concurrency %d, default selection %d\n",
		appCfg.DownloadConcurrency, appCfg.ProbeConcurrency, appCfg.DefaultSelectionCount)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// reportError prints a whole-operation failure with its category
func reportError(stderr io.Writer, err error) {
	fmt.Fprintf(stderr, "Error (%s): %v\n", utils.CategorizeError(err), err)
}

func validFormat(format string) bool {
	return format == "text" || format == "yaml"
}
