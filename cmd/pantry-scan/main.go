package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/pantry-scan/internal/classify"
	"github.com/zombor/pantry-scan/internal/merchant"
	"github.com/zombor/pantry-scan/internal/ocr"
	"github.com/zombor/pantry-scan/internal/pipeline"
	"github.com/zombor/pantry-scan/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine; flags and the environment still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("pantry-scan")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "pantry-scan.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./scans", "Storage directory for receipt images")
		profilesPath   = fs.StringLong("profiles", "", "Merchant profiles YAML file (empty uses the built-in profiles)")
		classifierType = fs.StringLong("classifier", "keyword", "Product classifier: 'keyword', 'gemini', 'ollama' or 'none'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llama3.2", "Ollama model name")
		ocrLang        = fs.StringLong("ocr-lang", "deu+eng", "Tesseract languages, '+' separated")
		ocrTimeout     = fs.DurationLong("ocr-timeout", 2*time.Minute, "Maximum time for OCR of one receipt")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		scanPath       = fs.StringLong("scan", "", "Process one receipt image, print the result as JSON and exit")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("PANTRY_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Load merchant profiles
	registry, err := loadRegistry(*profilesPath)
	if err != nil {
		slog.Error("Failed to load merchant profiles", "path", *profilesPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded merchant profiles", "count", registry.Len())
	scanPipeline := pipeline.New(registry)

	// Initialize OCR; without it only text scans are possible
	var recognizer receipt.Recognizer
	tesseract, err := ocr.NewTesseract(*ocrLang)
	switch {
	case errors.Is(err, ocr.ErrOCRNotEnabled):
		slog.Warn("OCR is not enabled in this build; image scans are unavailable", "rebuild", "go build -tags ocr")
	case err != nil:
		slog.Error("Failed to initialize OCR", "language", *ocrLang, "error", err)
		os.Exit(1)
	default:
		defer tesseract.Close()
		recognizer = ocr.NewMultiPass(tesseract)
		slog.Info("OCR enabled", "language", *ocrLang)
	}

	if *scanPath != "" {
		if err := scanOnce(*scanPath, recognizer, scanPipeline, *ocrTimeout, os.Stdout); err != nil {
			slog.Error("Failed to scan receipt", "path", *scanPath, "error", err)
			os.Exit(1)
		}
		return
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize classifier based on type
	classifier, closeClassifier, err := newClassifier(*classifierType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
	if err != nil {
		slog.Error("Failed to initialize classifier", "type", *classifierType, "error", err)
		os.Exit(1)
	}
	defer closeClassifier()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	scanService := receipt.NewService(db, store, recognizer, scanPipeline, classifier)
	scanService.SetOCRTimeout(*ocrTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count, err := scanService.LoadCorrections(ctx)
	if err != nil {
		slog.Warn("Failed to replay some category corrections", "error", err)
	}
	if count > 0 {
		slog.Info("Replayed category corrections", "count", count)
	}

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(scanService, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Serve until interrupted
	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutting down...")
}

func loadRegistry(path string) (*merchant.Registry, error) {
	if path == "" {
		return merchant.DefaultRegistry()
	}
	return merchant.LoadRegistryFile(path)
}

// newClassifier builds the configured product classifier and its close function
func newClassifier(kind, geminiKey, geminiModel, ollamaURL, ollamaModel string) (classify.Classifier, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case "keyword":
		slog.Info("Initializing keyword classifier...")
		return classify.NewKeyword(), noop, nil
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, noop, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini classifier...", "model", geminiModel)
		g, err := classify.NewGemini(apiKey, geminiModel)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	case "ollama":
		slog.Info("Initializing Ollama classifier...", "url", ollamaURL, "model", ollamaModel)
		o, err := classify.NewOllama(ollamaURL, ollamaModel)
		if err != nil {
			return nil, noop, err
		}
		return o, o.Close, nil
	case "none":
		slog.Info("Product classification disabled")
		return nil, noop, nil
	default:
		return nil, noop, fmt.Errorf("invalid classifier type %q, valid: keyword, gemini, ollama or none", kind)
	}
}

// scanOnce runs the pipeline on one image or PDF and writes the result as JSON
func scanOnce(path string, recognizer receipt.Recognizer, p *pipeline.Pipeline, timeout time.Duration, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	var passResult *ocr.PassResult
	if ocr.IsPDF(data, "") {
		if fragments, err := ocr.TextLayer(data); err == nil && len(fragments) > 0 {
			passResult = &ocr.PassResult{Pass: ocr.TextLayerPass, Fragments: fragments}
		}
	}

	if passResult == nil {
		if recognizer == nil {
			return ocr.ErrOCRNotEnabled
		}
		img, err := ocr.Decode(data, "")
		if err != nil {
			return err
		}

		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		passResult, err = recognizer.Run(ctx, img)
		if err != nil {
			return fmt.Errorf("recognizing receipt: %w", err)
		}
	}

	out := struct {
		Pass string `json:"pass"`
		*pipeline.Result
	}{
		Pass:   passResult.Pass,
		Result: p.Process(passResult.Fragments),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
