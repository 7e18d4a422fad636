package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mediaquiz/internal/api"
	"mediaquiz/internal/api/handlers"
	"mediaquiz/internal/config"
	"mediaquiz/internal/extract"
	"mediaquiz/internal/fetch"
	"mediaquiz/internal/gemini"
	"mediaquiz/internal/llm"
	"mediaquiz/internal/notify"
	"mediaquiz/internal/quiz"
	"mediaquiz/internal/r2"
	"mediaquiz/internal/resolve"
	"mediaquiz/internal/retry"
	"mediaquiz/internal/service"
	"mediaquiz/internal/transcribe"
	"mediaquiz/internal/youtube"

	"github.com/sashabaranov/go-openai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Invalid configuration: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	// Set up context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	lenient := cfg.Limits.LenientUnknownAsMP3
	if lenient {
		log.Println("WARN: LENIENT_UNKNOWN_AS_MP3 is on; unrecognised bytes will be sent to transcription as mp3.")
	}

	// --- Source resolvers ---
	direct := resolve.NewDirect(
		fetch.New(httpClient, cfg.Retry.Policy(cfg.Retry.Direct), cfg.UserAgent),
		resolve.DirectConfig{MaxBytes: cfg.Limits.DirectBytes, AllowDocuments: true, Lenient: lenient},
	)
	video := resolve.NewFallbackChain(
		resolve.NewVideo(youtube.New(httpClient), cfg.Limits.VideoBytes, cfg.Retry.Policy(cfg.Retry.Video)),
		httpClient,
		fetch.New(httpClient, cfg.Retry.Policy(cfg.Retry.Fallback), cfg.UserAgent),
		cfg.Retry.Policy(cfg.Retry.Fallback),
		resolve.FallbackConfig{
			Endpoint: cfg.Fallback.Endpoint,
			Token:    cfg.Fallback.Token,
			MaxBytes: cfg.Limits.VideoBytes,
			Lenient:  lenient,
		},
	)

	r2Client, err := r2.NewClient(ctx, cfg.R2)
	if err != nil {
		log.Fatalf("Failed to initialize object storage client: %v", err)
	}
	var store resolve.ObjectStore
	if r2Client != nil {
		store = r2Client
	}

	dispatcher := &resolve.Dispatcher{
		Direct: direct,
		Upload: &resolve.Upload{MaxBytes: cfg.Limits.UploadBytes, Lenient: lenient},
		Video:  video,
		Object: resolve.NewObject(store, cfg.Limits.DirectBytes, cfg.Retry.Policy(cfg.Retry.Direct), lenient),
	}

	// --- Model providers ---
	var (
		openaiClient *openai.Client
		geminiClient *gemini.Client
	)
	if cfg.TranscribeProvider == config.ProviderOpenAI || cfg.QuizProvider == config.ProviderOpenAI {
		openaiClient = llm.NewOpenAI(llm.OpenAIConfig{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL})
	}
	if cfg.TranscribeProvider == config.ProviderGemini || cfg.QuizProvider == config.ProviderGemini {
		// One Gemini client serves both roles with the transcription retry budget.
		geminiClient, err = gemini.NewClient(ctx, gemini.Config{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model},
			cfg.Retry.Policy(cfg.Retry.Transcribe))
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
		defer geminiClient.Close()
	}

	var transcriber transcribe.Transcriber
	switch cfg.TranscribeProvider {
	case config.ProviderGemini:
		transcriber = geminiClient
	default:
		transcriber = transcribe.NewOpenAI(openaiClient, cfg.OpenAI.TranscribeModel, cfg.OpenAI.Language, cfg.Retry.Policy(cfg.Retry.Transcribe))
	}
	var generator quiz.Generator
	switch cfg.QuizProvider {
	case config.ProviderGemini:
		generator = geminiClient
	default:
		generator = quiz.NewOpenAI(openaiClient, cfg.OpenAI.QuizModel, cfg.Retry.Policy(cfg.Retry.Quiz))
	}
	log.Printf("INFO: Transcription via %s, quiz generation via %s", cfg.TranscribeProvider, cfg.QuizProvider)

	pipeline := &service.Pipeline{
		Resolver:         dispatcher,
		Transcriber:      transcriber,
		Extractor:        extract.NewPDF(),
		Generator:        generator,
		DefaultQuestions: cfg.Limits.DefaultQuestions,
		MaxQuestions:     cfg.Limits.MaxQuestions,
		MaxSourceChars:   cfg.Limits.MaxSourceChars,
	}
	notifier := notify.NewWebhook(cfg.NotifyWebhookURL, nil, retry.Policy{Tries: 3, BaseDelay: time.Second})

	// Set up Gin router
	router := gin.Default()
	router.MaxMultipartMemory = cfg.Limits.UploadBytes + 1<<20

	handler := handlers.NewHandler(pipeline, notifier, cfg.Limits.UploadBytes)
	api.SetupRoutes(router, handler, cfg.FrontendURL)

	// Create HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if wh, ok := notifier.(*notify.Webhook); ok {
		wh.Wait()
	}

	log.Println("Server exited properly")
}
