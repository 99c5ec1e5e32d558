package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"docqa/internal/cache"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/local"
	"docqa/internal/embedding/openai"
	"docqa/internal/extract"
	"docqa/internal/learning"
	"docqa/internal/llm"
	"docqa/internal/memory"
	"docqa/internal/server"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore"
	vsmemory "docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docqa/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	emb := buildEmbedder(cfg)
	gen := buildGenerator(cfg)

	stores := buildStores(cfg)
	initStores(emb, stores)

	shortTerm := memory.NewShortTerm(cfg.Memory.ShortTermSize)
	longTerm := memory.NewLongTerm(stores.pairs, emb, cfg.Memory.PromotionThreshold)
	archive := memory.NewArchive(stores.interactions, stores.feedback, emb)

	svc := service.NewQAService(
		chunker.NewParagraphChunker(cfg.Chunker.ChunkSize),
		extract.NewFileExtractor(),
		emb,
		gen,
		summarizer.NewFrequencySummarizer(),
		stores.chunks,
		shortTerm,
		longTerm,
		archive,
		cache.NewResultCache(cfg.Cache.Capacity, time.Duration(cfg.Cache.TTLSecs)*time.Second),
		service.Options{
			TopK:            cfg.Retrieval.TopK,
			SimilarLimit:    cfg.Memory.SimilarLimit,
			SummarySentence: cfg.Summarizer.MaxSentences,
		},
	)
	learner := learning.NewPipeline(archive, cfg.Learning.ArtifactDir)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(svc, learner).Handler(),
		ReadTimeout:  time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go evictStaleSessions(ctx, shortTerm, time.Duration(cfg.Memory.SessionTimeoutSecs)*time.Second)

	go func() {
		log.Printf("docqa: listening on %s (embedder=%s)", cfg.Server.Addr, emb.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("docqa: server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("docqa: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("docqa: shutdown: %v", err)
	}
}

func buildEmbedder(cfg *config.AppConfig) domain.Embedder {
	switch cfg.Embedder.Type {
	case "local", "":
		return local.NewEmbedder()
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatalf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		return client
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
		return nil
	}
}

func buildGenerator(cfg *config.AppConfig) domain.Generator {
	switch cfg.Generator.Type {
	case "ollama", "":
		o := cfg.Generator.Ollama
		if o == nil {
			o = &config.OllamaConfig{}
		}
		return llm.NewOllamaClient(o.Model, o.BaseURL, time.Duration(o.TimeoutSecs)*time.Second)
	case "openai":
		if cfg.Generator.OpenAI == nil {
			log.Fatalf("openai generator config missing")
		}
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:   cfg.Generator.OpenAI.BaseURL,
			APIKeyEnv: cfg.Generator.OpenAI.APIKeyEnv,
			Model:     cfg.Generator.OpenAI.Model,
			Timeout:   time.Duration(cfg.Generator.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("openai generator init failed: %v", err)
		}
		return client
	case "static":
		return llm.NewStaticGenerator("")
	default:
		log.Fatalf("unknown generator: %s", cfg.Generator.Type)
		return nil
	}
}

// storeSet holds the four collections backing the service.
type storeSet struct {
	chunks       vectorstore.Storage
	pairs        vectorstore.Storage
	interactions vectorstore.Storage
	feedback     vectorstore.Storage
}

func buildStores(cfg *config.AppConfig) storeSet {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return storeSet{
			chunks:       vsmemory.NewStorage(),
			pairs:        vsmemory.NewStorage(),
			interactions: vsmemory.NewStorage(),
			feedback:     vsmemory.NewStorage(),
		}
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			log.Fatalf("qdrant config missing")
		}
		newCollection := func(name string) vectorstore.Storage {
			return qdrant.NewStorage(qdrant.Config{
				URL:        q.URL,
				APIKey:     q.APIKey,
				Collection: q.CollectionPrefix + name,
				Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
			})
		}
		return storeSet{
			chunks:       newCollection("document_chunks"),
			pairs:        newCollection("qa_pairs"),
			interactions: newCollection("user_interactions"),
			feedback:     newCollection("feedback_data"),
		}
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
		return storeSet{}
	}
}

// initStores creates the collections. Remote embedders report their
// dimension lazily, so a probe embedding is taken first.
func initStores(emb domain.Embedder, stores storeSet) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dim := emb.Dimension()
	if dim <= 0 {
		if _, err := emb.Embed(ctx, "init"); err != nil {
			log.Printf("docqa: embedder probe failed, deferring collection setup: %v", err)
			return
		}
		dim = emb.Dimension()
	}
	for _, s := range []vectorstore.Storage{stores.chunks, stores.pairs, stores.interactions, stores.feedback} {
		if err := s.Init(ctx, dim); err != nil {
			log.Fatalf("docqa: collection setup failed: %v", err)
		}
	}
}

func evictStaleSessions(ctx context.Context, shortTerm *memory.ShortTerm, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(maxAge / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := shortTerm.EvictStale(maxAge); n > 0 {
				log.Printf("docqa: evicted %d stale sessions", n)
			}
		}
	}
}
