package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"faqbot/internal/config"
	"faqbot/internal/domain"
	"faqbot/internal/embedding/openai"
	"faqbot/internal/embedding/tfidf"
	"faqbot/internal/kb"
	"faqbot/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/faqbot/config.yaml if not provided)")
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

	emb, err := newEmbedder(cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}

	base := kb.New(emb)
	if err := base.LoadCorpus(cfg.Corpus.Path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load corpus %s: %v", cfg.Corpus.Path, err)
		}
		// create the file so /learn has somewhere to persist
		if werr := os.WriteFile(cfg.Corpus.Path, nil, 0o644); werr != nil {
			log.Fatalf("failed to create corpus file %s: %v", cfg.Corpus.Path, werr)
		}
		if err := base.LoadCorpus(cfg.Corpus.Path); err != nil {
			log.Fatalf("failed to load corpus %s: %v", cfg.Corpus.Path, err)
		}
		log.Printf("created empty corpus %s", cfg.Corpus.Path)
	} else {
		log.Printf("loaded %d Q&A pairs from %s", base.QuestionCount(), cfg.Corpus.Path)
	}

	// Prefer a persisted index when configured and still valid; otherwise
	// build fresh and persist for the next start.
	adopted := false
	if cfg.Index.Path != "" {
		adopted, err = base.LoadIndex(cfg.Index.Path)
		if err != nil {
			log.Printf("ignoring saved index %s: %v", cfg.Index.Path, err)
		}
	}
	if !adopted {
		if err := base.BuildIndex(); err != nil {
			if errors.Is(err, domain.ErrEmptyCorpus) {
				log.Printf("corpus is empty; answering with fallbacks until pairs are learned")
			} else {
				log.Fatalf("index build failed: %v", err)
			}
		} else if cfg.Index.Path != "" {
			if err := base.SaveIndex(cfg.Index.Path); err != nil {
				log.Printf("failed to save index: %v", err)
			}
		}
	}

	m := tui.New(base, cfg.Retrieval.Threshold, cfg.Retrieval.MaxAnswerLen)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		ocfg := openai.Config{}
		if o := cfg.Embedder.OpenAI; o != nil {
			ocfg = openai.Config{
				APIKeyEnv: o.APIKeyEnv,
				BaseURL:   o.BaseURL,
				Model:     o.Model,
				Timeout:   time.Duration(o.TimeoutSecs) * time.Second,
			}
		}
		return openai.NewEmbedder(ocfg)
	default:
		return nil, errors.New("unknown embedder: " + cfg.Embedder.Type)
	}
}
