package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"faqbot/internal/config"
	"faqbot/internal/domain"
	"faqbot/internal/embedding/openai"
	"faqbot/internal/embedding/tfidf"
	"faqbot/internal/kb"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "Path to YAML config file")
	threshold := flag.Float64("threshold", 0, "Similarity threshold override (0 = use config)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if *cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(*cfgPath)
	}
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if *threshold > 0 {
		cfg.Retrieval.Threshold = *threshold
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		fatal("embedder init failed: %v", err)
	}
	base := kb.New(emb)

	switch args[0] {
	case "ask":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		runAsk(base, cfg, strings.Join(args[1:], " "))
	case "learn":
		if len(args) != 3 {
			usage()
			os.Exit(1)
		}
		runLearn(base, cfg, args[1], args[2])
	case "stats":
		runStats(base, cfg)
	default:
		usage()
		os.Exit(1)
	}
}

func runAsk(base *kb.KnowledgeBase, cfg *config.AppConfig, query string) {
	loadAndBuild(base, cfg)
	answer, confidence := base.FindBestAnswer(query, cfg.Retrieval.Threshold)
	answer = truncate(answer, cfg.Retrieval.MaxAnswerLen)
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Println(green(answer))
	fmt.Println(yellow(fmt.Sprintf("confidence: %.2f", confidence)))
}

func runLearn(base *kb.KnowledgeBase, cfg *config.AppConfig, question, answer string) {
	// A missing corpus file is fine here: learn creates it.
	if err := base.LoadCorpus(cfg.Corpus.Path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fatal("failed to load corpus: %v", err)
		}
		if werr := os.WriteFile(cfg.Corpus.Path, nil, 0o644); werr != nil {
			fatal("failed to create corpus file: %v", werr)
		}
		if err := base.LoadCorpus(cfg.Corpus.Path); err != nil {
			fatal("failed to load corpus: %v", err)
		}
	}
	if err := base.AddPair(question, answer); err != nil {
		fatal("learn failed: %v", err)
	}
	color.Green("Learned. Knowledge base now holds %d Q&A pairs.", base.QuestionCount())
}

func runStats(base *kb.KnowledgeBase, cfg *config.AppConfig) {
	loadAndBuild(base, cfg)
	fmt.Printf("corpus:    %s\n", cfg.Corpus.Path)
	fmt.Printf("embedder:  %s\n", cfg.Embedder.Type)
	fmt.Printf("pairs:     %d\n", base.QuestionCount())
	fmt.Printf("ready:     %v\n", base.Ready())
	fmt.Printf("threshold: %.2f\n", cfg.Retrieval.Threshold)
}

func loadAndBuild(base *kb.KnowledgeBase, cfg *config.AppConfig) {
	if err := base.LoadCorpus(cfg.Corpus.Path); err != nil {
		fatal("failed to load corpus %s: %v", cfg.Corpus.Path, err)
	}
	adopted := false
	if cfg.Index.Path != "" {
		var err error
		adopted, err = base.LoadIndex(cfg.Index.Path)
		if err != nil {
			fatal("failed to load index: %v", err)
		}
	}
	if !adopted {
		if err := base.BuildIndex(); err != nil && !errors.Is(err, domain.ErrEmptyCorpus) {
			fatal("index build failed: %v", err)
		}
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

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: faqbot-cli [flags] <command>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  ask <question...>        answer a question from the knowledge base")
	fmt.Fprintln(os.Stderr, "  learn <question> <answer> add a Q&A pair and rebuild the index")
	fmt.Fprintln(os.Stderr, "  stats                    show knowledge base status")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}

// truncate caps s at limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func fatal(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
