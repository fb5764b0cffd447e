package kb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"faqbot/internal/domain"
	"faqbot/internal/embedding/tfidf"
)

const testCorpus = "Q: server rules\nA: Be respectful.\nQ: music bot\nA: Use the jukebox channel.\n"

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "training_data.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readyKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	kb := New(tfidf.NewEmbedder())
	if err := kb.LoadCorpus(writeCorpus(t, testCorpus)); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if err := kb.BuildIndex(); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return kb
}

func TestFindBestAnswerUninitialized(t *testing.T) {
	kb := New(tfidf.NewEmbedder())
	answer, confidence := kb.FindBestAnswer("anything at all", 0.7)
	if answer != FallbackUnknown {
		t.Errorf("answer = %q, want FallbackUnknown", answer)
	}
	if confidence != 0 {
		t.Errorf("confidence = %v, want exactly 0", confidence)
	}
}

func TestFindBestAnswerStaleIndex(t *testing.T) {
	kb := New(tfidf.NewEmbedder())
	if err := kb.LoadCorpus(writeCorpus(t, testCorpus)); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	// corpus loaded but index never built
	answer, confidence := kb.FindBestAnswer("server rules", 0.7)
	if answer != FallbackUnknown || confidence != 0 {
		t.Errorf("got (%q, %v), want (FallbackUnknown, 0)", answer, confidence)
	}
}

func TestBuildIndexEmptyCorpus(t *testing.T) {
	kb := New(tfidf.NewEmbedder())
	if err := kb.BuildIndex(); !errors.Is(err, domain.ErrEmptyCorpus) {
		t.Fatalf("BuildIndex error = %v, want ErrEmptyCorpus", err)
	}
}

func TestAdjustedThreshold(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0.7, 0.6},
		{0.55, 0.5}, // floored, not 0.45
		{0.9, 0.8},
		{0.3, 0.5},
	}
	for _, c := range cases {
		if got := adjustedThreshold(c.in); got != c.want {
			t.Errorf("adjustedThreshold(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFindBestAnswerMatch(t *testing.T) {
	kb := readyKB(t)
	answer, confidence := kb.FindBestAnswer("What are the rules?", 0.7)
	if answer != "Be respectful." {
		t.Errorf("answer = %q, want %q", answer, "Be respectful.")
	}
	if confidence < 0.6 {
		t.Errorf("confidence = %v, want at least the adjusted bar 0.6", confidence)
	}
	if confidence <= 0 || confidence > 1 {
		t.Errorf("confidence = %v, want in (0, 1]", confidence)
	}
}

func TestFindBestAnswerUnrelatedQuery(t *testing.T) {
	kb := readyKB(t)
	answer, confidence := kb.FindBestAnswer("what's for lunch today", 0.7)
	if answer != FallbackLowConfidence {
		t.Errorf("answer = %q, want FallbackLowConfidence", answer)
	}
	if confidence <= 0 || confidence >= 0.6 {
		t.Errorf("confidence = %v, want real similarity below the 0.6 bar", confidence)
	}
}

func TestBuildIndexIdempotent(t *testing.T) {
	kb := readyKB(t)
	a1, c1 := kb.FindBestAnswer("music bot", 0.7)
	if err := kb.BuildIndex(); err != nil {
		t.Fatalf("second BuildIndex: %v", err)
	}
	a2, c2 := kb.FindBestAnswer("music bot", 0.7)
	if a1 != a2 || c1 != c2 {
		t.Errorf("results changed across rebuild: (%q, %v) vs (%q, %v)", a1, c1, a2, c2)
	}
}

func TestAddPairRebuildsSynchronously(t *testing.T) {
	kb := readyKB(t)
	if err := kb.AddPair("voice channels", "Join any open voice room."); err != nil {
		t.Fatalf("AddPair: %v", err)
	}
	if got := kb.QuestionCount(); got != 3 {
		t.Errorf("QuestionCount = %d, want 3", got)
	}
	if !kb.Ready() {
		t.Fatal("knowledge base not ready after AddPair")
	}
	answer, confidence := kb.FindBestAnswer("how do i join vc", 0.7)
	if answer != "Join any open voice room." {
		t.Errorf("answer = %q, want the newly added answer", answer)
	}
	if confidence < 0.6 {
		t.Errorf("confidence = %v, want at least 0.6", confidence)
	}
}

func TestAddPairPersistsToCorpusFile(t *testing.T) {
	path := writeCorpus(t, testCorpus)
	kb := New(tfidf.NewEmbedder())
	if err := kb.LoadCorpus(path); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if err := kb.AddPair("server events", "Fridays at 20:00 UTC."); err != nil {
		t.Fatalf("AddPair: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Q: server events\nA: Fridays at 20:00 UTC.") {
		t.Errorf("corpus file missing appended block:\n%s", data)
	}
}

// Once an empty corpus file is loaded, learned pairs must be written through
// to it rather than living only in memory.
func TestAddPairPersistsAfterEmptyCorpusLoad(t *testing.T) {
	path := writeCorpus(t, "")
	kb := New(tfidf.NewEmbedder())
	if err := kb.LoadCorpus(path); err != nil {
		t.Fatalf("LoadCorpus on empty file: %v", err)
	}
	if got := kb.QuestionCount(); got != 0 {
		t.Fatalf("QuestionCount = %d, want 0", got)
	}
	if err := kb.AddPair("music bot", "Use !play in #music-commands."); err != nil {
		t.Fatalf("AddPair: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Q: music bot\nA: Use !play in #music-commands.") {
		t.Errorf("corpus file missing learned pair:\n%s", data)
	}
	if answer, _ := kb.FindBestAnswer("music bot", 0.7); answer != "Use !play in #music-commands." {
		t.Errorf("learned pair not retrievable: got %q", answer)
	}
}

func TestLoadCorpusFailureKeepsState(t *testing.T) {
	kb := readyKB(t)
	before := kb.QuestionCount()
	if err := kb.LoadCorpus(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("LoadCorpus on missing file: want error")
	}
	if kb.QuestionCount() != before || !kb.Ready() {
		t.Error("failed LoadCorpus must leave prior corpus and index untouched")
	}
	if answer, _ := kb.FindBestAnswer("server rules", 0.7); answer != "Be respectful." {
		t.Errorf("retrieval broken after failed load: got %q", answer)
	}
}

// stubEmbedder lets tests force embedding faults at query time.
type stubEmbedder struct {
	failEmbed bool
}

func (s *stubEmbedder) Name() string             { return "stub" }
func (s *stubEmbedder) Prepare(_ []string) error { return nil }
func (s *stubEmbedder) Dimension() int           { return 2 }
func (s *stubEmbedder) Embed(texts []string) ([][]float64, error) {
	if s.failEmbed {
		return nil, errors.New("stub embedder down")
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{1, 0}
	}
	return vectors, nil
}

func TestFindBestAnswerDegradesOnEmbedderFault(t *testing.T) {
	emb := &stubEmbedder{}
	kb := New(emb)
	if err := kb.LoadCorpus(writeCorpus(t, testCorpus)); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if err := kb.BuildIndex(); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	emb.failEmbed = true
	answer, confidence := kb.FindBestAnswer("server rules", 0.7)
	if answer != FallbackUnknown || confidence != 0 {
		t.Errorf("got (%q, %v), want graceful (FallbackUnknown, 0)", answer, confidence)
	}
}

// sizedEmbedder ties its dimension to the prepared corpus size, like the
// TF-IDF embedder does, and can be told to fail embedding a given batch size.
type sizedEmbedder struct {
	dim          int
	failBatchLen int
}

func (s *sizedEmbedder) Name() string { return "sized" }
func (s *sizedEmbedder) Prepare(corpus []string) error {
	s.dim = len(corpus)
	return nil
}
func (s *sizedEmbedder) Dimension() int { return s.dim }
func (s *sizedEmbedder) Embed(texts []string) ([][]float64, error) {
	if s.failBatchLen > 0 && len(texts) == s.failBatchLen {
		return nil, errors.New("sized embedder refusing batch")
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vec := make([]float64, s.dim)
		vec[0] = 1
		vectors[i] = vec
	}
	return vectors, nil
}

// A failed AddPair must leave the whole knowledge base consistent: not just
// the corpus slices, but also any embedder state prepared against the grown
// corpus, so queries keep embedding in the retained index's space.
func TestAddPairRollbackKeepsQueriesServable(t *testing.T) {
	emb := &sizedEmbedder{}
	kb := New(emb)
	if err := kb.LoadCorpus(writeCorpus(t, testCorpus)); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if err := kb.BuildIndex(); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	emb.failBatchLen = 3 // the rebuild over the grown corpus fails
	if err := kb.AddPair("server events", "Fridays."); err == nil {
		t.Fatal("AddPair: want rebuild error, got nil")
	}
	if got := kb.QuestionCount(); got != 2 {
		t.Fatalf("QuestionCount after rollback = %d, want 2", got)
	}
	if !kb.Ready() {
		t.Fatal("knowledge base lost readiness after rolled-back AddPair")
	}
	answer, confidence := kb.FindBestAnswer("server rules", 0.7)
	if answer == FallbackUnknown || confidence == 0 {
		t.Errorf("retrieval degraded after rollback: got (%q, %v)", answer, confidence)
	}
	if answer != "Be respectful." {
		t.Errorf("answer = %q, want %q", answer, "Be respectful.")
	}
}

func TestSaveAndLoadIndex(t *testing.T) {
	path := writeCorpus(t, testCorpus)
	indexPath := filepath.Join(t.TempDir(), "vectors.gob")

	kb1 := New(tfidf.NewEmbedder())
	if err := kb1.LoadCorpus(path); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if err := kb1.BuildIndex(); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if err := kb1.SaveIndex(indexPath); err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}

	kb2 := New(tfidf.NewEmbedder())
	if err := kb2.LoadCorpus(path); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	ok, err := kb2.LoadIndex(indexPath)
	if err != nil || !ok {
		t.Fatalf("LoadIndex = (%v, %v), want (true, nil)", ok, err)
	}
	wantAnswer, wantConf := kb1.FindBestAnswer("music bot", 0.7)
	gotAnswer, gotConf := kb2.FindBestAnswer("music bot", 0.7)
	if gotAnswer != wantAnswer || gotConf != wantConf {
		t.Errorf("loaded-index retrieval (%q, %v) differs from built (%q, %v)",
			gotAnswer, gotConf, wantAnswer, wantConf)
	}
}

func TestLoadIndexMissingArtifact(t *testing.T) {
	kb := New(tfidf.NewEmbedder())
	if err := kb.LoadCorpus(writeCorpus(t, testCorpus)); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	ok, err := kb.LoadIndex(filepath.Join(t.TempDir(), "nope.gob"))
	if err != nil {
		t.Fatalf("LoadIndex missing artifact: unexpected error %v", err)
	}
	if ok {
		t.Error("LoadIndex missing artifact reported success")
	}
}

func TestLoadIndexRejectsMismatchedCorpus(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "vectors.gob")
	kb1 := readyKB(t)
	if err := kb1.SaveIndex(indexPath); err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}

	bigger := testCorpus + "\nQ: server events\nA: Fridays.\n"
	kb2 := New(tfidf.NewEmbedder())
	if err := kb2.LoadCorpus(writeCorpus(t, bigger)); err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	ok, err := kb2.LoadIndex(indexPath)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if ok {
		t.Error("LoadIndex adopted an index whose rows do not match the corpus")
	}
	if kb2.Ready() {
		t.Error("knowledge base claims ready with a rejected index")
	}
}
