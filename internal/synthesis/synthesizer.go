// Package synthesis turns retrieved transcript context into grounded answers.
package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// NoContextAnswer is returned when retrieval found nothing above the score
// threshold. It is a normal answer, not an error.
const NoContextAnswer = "I could not find anything in this video's transcript that answers that question."

// AnswerModeRAG and AnswerModeSummary label how an answer was produced.
const (
	AnswerModeRAG     = "rag"
	AnswerModeSummary = "summary"
)

// globalPhrases mark questions about the video as a whole, answered from the
// stored summary instead of retrieval.
var globalPhrases = []string{
	"summarize",
	"summarise",
	"summary",
	"overview",
	"key points",
	"main points",
	"main idea",
	"key takeaways",
	"takeaways",
	"tldr",
	"tl;dr",
	"gist",
	"what is this video about",
	"what's this video about",
	"what is the video about",
}

// Synthesizer assembles bounded prompts and calls the generation provider.
type Synthesizer struct {
	generator generation.Generator
	cfg       config.SynthesisConfig
	logger    *zap.Logger
}

// New creates a synthesizer.
func New(generator generation.Generator, cfg config.SynthesisConfig, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{generator: generator, cfg: cfg, logger: logger}
}

// IsGlobalQuestion reports whether question asks about the video as a whole.
func IsGlobalQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, p := range globalPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// Synthesize answers question from the retrieved context. An empty context
// produces a fixed "nothing found" answer without calling the provider.
func (s *Synthesizer) Synthesize(ctx context.Context, question, videoSummary string, rc *models.RetrievedContext) (*models.Answer, error) {
	if rc == nil || len(rc.Chunks) == 0 {
		return &models.Answer{Text: NoContextAnswer, Mode: AnswerModeRAG}, nil
	}

	chunks := s.fitBudget(rc.Chunks)
	if len(chunks) == 0 {
		return &models.Answer{Text: NoContextAnswer, Mode: AnswerModeRAG}, nil
	}

	prompt := s.buildPrompt(question, videoSummary, chunks)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	for i, sc := range chunks {
		ids[i] = sc.Chunk.ID
	}
	if s.logger != nil {
		s.logger.Debug("answer synthesized",
			zap.String("video_id", rc.VideoID),
			zap.Int("context_chunks", len(chunks)),
		)
	}
	return &models.Answer{Text: text, SourceChunkIDs: ids, Mode: AnswerModeRAG}, nil
}

// Summarize generates a short summary from a bounded transcript prefix.
func (s *Synthesizer) Summarize(ctx context.Context, transcript string) (string, error) {
	prefix := utils.Truncate(utils.CollapseSpaces(transcript), s.cfg.SummaryInputChars)
	if strings.TrimSpace(prefix) == "" {
		return "", models.E(models.KindEmptyContext, "no transcript text to summarize")
	}
	prompt := fmt.Sprintf(
		"Summarize the following video transcript in 3-5 sentences. "+
			"Cover the main topics in order. Do not add information that is not in the transcript.\n\n"+
			"Transcript:\n%s\n\nSummary:", prefix)
	return s.generator.Generate(ctx, prompt)
}

// fitBudget trims the context to context_token_budget tokens. Under the
// default "score" policy the lowest-scoring chunks go first; under
// "position" the latest chunks go first. Survivors stay in transcript order.
func (s *Synthesizer) fitBudget(chunks []*models.ScoredChunk) []*models.ScoredChunk {
	budget := s.cfg.ContextTokenBudget
	if budget <= 0 {
		return chunks
	}
	total := 0
	for _, sc := range chunks {
		total += sc.Chunk.TokenCount
	}
	if total <= budget {
		return chunks
	}

	kept := make([]*models.ScoredChunk, len(chunks))
	copy(kept, chunks)
	byPosition := s.cfg.DropPolicy == "position"
	for total > budget && len(kept) > 0 {
		drop := 0
		for i := 1; i < len(kept); i++ {
			if byPosition {
				if kept[i].Chunk.Position > kept[drop].Chunk.Position {
					drop = i
				}
			} else if kept[i].Score < kept[drop].Score {
				drop = i
			}
		}
		total -= kept[drop].Chunk.TokenCount
		kept = append(kept[:drop], kept[drop+1:]...)
	}
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Chunk.Position < kept[j].Chunk.Position
	})
	return kept
}

// buildPrompt lays out grounding rules, the optional video summary, the
// context chunks in transcript order, and the question.
func (s *Synthesizer) buildPrompt(question, videoSummary string, chunks []*models.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("You answer questions about a video using only the transcript excerpts below. ")
	b.WriteString("If the excerpts do not contain the answer, say so plainly. ")
	b.WriteString("Do not invent details that are not in the excerpts.\n\n")
	if videoSummary != "" {
		b.WriteString("Video summary:\n")
		b.WriteString(videoSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript excerpts:\n")
	for _, sc := range chunks {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", sc.Chunk.ID, sc.Chunk.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
