package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/thoughtchain/internal/llm"
)

const defaultMapConcurrency = 4

// Summarizer is the Handler behind the summarization channel. Long inputs are
// split into overlapping chunks that are summarized independently (map) and
// then merged into one summary (reduce).
type Summarizer struct {
	backend     llm.Backend
	concurrency int
}

// NewSummarizer creates a Summarizer on top of backend.
func NewSummarizer(backend llm.Backend) *Summarizer {
	return &Summarizer{backend: backend, concurrency: defaultMapConcurrency}
}

func (s *Summarizer) Handle(ctx context.Context, req Request) Response {
	text, err := s.summarize(ctx, req)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Summary: text}
}

func (s *Summarizer) summarize(ctx context.Context, req Request) (string, error) {
	if req.APIKey == "" {
		return "", llm.ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", errors.New("nothing to summarize")
	}

	opts := req.Options
	system := opts.SystemPrompt
	if system == "" {
		system = nodeSystemPrompt(opts.TargetLanguage, opts.MaxLength)
	}
	base := llm.Completion{
		APIKey:      req.APIKey,
		Model:       opts.ModelName,
		System:      system,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	chunks := SplitText(req.Text, opts.ChunkSize, opts.ChunkOverlap)
	if len(chunks) == 1 {
		c := base
		c.Prompt = withUserNotes(req.Text, opts.UserNotes)
		return s.backend.Complete(ctx, c)
	}

	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			c := base
			c.Prompt = fmt.Sprintf("This is part %d of %d of a longer text. Summarize this part.\n\n%s", i+1, len(chunks), chunk)
			out, err := s.backend.Complete(gctx, c)
			if err != nil {
				return fmt.Errorf("summarizing part %d: %w", i+1, err)
			}
			partials[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	reduce := base
	reduce.Prompt = withUserNotes(
		"Combine these partial summaries of one text into a single coherent summary:\n\n"+strings.Join(partials, "\n\n---\n\n"),
		opts.UserNotes,
	)
	return s.backend.Complete(ctx, reduce)
}
