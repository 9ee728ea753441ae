// Package digest assembles the daily digest: it reruns the denoise chain
// over a day's items, summarizes the winners, and renders the output
// sections.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"ainews/internal/config"
	"ainews/internal/core"
	"ainews/internal/logger"
)

const (
	fallbackChars  = 200
	promptBodyMax  = 2000
	defaultWorkers = 10
)

// Summarizer produces a 1-2 sentence summary of one item.
type Summarizer interface {
	Summarize(ctx context.Context, item core.Item) (string, error)
}

// NewSummarizer builds the summarizer for the configured provider. The
// mock provider needs no credentials and is the default.
func NewSummarizer(cfg config.LLM) (Summarizer, error) {
	switch cfg.Provider {
	case "", "mock":
		return &MockSummarizer{}, nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("llm provider openai: OPENAI_API_KEY not set")
		}
		return newLLMSummarizer(cfg, openaiCompleter(openai.NewClient(key), cfg)), nil
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("llm provider anthropic: ANTHROPIC_API_KEY not set")
		}
		client := anthropic.NewClient(option.WithAPIKey(key))
		return newLLMSummarizer(cfg, anthropicCompleter(&client, cfg)), nil
	case "local":
		oc := openai.DefaultConfig("ollama")
		oc.BaseURL = cfg.LocalURL
		local := cfg
		local.Model = cfg.LocalModel
		return newLLMSummarizer(cfg, openaiCompleter(openai.NewClientWithConfig(oc), local)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// MockSummarizer is the offline provider: an extractive summary built from
// the item itself. Deterministic, free, and good enough for development.
type MockSummarizer struct{}

func (m *MockSummarizer) Summarize(_ context.Context, item core.Item) (string, error) {
	text := strings.TrimSpace(item.Content)
	if text == "" {
		text = item.Title
	}
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) > fallbackChars {
		text = truncateRunes(text, fallbackChars) + "…"
	}
	return text, nil
}

type completeFunc func(ctx context.Context, prompt string) (string, error)

// LLMSummarizer calls a chat completion backend, caching summaries by
// content so re-generating a digest does not re-bill the same items.
type LLMSummarizer struct {
	complete completeFunc
	cacheOn  bool

	mu    sync.Mutex
	cache map[string]string
}

func newLLMSummarizer(cfg config.LLM, complete completeFunc) *LLMSummarizer {
	return &LLMSummarizer{
		complete: complete,
		cacheOn:  cfg.CacheSummaries,
		cache:    map[string]string{},
	}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, item core.Item) (string, error) {
	key := cacheKey(item)
	if s.cacheOn {
		s.mu.Lock()
		cached, ok := s.cache[key]
		s.mu.Unlock()
		if ok {
			return cached, nil
		}
	}

	summary, err := s.complete(ctx, buildPrompt(item))
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)

	if s.cacheOn {
		s.mu.Lock()
		s.cache[key] = summary
		s.mu.Unlock()
	}
	return summary, nil
}

func cacheKey(item core.Item) string {
	seed := item.URL + ":" + item.Title + ":" + truncateRunes(item.Content, 200)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}

func buildPrompt(item core.Item) string {
	var b strings.Builder
	b.WriteString("Summarize this article in 1-2 sentences for a technical daily digest. ")
	b.WriteString("Be factual and specific; no hype.\n\n")
	b.WriteString("Title: " + item.Title + "\n")
	if item.Content != "" {
		b.WriteString("\nContent:\n" + truncateRunes(item.Content, promptBodyMax) + "\n")
	}
	return b.String()
}

func openaiCompleter(client *openai.Client, cfg config.LLM) completeFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message.Content, nil
	}
}

func anthropicCompleter(client *anthropic.Client, cfg config.LLM) completeFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(cfg.Model),
			MaxTokens: int64(cfg.MaxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", err
		}
		for _, block := range msg.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", fmt.Errorf("no text block in response")
	}
}

// summarizeAll fills in summaries for every digest item with bounded
// concurrency. A failing item falls back to extractive text; the digest
// never fails because one summary call did.
func summarizeAll(ctx context.Context, s Summarizer, items []core.DigestItem, workers int) {
	if workers < 1 {
		workers = defaultWorkers
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range items {
		i := i
		g.Go(func() error {
			summary, err := s.Summarize(ctx, items[i].Item)
			if err != nil || summary == "" {
				if err != nil {
					logger.Warn("Summary failed, falling back", "item", items[i].Item.ID, "error", err.Error())
				}
				summary = fallbackSummary(items[i].Item)
			}
			items[i].Summary = summary
			return nil
		})
	}
	_ = g.Wait()
}

// fallbackSummary is the first 200 characters of the title.
func fallbackSummary(item core.Item) string {
	text := strings.Join(strings.Fields(item.Title), " ")
	if len([]rune(text)) > fallbackChars {
		text = truncateRunes(text, fallbackChars) + "…"
	}
	return text
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
