package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/core/ports/driving"
	"github.com/meridian-labs/ctxd/internal/logger"
)

// Ensure TaggingService implements the interface.
var _ driving.Tagger = (*TaggingService)(nil)

// DefaultMaxContentLength caps how much content one tagging request
// sends to the model.
const DefaultMaxContentLength = 4000

// maxTagsPerKind caps each tag array after cleaning.
const maxTagsPerKind = 10

const tagExtractionPrompt = `You are an expert at analyzing content and extracting relevant tags and keywords.

Given the following content, extract:
1. Main topics (high-level themes)
2. Keywords (important terms and concepts)
3. Entities (people, organizations, locations, products)
4. Categories (content classification)

Content:
%s

Respond with a JSON object in the following format:
{
    "topics": ["topic1", "topic2", ...],
    "keywords": ["keyword1", "keyword2", ...],
    "entities": ["entity1", "entity2", ...],
    "categories": ["category1", "category2", ...]
}

Keep the response concise and relevant. Limit each array to 10 items maximum.`

const tagSystemPrompt = "You are a helpful assistant that extracts tags and keywords from content."

// TaggingService generates tags from content via the LLM capability,
// throttled by a client-side rate limiter. It degrades to empty tag sets
// on every failure path so callers never branch on tagging errors.
type TaggingService struct {
	llm              driven.LLMService
	limiter          *rate.Limiter
	maxContentLength int
}

// TaggingOption configures the tagging service.
type TaggingOption func(*TaggingService)

// WithMaxContentLength caps the content sent per request.
func WithMaxContentLength(n int) TaggingOption {
	return func(s *TaggingService) {
		if n > 0 {
			s.maxContentLength = n
		}
	}
}

// WithRateLimit throttles LLM calls to rps requests per second.
func WithRateLimit(rps float64, burst int) TaggingOption {
	return func(s *TaggingService) {
		if rps > 0 && burst > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewTaggingService creates a tagging service. llm may be nil, in which
// case every GenerateTags call returns an empty set.
func NewTaggingService(llm driven.LLMService, opts ...TaggingOption) *TaggingService {
	s := &TaggingService{
		llm:              llm,
		limiter:          rate.NewLimiter(rate.Limit(2), 1),
		maxContentLength: DefaultMaxContentLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateTags asks the model for topics, keywords, entities and
// categories. It never fails: a missing capability, transport error or
// unparseable reply all degrade to an empty TagSet.
func (s *TaggingService) GenerateTags(ctx context.Context, content, title string) domain.TagSet {
	if s.llm == nil {
		logger.Debug("Tagging skipped: %v", domain.ErrLLMUnavailable)
		return domain.TagSet{}
	}

	if len(content) > s.maxContentLength {
		content = content[:s.maxContentLength] + "..."
	}
	if title != "" {
		content = fmt.Sprintf("Title: %s\n\n%s", title, content)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		logger.Warn("Tagging rate limit wait: %v", err)
		return domain.TagSet{}
	}

	messages := []driven.ChatMessage{
		{Role: "system", Content: tagSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(tagExtractionPrompt, content)},
	}

	response, err := s.llm.Chat(ctx, messages, driven.ChatOptions{})
	if err != nil {
		logger.Warn("Generating tags: %v", err)
		return domain.TagSet{}
	}
	if response == "" {
		logger.Warn("Empty response from LLM for tag generation")
		return domain.TagSet{}
	}

	parsed, err := parseTagResponse(response)
	if err != nil {
		logger.Warn("Parsing tag response: %v", err)
		return domain.TagSet{}
	}

	set := domain.TagSet{
		Topics:     domain.NormaliseTags(parsed["topics"], maxTagsPerKind),
		Keywords:   domain.NormaliseTags(parsed["keywords"], maxTagsPerKind),
		Entities:   domain.NormaliseTags(parsed["entities"], maxTagsPerKind),
		Categories: domain.NormaliseTags(parsed["categories"], maxTagsPerKind),
	}

	logger.Info("Generated tags: %d topics, %d keywords, %d entities, %d categories",
		len(set.Topics), len(set.Keywords), len(set.Entities), len(set.Categories))
	return set
}

// TagsFromPath derives cheap tags from a path: the file stem, the
// extension and up to five components including parent directory names.
func (s *TaggingService) TagsFromPath(path string) []string {
	var tags []string

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if stem := strings.TrimSuffix(base, ext); stem != "" {
		tags = append(tags, stem)
	}
	if ext != "" {
		tags = append(tags, strings.TrimPrefix(ext, "."))
	}

	dir := filepath.Dir(path)
	for dir != "" {
		name := filepath.Base(dir)
		parent := filepath.Dir(dir)
		if name != "" && name != "." && name != ".." && name != "/" && name != string(filepath.Separator) {
			tags = append(tags, name)
			if len(tags) >= 5 {
				break
			}
		}
		if parent == dir {
			break
		}
		dir = parent
	}

	return tags
}

// parseTagResponse extracts the tag arrays from a model reply, tolerating
// markdown fences and prose around the JSON object. Non-string array
// members are coerced to strings.
func parseTagResponse(response string) (map[string][]string, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decoding tag JSON: %w", err)
	}

	out := make(map[string][]string, 4)
	for _, kind := range []string{"topics", "keywords", "entities", "categories"} {
		items, ok := raw[kind].([]any)
		if !ok {
			continue
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case string:
				values = append(values, v)
			default:
				values = append(values, fmt.Sprint(v))
			}
		}
		out[kind] = values
	}

	return out, nil
}
