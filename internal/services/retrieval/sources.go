// File: internal/services/retrieval/sources.go
package retrieval

import (
	"context"
	"strings"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/iyunix/go-roomchat/internal/domain"
)

// Logger defines the logging interface used by the retrieval service.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// SourceProvider finds reference documents for an assistant response.
type SourceProvider interface {
	FindSources(ctx context.Context, embedding []float32) ([]domain.Source, error)
}

// Service queries the vector index for documents similar to the
// user's question and turns the matches into source citations.
type Service struct {
	config *Config
	index  *pinecone.IndexConnection
	retry  *RetryService
	logger Logger
}

// NewService connects to the configured index.
func NewService(config *Config, logger Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: config.APIKey})
	if err != nil {
		return nil, NewConnectionError("failed to create index client", err)
	}
	index, err := client.Index(pinecone.NewIndexConnParams{
		Host:      config.IndexHost,
		Namespace: config.Namespace,
	})
	if err != nil {
		return nil, NewConnectionError("failed to connect to index", err)
	}

	return &Service{
		config: config,
		index:  index,
		retry:  NewRetryService(config, logger),
		logger: logger,
	}, nil
}

// FindSources returns up to MaxSources unique citations for the given
// question embedding, best match first.
func (s *Service) FindSources(ctx context.Context, embedding []float32) ([]domain.Source, error) {
	var matches []*pinecone.ScoredVector
	err := s.retry.RetryWithTimeout(ctx, func(ctx context.Context) error {
		resp, err := s.index.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          embedding,
			TopK:            uint32(s.config.TopK),
			IncludeMetadata: true,
		})
		if err != nil {
			return NewOperationError("similarity query failed", err)
		}
		matches = resp.Matches
		return nil
	})
	if err != nil {
		return nil, err
	}

	sources := s.extractSources(matches)
	s.logger.Debug("sources extracted", "matches", len(matches), "unique_sources", len(sources))
	return sources, nil
}

// extractSources derives unique titled citations from scored matches.
func (s *Service) extractSources(matches []*pinecone.ScoredVector) []domain.Source {
	var sources []domain.Source
	seen := make(map[string]bool)

	for _, match := range matches {
		if match == nil || match.Vector == nil {
			continue
		}

		title := s.extractTitle(match)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		sources = append(sources, domain.Source{
			Title: title,
			Ref:   match.Vector.Id,
		})
		if len(sources) >= s.config.MaxSources {
			break
		}
	}
	return sources
}

func (s *Service) extractTitle(match *pinecone.ScoredVector) string {
	// Priority: title > source_file > vector id.
	if title := metadataString(match.Vector.Metadata, "title"); title != "" {
		return title
	}
	if sourceFile := metadataString(match.Vector.Metadata, "source_file"); sourceFile != "" {
		return cleanFilename(sourceFile)
	}
	return match.Vector.Id
}

// metadataString safely extracts a string field from vector metadata.
func metadataString(metadata *structpb.Struct, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata.GetFields()[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(value.GetStringValue())
}

// cleanFilename cleans up source filenames for display.
func cleanFilename(filename string) string {
	cleaned := strings.TrimSuffix(filename, ".md")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	return strings.TrimSpace(cleaned)
}
