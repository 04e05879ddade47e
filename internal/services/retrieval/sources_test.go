// File: internal/services/retrieval/sources_test.go
package retrieval

import (
	"testing"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

func mustMetadata(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	md, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("building metadata: %v", err)
	}
	return md
}

func scoredVector(id string, metadata *structpb.Struct) *pinecone.ScoredVector {
	return &pinecone.ScoredVector{
		Vector: &pinecone.Vector{Id: id, Metadata: metadata},
	}
}

func testService(config *Config) *Service {
	return &Service{config: config, logger: &noopLogger{}}
}

type noopLogger struct{}

func (*noopLogger) Info(string, ...interface{})  {}
func (*noopLogger) Error(string, ...interface{}) {}
func (*noopLogger) Debug(string, ...interface{}) {}
func (*noopLogger) Warn(string, ...interface{})  {}

func TestExtractSourcesTitlePriority(t *testing.T) {
	svc := testService(&Config{MaxSources: 5})

	matches := []*pinecone.ScoredVector{
		scoredVector("vec-1", mustMetadata(t, map[string]interface{}{
			"title":       "Deploy Runbook",
			"source_file": "deploy_runbook.md",
		})),
		scoredVector("vec-2", mustMetadata(t, map[string]interface{}{
			"source_file": "release_checklist.md",
		})),
		scoredVector("vec-3", nil),
	}

	sources := svc.extractSources(matches)
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[0].Title != "Deploy Runbook" || sources[0].Ref != "vec-1" {
		t.Errorf("unexpected first source: %+v", sources[0])
	}
	if sources[1].Title != "release checklist" {
		t.Errorf("expected cleaned filename title, got %q", sources[1].Title)
	}
	if sources[2].Title != "vec-3" {
		t.Errorf("expected vector id fallback, got %q", sources[2].Title)
	}
}

func TestExtractSourcesDeduplicatesAndCaps(t *testing.T) {
	svc := testService(&Config{MaxSources: 2})

	md := mustMetadata(t, map[string]interface{}{"title": "Incident Review"})
	matches := []*pinecone.ScoredVector{
		scoredVector("a", md),
		scoredVector("b", md),
		scoredVector("c", mustMetadata(t, map[string]interface{}{"title": "Roadmap"})),
		scoredVector("d", mustMetadata(t, map[string]interface{}{"title": "Extra"})),
	}

	sources := svc.extractSources(matches)
	if len(sources) != 2 {
		t.Fatalf("expected cap of 2 sources, got %d", len(sources))
	}
	if sources[0].Title != "Incident Review" || sources[1].Title != "Roadmap" {
		t.Errorf("unexpected sources: %+v", sources)
	}
}

func TestExtractSourcesSkipsNilAndEmpty(t *testing.T) {
	svc := testService(&Config{MaxSources: 5})

	matches := []*pinecone.ScoredVector{
		nil,
		{Vector: nil},
		scoredVector("", mustMetadata(t, map[string]interface{}{"title": "   "})),
	}

	sources := svc.extractSources(matches)
	if len(sources) != 0 {
		t.Fatalf("expected no sources, got %+v", sources)
	}
}

func TestCleanFilename(t *testing.T) {
	cases := map[string]string{
		"deploy_runbook.md": "deploy runbook",
		"notes.md":          "notes",
		"plain":             "plain",
		"  spaced_out.md":   "spaced out",
	}
	for in, want := range cases {
		if got := cleanFilename(in); got != want {
			t.Errorf("cleanFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
