package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

type stubProcessor struct {
	name    string
	exts    []string
	accepts bool
	called  bool
}

func (s *stubProcessor) Name() string                  { return s.name }
func (s *stubProcessor) SupportedExtensions() []string { return s.exts }
func (s *stubProcessor) CanProcess(raw *domain.RawContextProperties) bool {
	return s.accepts
}
func (s *stubProcessor) Process(_ context.Context, raw *domain.RawContextProperties) []domain.ProcessedContext {
	s.called = true
	return []domain.ProcessedContext{{ID: raw.ObjectID}}
}

func TestDispatchFirstMatchWins(t *testing.T) {
	first := &stubProcessor{name: "first", accepts: true}
	second := &stubProcessor{name: "second", accepts: true}
	r := NewRegistry(first, second)

	results, ok := r.Dispatch(context.Background(), &domain.RawContextProperties{ObjectID: "x"})
	assert.True(t, ok)
	assert.Len(t, results, 1)
	assert.True(t, first.called)
	assert.False(t, second.called)
}

func TestDispatchNoMatch(t *testing.T) {
	r := NewRegistry(&stubProcessor{name: "only"})

	results, ok := r.Dispatch(context.Background(), &domain.RawContextProperties{ContentPath: "a.bin"})
	assert.False(t, ok)
	assert.Nil(t, results)
}

func TestDispatchNilRaw(t *testing.T) {
	r := NewRegistry(&stubProcessor{name: "only", accepts: true})
	_, ok := r.Dispatch(context.Background(), nil)
	assert.False(t, ok)
}

func TestSupportedExtensionsUnion(t *testing.T) {
	r := NewRegistry(
		&stubProcessor{name: "a", exts: []string{".py", ".go"}},
		&stubProcessor{name: "b", exts: []string{".go", ".json"}},
	)
	assert.Equal(t, []string{".py", ".go", ".json"}, r.SupportedExtensions())
}

func TestRegisterAppends(t *testing.T) {
	r := NewRegistry()
	p := &stubProcessor{name: "late", accepts: true}
	r.Register(p)

	_, ok := r.Dispatch(context.Background(), &domain.RawContextProperties{})
	assert.True(t, ok)
}
