package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AICC2024/video-review/internal/review/orchestrator"
)

const (
	TypeAssetReview    = "asset_review"
	TypeDocumentReview = "document_review"
)

type Handler interface {
	Type() string
	Run(ctx context.Context, job orchestrator.Job) (orchestrator.Result, error)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TypeFor names the handler that runs job.
func TypeFor(job orchestrator.Job) string {
	if job.WholeAsset {
		return TypeDocumentReview
	}
	return TypeAssetReview
}
