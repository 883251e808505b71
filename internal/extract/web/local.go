package web

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// DefaultEvalTimeout bounds one script evaluation in the local VM.
const DefaultEvalTimeout = 2 * time.Second

// LocalSurface is an in-process web surface backed by a goja VM. It serves
// hosts whose web view exposes a DOM snapshot but no script bridge: the
// snapshot is rebuilt as a document proxy and the same injected script runs
// against it locally.
type LocalSurface struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	doc     *Element
	pageURL string
	scrollX int
	scrollY int
	visible bool
	timeout time.Duration
}

// NewLocalSurface creates a local surface serving the given document.
func NewLocalSurface(doc *Element, pageURL string) *LocalSurface {
	return &LocalSurface{
		vm:      goja.New(),
		doc:     doc,
		pageURL: pageURL,
		visible: true,
		timeout: DefaultEvalTimeout,
	}
}

// SetDocument swaps the served document, simulating a navigation or mutation.
func (s *LocalSurface) SetDocument(doc *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
}

// SetScroll sets the reported viewport scroll offset.
func (s *LocalSurface) SetScroll(x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollX, s.scrollY = x, y
}

// SetVisible controls the reported visibility.
func (s *LocalSurface) SetVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = v
}

// Evaluate runs script against the document proxy with a timeout interrupt.
func (s *LocalSurface) Evaluate(ctx context.Context, script string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return "null", nil
	}

	document := s.vm.NewObject()
	if err := document.Set("body", s.vm.ToValue(s.doc.toScriptObject())); err != nil {
		return "", fmt.Errorf("bind document: %w", err)
	}
	if err := s.vm.Set("document", document); err != nil {
		return "", fmt.Errorf("bind document: %w", err)
	}

	timer := time.AfterFunc(s.timeout, func() {
		s.vm.Interrupt("evaluation timeout exceeded")
	})
	defer timer.Stop()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.vm.Interrupt("context cancelled")
		case <-stop:
		}
	}()

	val, err := s.vm.RunString(script)
	if err != nil {
		s.vm.ClearInterrupt()
		return "", err
	}
	return val.String(), nil
}

// ScrollOffset returns the current viewport scroll position.
func (s *LocalSurface) ScrollOffset() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollX, s.scrollY
}

// URL returns the page URL.
func (s *LocalSurface) URL() string { return s.pageURL }

// Visible reports whether the surface is on screen.
func (s *LocalSurface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}
