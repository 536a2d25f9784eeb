// Package router turns a chat request into a provider completion: it
// resolves the credential, picks the model and calls the provider once.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/catalog"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/classifier"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/credential"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/models"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/selector"
)

const defaultCallTimeout = 60 * time.Second

// ErrEmptyMessage is returned when a request carries no user message.
var ErrEmptyMessage = errors.New("message must not be empty")

// Resolver hands out the provider handle serving a credential.
type Resolver interface {
	Resolve(ctx context.Context, supplied credential.Credential) (*credential.Handle, error)
}

// Options holds the completion defaults.
type Options struct {
	DefaultModel     string
	DynamicSelection bool
	SystemPrompt     string
	Temperature      *float64
	MaxTokens        int
	Timeout          time.Duration
	// BackendTimeouts overrides Timeout per backend name.
	BackendTimeouts map[string]time.Duration
}

// Request is one chat turn. Credential is empty when the operator credential should serve it.
type Request struct {
	Message        string
	Context        []models.Message
	SystemPrompt   string
	Credential     credential.Credential
	Model          string
	Temperature    *float64
	MaxTokens      *int
	RefreshCatalog bool
}

// Result is a completed chat turn.
type Result struct {
	ID           string
	Reply        string
	Model        string // as echoed by the provider
	ModelUsed    string // as requested from the provider
	Source       credential.Source
	Backend      string
	Usage        models.Usage
	Selection    selector.Result
	Profile      *classifier.Profile
	FinishReason string
}

// Router dispatches chat requests to the provider bound to their credential.
type Router struct {
	resolver   Resolver
	catalogs   *catalog.Service
	classifier *classifier.Classifier
	selector   *selector.Selector
	opts       Options
}

// New constructs a router from its collaborators.
func New(resolver Resolver, catalogs *catalog.Service, cls *classifier.Classifier, sel *selector.Selector, opts Options) *Router {
	if opts.DefaultModel == "" {
		opts.DefaultModel = catalog.DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCallTimeout
	}
	if cls == nil {
		cls = classifier.New()
	}
	if sel == nil {
		sel = selector.New(nil)
	}
	return &Router{
		resolver:   resolver,
		catalogs:   catalogs,
		classifier: cls,
		selector:   sel,
		opts:       opts,
	}
}

// Complete serves req. Provider failures are returned classified and are never retried.
func (r *Router) Complete(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	handle, err := r.resolver.Resolve(ctx, req.Credential)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}

	selection, profile := r.choose(ctx, handle, req)

	chatReq := models.ChatRequest{
		Model:       selection.Model,
		Messages:    r.conversation(req),
		Temperature: r.temperature(req),
		MaxTokens:   r.maxTokens(req),
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout(handle.Backend()))
	defer cancel()

	resp, err := handle.Provider.Chat(callCtx, chatReq)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, provider.ErrTransient) {
			err = provider.TransportError(handle.Backend(), "chat", context.DeadlineExceeded)
		}
		slog.Warn("chat completion failed",
			"credential", handle.Credential,
			"source", string(handle.Source),
			"backend", handle.Backend(),
			"model", selection.Model,
			"reason", provider.KindOf(err).String(),
		)
		return nil, fmt.Errorf("provider %s chat request: %w", handle.Backend(), err)
	}

	slog.Info("chat completion",
		"credential", handle.Credential,
		"source", string(handle.Source),
		"backend", handle.Backend(),
		"model", selection.Model,
		"confidence", selection.Confidence,
		"total_tokens", resp.Usage.TotalTokens,
	)

	return &Result{
		ID:           resp.ID,
		Reply:        resp.Message.Content,
		Model:        resp.Model,
		ModelUsed:    selection.Model,
		Source:       handle.Source,
		Backend:      handle.Backend(),
		Usage:        resp.Usage,
		Selection:    selection,
		Profile:      profile,
		FinishReason: resp.FinishReason,
	}, nil
}

func (r *Router) choose(ctx context.Context, handle *credential.Handle, req Request) (selector.Result, *classifier.Profile) {
	userCredential := handle.Source == credential.SourceUser

	if model := strings.TrimSpace(req.Model); model != "" {
		return r.selector.Select(classifier.Profile{}, nil, model, userCredential), nil
	}
	if !r.opts.DynamicSelection || r.catalogs == nil {
		return selector.Result{
			Model:      r.opts.DefaultModel,
			Rationale:  "dynamic selection disabled; using configured default model",
			Confidence: selector.ConfidenceBase,
		}, nil
	}

	profile := r.classifier.Classify(req.Message, req.Context, req.SystemPrompt)
	snap := r.catalogs.Models(ctx, handle.Credential.Reveal(), handle.Provider, req.RefreshCatalog)
	return r.selector.Select(profile, snap.Models, "", userCredential), &profile
}

// conversation builds a fresh message slice; req is left untouched.
func (r *Router) conversation(req Request) []models.Message {
	prompt := req.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = r.opts.SystemPrompt
	}

	out := make([]models.Message, 0, len(req.Context)+2)
	if prompt != "" {
		out = append(out, models.Message{Role: models.RoleSystem, Content: prompt})
	}
	out = append(out, models.CloneMessages(req.Context)...)
	out = append(out, models.Message{Role: models.RoleUser, Content: req.Message})
	return out
}

func (r *Router) callTimeout(backend string) time.Duration {
	if d, ok := r.opts.BackendTimeouts[backend]; ok && d > 0 {
		return d
	}
	return r.opts.Timeout
}

func (r *Router) temperature(req Request) *float64 {
	if req.Temperature != nil {
		v := *req.Temperature
		return &v
	}
	if r.opts.Temperature == nil {
		return nil
	}
	v := *r.opts.Temperature
	return &v
}

func (r *Router) maxTokens(req Request) *int {
	if req.MaxTokens != nil {
		v := *req.MaxTokens
		return &v
	}
	if r.opts.MaxTokens == 0 {
		return nil
	}
	v := r.opts.MaxTokens
	return &v
}

// Catalog returns the catalog visible to c, or to the operator credential when c is empty.
func (r *Router) Catalog(ctx context.Context, c credential.Credential, refresh bool) (catalog.Snapshot, error) {
	handle, err := r.resolver.Resolve(ctx, c)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("resolve credential: %w", err)
	}
	if r.catalogs == nil {
		ids, err := handle.Provider.ListModels(ctx)
		if err != nil {
			return catalog.Snapshot{}, err
		}
		return catalog.Snapshot{Models: ids, FetchedAt: time.Now()}, nil
	}
	return r.catalogs.Models(ctx, handle.Credential.Reveal(), handle.Provider, refresh), nil
}
