package state

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// SnapshotHost decorates a core.Host with the state store. Successful
// listings are saved; when the host fails to list for any reason other
// than NotFound or cancellation, the last saved listing is served instead.
// RequireNamespace and FetchDoc pass straight through.
type SnapshotHost struct {
	inner  core.Host
	store  *Store
	logger *slog.Logger
}

// tracingSnapshotHost keeps the core.Tracer capability of the inner host.
type tracingSnapshotHost struct {
	*SnapshotHost
	tracer core.Tracer
}

func (h *tracingSnapshotHost) ToggleTrace(ctx context.Context, member core.Member) (bool, error) {
	return h.tracer.ToggleTrace(ctx, member)
}

// NewSnapshotHost wraps inner. The result implements core.Tracer exactly
// when inner does.
func NewSnapshotHost(inner core.Host, store *Store, logger *slog.Logger) core.Host {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &SnapshotHost{inner: inner, store: store, logger: logger}
	if tracer, ok := inner.(core.Tracer); ok {
		return &tracingSnapshotHost{SnapshotHost: h, tracer: tracer}
	}
	return h
}

// fallback reports whether a host error should be answered from the store.
func fallback(err error) bool {
	switch core.Classify(err) {
	case core.ErrorNotFound, core.ErrorCancelled:
		return false
	default:
		return true
	}
}

// ListNamespaces implements core.Host.
func (h *SnapshotHost) ListNamespaces(ctx context.Context) ([]core.NamespaceInfo, error) {
	infos, err := h.inner.ListNamespaces(ctx)
	if err == nil {
		if serr := h.store.SaveNamespaces(ctx, infos); serr != nil {
			h.logger.Warn("failed to save namespace snapshot", "error", serr)
		}
		return infos, nil
	}
	if !fallback(err) {
		return nil, err
	}

	records, serr := h.store.Namespaces(ctx)
	if serr != nil || len(records) == 0 {
		return nil, err
	}
	h.logger.Warn("host unavailable, serving namespace snapshot", "error", err, "namespaces", len(records))
	out := make([]core.NamespaceInfo, len(records))
	for i, r := range records {
		out[i] = r.NamespaceInfo
	}
	return out, nil
}

// ListMembers implements core.Host.
func (h *SnapshotHost) ListMembers(ctx context.Context, namespace string) ([]core.MemberInfo, error) {
	members, err := h.inner.ListMembers(ctx, namespace)
	if err == nil {
		if serr := h.store.SaveMembers(ctx, namespace, members); serr != nil {
			h.logger.Warn("failed to save member snapshot", "namespace", namespace, "error", serr)
		}
		return members, nil
	}
	if !fallback(err) {
		return nil, err
	}

	cached, serr := h.store.Members(ctx, namespace)
	if serr != nil {
		return nil, err
	}
	h.logger.Warn("host unavailable, serving member snapshot", "namespace", namespace, "error", err)
	return cached, nil
}

// RequireNamespace implements core.Host.
func (h *SnapshotHost) RequireNamespace(ctx context.Context, namespace string) error {
	return h.inner.RequireNamespace(ctx, namespace)
}

// FetchDoc implements core.Host.
func (h *SnapshotHost) FetchDoc(ctx context.Context, member core.Member, facet core.DocFacet) (string, error) {
	return h.inner.FetchDoc(ctx, member, facet)
}
