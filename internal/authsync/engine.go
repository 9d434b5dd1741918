package authsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ZebulonRouseFrantzich/cdx/internal/config"
	"github.com/ZebulonRouseFrantzich/cdx/internal/credential"
	"github.com/ZebulonRouseFrantzich/cdx/internal/httpclient"
	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
)

// unknownVersion is reported when the local client version is not known.
const unknownVersion = "unknown"

// Phase names the call site of a sync.
type Phase string

const (
	PhasePull Phase = "pull"
	PhasePush Phase = "push"
)

// Options configures an Engine.
type Options struct {
	BaseURL  string
	APIKey   string
	Optional bool
	// LockPath, when set, serializes exchanges across processes.
	LockPath string
}

// Engine drives the retrieve/store protocol.
type Engine struct {
	client httpclient.Client
	store  *credential.Store
	opts   Options
	logger *slog.Logger
}

// NewEngine creates an engine writing through store.
func NewEngine(client httpclient.Client, store *credential.Store, opts Options, logger *slog.Logger) *Engine {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Engine{
		client: client,
		store:  store,
		opts:   opts,
		logger: logging.OrDiscard(logger),
	}
}

// Configured reports whether the engine has an endpoint and key.
func (e *Engine) Configured() bool {
	return e.opts.BaseURL != "" && e.opts.APIKey != ""
}

// Header returns the authentication header for service requests.
func (e *Engine) Header() http.Header {
	return http.Header{"X-API-Key": {e.opts.APIKey}}
}

// BaseURL returns the service base URL without a trailing slash.
func (e *Engine) BaseURL() string {
	return e.opts.BaseURL
}

// Versions carries what the caller knows about local versions.
type Versions struct {
	Client  string
	Wrapper string
}

// Sync performs one exchange. It never returns nil.
func (e *Engine) Sync(ctx context.Context, phase Phase, v Versions) *Outcome {
	category := "auth"
	if phase == PhasePush {
		category = "push"
	}
	logger := e.logger.With(logging.CategoryKey, category)

	if !e.Configured() {
		if e.opts.Optional {
			logger.Info("sync not configured; continuing in optional mode")
			return &Outcome{Status: StatusSkipped, Reason: "skip-sync"}
		}
		logger.Error("sync not configured", "err", config.ErrMissingConfig)
		return &Outcome{Status: StatusTransportFailed, Reason: "missing-config", Err: config.ErrMissingConfig}
	}

	if e.opts.LockPath != "" {
		lock, err := credential.AcquireLock(ctx, e.opts.LockPath)
		if err != nil {
			logger.Error("unable to lock credential file", "err", err)
			return &Outcome{Status: StatusTransportFailed, Reason: "lock", Err: err}
		}
		defer lock.Release()
	}

	local := e.loadLocal(logger)
	out := e.exchange(ctx, logger, local, v)

	if !out.Healthy() {
		if out.Deleted {
			if err := e.store.Remove(); err != nil {
				logger.Warn("unable to remove local auth", "err", err)
			}
		}
		return out
	}

	if out.Changed() {
		e.persist(logger, local, out)
	}
	out.NewRefresh = out.Document.LastRefresh()
	return out
}

// loadLocal returns the stored document or the default one. An invalid
// file is removed first.
func (e *Engine) loadLocal(logger *slog.Logger) credential.Document {
	doc, err := e.store.Load()
	switch {
	case err != nil && !e.store.Exists():
		return credential.Default()
	case err != nil:
		logger.Warn("local auth.json unreadable; removing")
	default:
		verr := credential.Validate(doc)
		if verr == nil {
			return doc
		}
		logger.Warn("local auth.json invalid; removing", "reason", verr.Error())
	}
	if err := e.store.Remove(); err != nil {
		logger.Warn("unable to remove invalid auth.json", "err", err)
	}
	return credential.Default()
}

func (e *Engine) exchange(ctx context.Context, logger *slog.Logger, local credential.Document, v Versions) *Outcome {
	normalized := local.Normalized()
	digest, err := credential.Digest(normalized)
	if err != nil {
		return &Outcome{Status: StatusTransportFailed, Reason: "digest", Err: err}
	}

	clientVersion := v.Client
	if clientVersion == "" {
		clientVersion = unknownVersion
	}
	lastRefresh := normalized.LastRefresh()
	if lastRefresh == "" {
		lastRefresh = credential.DefaultLastRefresh
	}

	data, fail := e.post(ctx, retrieveRequest{
		Command:        commandRetrieve,
		LastRefresh:    lastRefresh,
		Digest:         digest,
		ClientVersion:  clientVersion,
		WrapperVersion: v.Wrapper,
	})
	if fail != nil {
		return e.failed(logger, fail)
	}
	versions := data.Versions

	switch data.Status {
	case "valid":
		logger.Info("synced (no change)")
		return &Outcome{Status: StatusValid, Document: local, Versions: nonEmpty(versions)}

	case "outdated":
		doc := data.document()
		if doc == nil {
			doc = local.Clone()
		}
		if r := data.refresh(); r != "" {
			doc.SetLastRefresh(r)
		}
		logger.Info("updated from api", "last_refresh", doc.LastRefresh())
		return &Outcome{Status: StatusOutdated, Document: doc, Versions: nonEmpty(versions)}
	}

	if data.Status != "missing" && data.Status != "upload_required" {
		logger.Debug("unrecognized status; uploading", "status", data.Status)
	}

	storeDigest := data.CanonicalDigest
	if storeDigest == "" {
		storeDigest = digest
	}
	stored, fail := e.post(ctx, storeRequest{
		Command:        commandStore,
		Auth:           normalized,
		ClientVersion:  clientVersion,
		Digest:         storeDigest,
		WrapperVersion: v.Wrapper,
	})
	if fail != nil {
		return e.failed(logger, fail)
	}

	doc := stored.document()
	if doc == nil {
		doc = local.Clone()
	}
	if r := stored.refresh(); r != "" {
		doc.SetLastRefresh(r)
	}
	if !stored.Versions.empty() {
		versions = stored.Versions
	}
	logger.Info("uploaded current auth")
	return &Outcome{Status: StatusUploadRequired, Document: doc, Versions: nonEmpty(versions)}
}

// callFailure is a transport error or a classified error response.
type callFailure struct {
	failure
	err error
}

func (e *Engine) post(ctx context.Context, payload any) (*responseData, *callFailure) {
	resp, err := httpclient.PostJSON(ctx, e.client, e.opts.BaseURL+"/auth", e.Header(), payload)
	if err != nil {
		return nil, &callFailure{failure{StatusTransportFailed, "transport error", true}, err}
	}
	if !resp.OK() {
		f := classify(resp.StatusCode, resp.Body)
		return nil, &callFailure{f, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}}
	}
	data, err := decodeResponse(resp.Body)
	if err != nil {
		return nil, &callFailure{failure{StatusTransportFailed, "malformed response", true}, err}
	}
	return data, nil
}

func (e *Engine) failed(logger *slog.Logger, f *callFailure) *Outcome {
	out := &Outcome{Status: f.status, Reason: f.reason, Deleted: f.deleteLocal, Err: f.err}

	attrs := []any{"reason", f.reason}
	if f.deleteLocal {
		attrs = append(attrs, "local", "removed")
	} else {
		attrs = append(attrs, "local", "kept")
	}

	switch f.status {
	case StatusDenied:
		logger.Error("sync denied", attrs...)
	case StatusDisabled:
		logger.Error("sync disabled", attrs...)
	default:
		var te *httpclient.TransportError
		if errors.As(f.err, &te) {
			attrs = append(attrs, "err", te)
		} else if f.err != nil && !errors.As(f.err, new(*httpclient.StatusError)) {
			attrs = append(attrs, "err", f.err)
		}
		logger.Error("sync failed", attrs...)
	}
	return out
}

// persist writes the new document when it is valid and differs from disk.
func (e *Engine) persist(logger *slog.Logger, local credential.Document, out *Outcome) {
	if credential.Equal(local, out.Document) && e.store.Exists() {
		return
	}
	if err := credential.Validate(out.Document); err != nil {
		logger.Warn("not writing auth.json from service", "reason", err)
		return
	}
	if err := e.store.Write(out.Document); err != nil {
		logger.Error("unable to write auth.json", "err", err)
		out.Err = fmt.Errorf("persist credential: %w", err)
	}
}

func nonEmpty(v *RemoteVersions) *RemoteVersions {
	if v.empty() {
		return nil
	}
	return v
}
