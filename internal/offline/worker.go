// Package offline serves app-shell assets from a versioned cache when the
// network is unavailable. Vision API traffic always goes to the network.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go-vision-lens/internal/logger"
	"go-vision-lens/internal/storage"
)

// OfflineMessage is the body of the synthetic response served when neither
// the cache nor the network can answer.
const OfflineMessage = "Offline - Please check your connection"

// maxCacheableSize bounds responses copied into the cache
const maxCacheableSize = 16 << 20

// installConcurrency bounds parallel manifest fetches
const installConcurrency = 4

var timeNow = func() time.Time { return time.Now().UTC() }

// DefaultManifest lists the app-shell paths installed into the cache
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/style.css",
	"/app.js",
	"/manifest.json",
	"/icon.svg",
}

// State is the lifecycle position of a Worker
type State string

const (
	StateIdle      State = "idle"
	StateInstalled State = "installed"
	StateActivated State = "activated"
	StateFailed    State = "failed"
)

// Options configures a Worker
type Options struct {
	// Origin is the scheme://host of the app-shell assets
	Origin    string
	CacheName string
	// BypassHosts are never served from or written to the cache
	BypassHosts []string
	// Manifest defaults to DefaultManifest
	Manifest []string
}

// Worker is an http.RoundTripper implementing install, activate and fetch
type Worker struct {
	store     storage.CacheStorage
	network   http.RoundTripper
	fetcher   storage.AssetFetcher
	origin    *url.URL
	cacheName string
	bypass    map[string]bool
	manifest  []string

	mu    sync.RWMutex
	state State
}

// NewWorker creates a worker in the idle state. Until Install succeeds every
// request goes straight to network.
func NewWorker(store storage.CacheStorage, network http.RoundTripper, opts Options) (*Worker, error) {
	if store == nil {
		return nil, errors.New("offline worker needs a cache storage")
	}
	if network == nil {
		network = storage.NewNetworkTransport()
	}
	if opts.CacheName == "" {
		return nil, errors.New("offline worker needs a cache name")
	}
	origin, err := url.Parse(strings.TrimRight(opts.Origin, "/"))
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid asset origin %q", opts.Origin)
	}
	manifest := opts.Manifest
	if len(manifest) == 0 {
		manifest = DefaultManifest
	}

	bypass := make(map[string]bool, len(opts.BypassHosts))
	for _, h := range opts.BypassHosts {
		if h != "" {
			bypass[strings.ToLower(h)] = true
		}
	}

	return &Worker{
		store:     store,
		network:   network,
		fetcher:   storage.NewHTTPAssetFetcher(network),
		origin:    origin,
		cacheName: opts.CacheName,
		bypass:    bypass,
		manifest:  append([]string(nil), manifest...),
		state:     StateIdle,
	}, nil
}

// State returns the current lifecycle state
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// CacheName returns the current cache version name
func (w *Worker) CacheName() string {
	return w.cacheName
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) active() bool {
	s := w.State()
	return s == StateInstalled || s == StateActivated
}

// Install fetches every manifest asset and stores them together. If any
// asset fails nothing is stored and the worker stays in pass-through mode.
func (w *Worker) Install(ctx context.Context) error {
	entries := make([]*storage.Entry, len(w.manifest))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(installConcurrency)
	for i, path := range w.manifest {
		g.Go(func() error {
			entry, err := w.fetcher.Fetch(gctx, w.origin.String()+path)
			if err != nil {
				return fmt.Errorf("install %s: %w", path, err)
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.setState(StateFailed)
		logger.WithError(err).WithField("cache", w.cacheName).Error("Offline cache installation failed")
		return err
	}

	if err := w.store.PutAll(ctx, w.cacheName, entries); err != nil {
		w.setState(StateFailed)
		logger.WithError(err).WithField("cache", w.cacheName).Error("Offline cache installation failed")
		return fmt.Errorf("install: %w", err)
	}

	w.setState(StateInstalled)
	logger.WithFields(logrus.Fields{
		"cache":  w.cacheName,
		"assets": len(entries),
	}).Info("Offline cache installed")
	return nil
}

// Activate deletes every cache whose name is not the current version
func (w *Worker) Activate(ctx context.Context) error {
	names, err := w.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	var errs []error
	for _, name := range names {
		if name == w.cacheName {
			continue
		}
		if err := w.store.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete cache %s: %w", name, err))
			continue
		}
		logger.WithField("cache", name).Info("Deleted stale offline cache")
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if w.active() {
		w.setState(StateActivated)
	}
	return nil
}

// RoundTrip implements the fetch handler
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if !w.active() || req.Method != http.MethodGet || w.bypassed(req.URL) {
		return w.network.RoundTrip(req)
	}

	ctx := req.Context()
	key := cacheKey(req.URL)

	entry, err := w.store.Match(ctx, w.cacheName, key)
	switch {
	case err == nil:
		return entryResponse(req, entry), nil
	case !errors.Is(err, storage.ErrCacheMiss):
		logger.WithError(err).WithField("url", key).Warn("Offline cache lookup failed")
	}

	resp, err := w.network.RoundTrip(req)
	if err != nil {
		logger.WithError(err).WithField("url", key).Debug("Network unavailable, serving offline notice")
		return offlineResponse(req), nil
	}

	if resp.StatusCode != http.StatusOK || !w.sameOrigin(req.URL) {
		return resp, nil
	}
	return w.storeCopy(ctx, key, resp), nil
}

// storeCopy buffers the body, stores a copy and returns an equivalent
// response. Oversized bodies are passed through uncached.
func (w *Worker) storeCopy(ctx context.Context, key string, resp *http.Response) *http.Response {
	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxCacheableSize+1))
	if err != nil {
		resp.Body.Close()
		logger.WithError(err).WithField("url", key).Debug("Reading response failed, serving offline notice")
		return offlineResponse(resp.Request)
	}
	if len(buf) > maxCacheableSize {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(buf), resp.Body), resp.Body}
		return resp
	}
	resp.Body.Close()

	entry := &storage.Entry{
		URL:      key,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     buf,
		StoredAt: timeNow(),
	}
	if err := w.store.Put(ctx, w.cacheName, entry); err != nil {
		logger.WithError(err).WithField("url", key).Warn("Offline cache write failed")
	}

	resp.Body = io.NopCloser(bytes.NewReader(buf))
	resp.ContentLength = int64(len(buf))
	return resp
}

func (w *Worker) bypassed(u *url.URL) bool {
	return w.bypass[strings.ToLower(u.Hostname())]
}

func (w *Worker) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, w.origin.Scheme) && strings.EqualFold(u.Host, w.origin.Host)
}

func cacheKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}

func entryResponse(req *http.Request, e *storage.Entry) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Length", strconv.Itoa(len(e.Body)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func offlineResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:     "503 Service Unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			"Content-Type":   []string{"text/plain"},
			"Content-Length": []string{strconv.Itoa(len(OfflineMessage))},
		},
		Body:          io.NopCloser(strings.NewReader(OfflineMessage)),
		ContentLength: int64(len(OfflineMessage)),
		Request:       req,
	}
}
