package feedserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/chrissnell/flightkml/internal/feed"
	"github.com/chrissnell/flightkml/internal/log"
	"github.com/chrissnell/flightkml/internal/providers"
	"github.com/chrissnell/flightkml/pkg/responseformat"
	"github.com/gorilla/mux"
)

// renderFailed is the only body clients see when a render fails.
const renderFailed = "Erro ao gerar KML"

// ArchiveFilename is suggested to clients downloading a KMZ.
const ArchiveFilename = "flights.kmz"

// Handlers contains all HTTP handlers for the feed server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// FeedInfo describes one feed in the /feeds listing.
type FeedInfo struct {
	Name           string `json:"name"`
	Title          string `json:"title"`
	Provider       string `json:"provider"`
	Schema         string `json:"schema"`
	Archive        bool   `json:"archive"`
	RefreshSeconds int    `json:"refresh_seconds"`
	KML            string `json:"kml"`
	KMZ            string `json:"kmz,omitempty"`
	Live           string `json:"live"`
}

// GetKML handles requests for a feed's KML document
func (h *Handlers) GetKML(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["feed"]
	res, err := h.controller.pipeline.Render(req.Context(), name)
	if err != nil {
		h.renderError(w, req, name, err)
		return
	}
	h.logSummary(w, res)

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(res.Body)
}

// GetKMZ handles requests for a feed's KMZ archive
func (h *Handlers) GetKMZ(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["feed"]
	res, err := h.controller.pipeline.RenderArchive(req.Context(), name)
	if err != nil {
		h.renderError(w, req, name, err)
		return
	}
	h.logSummary(w, res)

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ArchiveFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Body)))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(res.Body)
}

// GetLiveLink serves a NetworkLink document that keeps a viewer refreshing
// the feed.
func (h *Handlers) GetLiveLink(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["feed"]
	body, err := h.controller.pipeline.LiveLink(name, h.baseURL(req))
	if err != nil {
		h.renderError(w, req, name, err)
		return
	}
	w.Header().Set("Content-Type", feed.ContentTypeKML)
	w.Write(body)
}

// ListFeeds returns the configured feeds and their URLs as JSON, or
// MessagePack when asked for
func (h *Handlers) ListFeeds(w http.ResponseWriter, req *http.Request) {
	base := h.baseURL(req)
	feeds := h.controller.pipeline.Feeds()

	list := make([]FeedInfo, 0, len(feeds))
	for _, f := range feeds {
		info := FeedInfo{
			Name:           f.Name,
			Title:          f.Build.Title,
			Provider:       f.Fetcher.Name(),
			Schema:         string(f.Fetcher.Schema()),
			Archive:        f.Archive,
			RefreshSeconds: int(f.RefreshInterval.Seconds()),
			KML:            fmt.Sprintf("%s/%s.kml", base, f.Name),
			Live:           fmt.Sprintf("%s/%s/live.kml", base, f.Name),
		}
		if f.Archive {
			info.KMZ = fmt.Sprintf("%s/%s.kmz", base, f.Name)
		}
		list = append(list, info)
	}

	if err := h.formatter.WriteResponse(w, req, list); err != nil {
		h.controller.logger.Errorf("error encoding feed list: %v", err)
	}
}

// Health reports that the process is serving
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// renderError maps pipeline errors to status codes. The body never carries
// the underlying error.
func (h *Handlers) renderError(w http.ResponseWriter, req *http.Request, name string, err error) {
	var fetchErr *providers.FetchError
	switch {
	case errors.Is(err, feed.ErrUnknownFeed), errors.Is(err, feed.ErrArchiveDisabled):
		http.NotFound(w, req)
	case errors.As(err, &fetchErr):
		h.controller.logger.Errorw("error fetching feed", "feed", name, "provider", fetchErr.Provider, "status", fetchErr.StatusCode, "error", err)
		http.Error(w, renderFailed, http.StatusBadGateway)
	default:
		h.controller.logger.Errorw("error rendering feed", "feed", name, "error", err)
		http.Error(w, renderFailed, http.StatusInternalServerError)
	}
}

func (h *Handlers) logSummary(w http.ResponseWriter, res *feed.Result) {
	s := res.Summary
	h.controller.logger.Debugw("feed rendered",
		"feed", s.Feed,
		"format", s.Format,
		"records", s.Records,
		"placemarks", s.Placemarks,
		"skipped", s.SkippedTotal(),
		"median_altitude", s.MedianAltitude,
		"elapsed", s.Elapsed,
		"request_id", w.Header().Get(log.RequestIDHeader),
	)
}

// baseURL is the configured public URL, or one derived from the request.
func (h *Handlers) baseURL(req *http.Request) string {
	if h.controller.publicURL != "" {
		return strings.TrimSuffix(h.controller.publicURL, "/")
	}
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + req.Host
}
