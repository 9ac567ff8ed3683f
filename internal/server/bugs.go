package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/olegiv/crashlens-ai-go/internal/bugtracker"
	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
	"github.com/olegiv/crashlens-ai-go/internal/httpapi"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
)

// newBugProxy forwards /api/bugs and the legacy /bts/bugs paths to the tracker.
func newBugProxy(rawURL string, log *logging.SecureLogger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bug tracker URL: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("invalid bug tracker URL scheme %q: must be http or https", target.Scheme)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if rest, ok := strings.CutPrefix(pr.In.URL.Path, "/bts/bugs"); ok {
				pr.Out.URL.Path = strings.TrimRight(target.Path, "/") + "/api/bugs" + rest
				pr.Out.URL.RawPath = ""
			}
			// The session cookie is ours, not the tracker's.
			pr.Out.Header.Del("Cookie")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("Bug tracker proxy failed")
			httpapi.WriteError(w, nil, proxyError(err))
		},
	}, nil
}

// proxyError maps upstream failures: timeouts to 504, everything else to 503.
// Errors that already carry a status pass through.
func proxyError(err error) error {
	var se *internalerrors.StatusError
	if errors.As(err, &se) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return internalerrors.WithStatus(err, http.StatusGatewayTimeout, "Bug tracker request timed out")
	}
	return internalerrors.WithStatus(err, http.StatusServiceUnavailable, "Cannot connect to the bug tracker")
}

func (s *Server) handleBugProxy(w http.ResponseWriter, r *http.Request) {
	if s.bugProxy == nil {
		s.fail(w, internalerrors.NewStatus(http.StatusServiceUnavailable, "Bug tracker is not configured"))
		return
	}
	s.bugProxy.ServeHTTP(w, r)
}

// fileBugRequest holds the optional fields of POST /analyze/{id}/bug.
type fileBugRequest struct {
	Analysis       string `json:"analysis"`
	ReleaseVersion string `json:"releaseVersion"`
	AssignedTo     string `json:"assignedTo"`
	Platform       string `json:"platform"`
}

// handleFileBug drafts a bug from the engine result of an uploaded file and
// files it in the tracker. An assistant analysis may be passed in the body.
func (s *Server) handleFileBug(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	if s.bugs == nil {
		s.fail(w, internalerrors.NewStatus(http.StatusServiceUnavailable, "Bug tracker is not configured"))
		return
	}

	var req fileBugRequest
	if r.ContentLength != 0 {
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			s.fail(w, err)
			return
		}
	}

	file, content, err := s.loadSessionFile(sid, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	result := s.chat.Inspect(content, file.Filename)
	bug := bugtracker.BugFromAnalysis(result, file.Filename, req.Analysis)
	bug.ReleaseVersion = req.ReleaseVersion
	bug.AssignedTo = req.AssignedTo
	bug.Platform = req.Platform

	created, err := s.bugs.CreateBug(r.Context(), bug)
	if err != nil {
		s.fail(w, proxyError(err))
		return
	}

	s.log.Info().
		Str("bug_id", created.ID).
		Str("file_id", file.ID).
		Str("priority", created.Priority).
		Msg("Bug filed from analysis")

	httpapi.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"bug":    created,
	})
}
