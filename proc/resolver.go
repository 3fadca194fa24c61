package proc

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/leeineian/jukebox/sys"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"golang.org/x/time/rate"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// SearchResult is one hit from a search backend.
type SearchResult struct {
	VideoID  string
	Title    string
	Channel  string
	Duration time.Duration
}

// Searcher is a free-text search backend.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// URLLister is a backend that can expand a YouTube URL without a single
// video id (playlists, channels) to its entries.
type URLLister interface {
	ListURL(ctx context.Context, rawURL string) ([]SearchResult, error)
}

// Resolver turns a URL or free text into a single video reference.
type Resolver struct {
	backends []Searcher
	limiter  *rate.Limiter
}

// NewResolver tries backends in the order given.
func NewResolver(backends ...Searcher) *Resolver {
	return &Resolver{
		backends: backends,
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
	}
}

// Resolve maps query to a video. URLs are parsed locally; anything else is
// searched and the first hit wins. No retries are made.
func (r *Resolver) Resolve(ctx context.Context, query string) (VideoRef, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return VideoRef{}, &ResolutionError{Query: query, Err: errors.New("empty query")}
	}

	urlQuery := IsVideoURL(q)
	if urlQuery {
		if id, ok := ParseVideoID(q); ok {
			return VideoRef{ID: id, URL: WatchURL(id)}, nil
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return VideoRef{}, err
	}

	if urlQuery {
		if ref, ok := r.listURL(ctx, q); ok {
			return ref, nil
		}
	}

	var errs []error
	for _, b := range r.backends {
		results, err := b.Search(ctx, q)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return VideoRef{}, ctxErr
			}
			sys.LogResolver(sys.MsgLogSearchBackend, b.Name(), q, err)
			errs = append(errs, err)
			continue
		}
		for _, hit := range results {
			if videoIDPattern.MatchString(hit.VideoID) {
				return VideoRef{ID: hit.VideoID, URL: WatchURL(hit.VideoID), Title: hit.Title}, nil
			}
		}
	}

	if len(errs) > 0 && len(errs) == len(r.backends) {
		return VideoRef{}, &ResolutionError{Query: q, Err: errors.Join(errs...)}
	}
	return VideoRef{}, ErrNotFound
}

// listURL asks the backends that understand URLs for the first entry.
func (r *Resolver) listURL(ctx context.Context, rawURL string) (VideoRef, bool) {
	for _, b := range r.backends {
		l, ok := b.(URLLister)
		if !ok {
			continue
		}
		results, err := l.ListURL(ctx, rawURL)
		if err != nil {
			sys.LogResolver(sys.MsgLogSearchBackend, b.Name(), rawURL, err)
			continue
		}
		for _, hit := range results {
			if videoIDPattern.MatchString(hit.VideoID) {
				return VideoRef{ID: hit.VideoID, URL: WatchURL(hit.VideoID), Title: hit.Title}, true
			}
		}
	}
	return VideoRef{}, false
}

// IsVideoURL reports whether q is an http(s) URL on a YouTube host. Free
// text that merely mentions the domain is searched.
func IsVideoURL(q string) bool {
	if strings.ContainsAny(q, " \t\n") {
		return false
	}
	u, err := url.Parse(q)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

// ParseVideoID extracts the 11-character id from the YouTube URL shapes:
// youtu.be/<id>, watch?v=<id>, /embed/<id>, /shorts/<id> and /watch/<id>.
func ParseVideoID(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch {
	case host == "youtu.be":
		id = segs[0]
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		if u.Path == "/watch" || u.Path == "/watch/" {
			id = u.Query().Get("v")
			break
		}
		if len(segs) >= 2 {
			switch segs[0] {
			case "embed", "shorts", "watch", "v", "live":
				id = segs[1]
			}
		}
	}

	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// --- Search backends ---

// YTSearch scrapes the YouTube results page.
type YTSearch struct {
	hc *http.Client
}

func NewYTSearch(hc *http.Client) *YTSearch {
	return &YTSearch{hc: hc}
}

func (s *YTSearch) Name() string { return "youtube" }

func (s *YTSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	res, err := ytsearch.NewClient(s.hc).Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(res.Results))
	for _, v := range res.Results {
		out = append(out, SearchResult{
			VideoID:  v.VideoID,
			Title:    v.Title,
			Channel:  v.Channel,
			Duration: parseDurationColon(v.Duration),
		})
	}
	return out, nil
}

// YTMusicSearch queries YouTube Music tracks.
type YTMusicSearch struct{}

func (YTMusicSearch) Name() string { return "ytmusic" }

func (YTMusicSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	type result struct {
		hits []SearchResult
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			ch <- result{err: err}
			return
		}
		hits := make([]SearchResult, 0, len(r.Tracks))
		for _, v := range r.Tracks {
			if v.VideoID == "" {
				continue
			}
			artist := ""
			if len(v.Artists) > 0 {
				artist = v.Artists[0].Name
			}
			hits = append(hits, SearchResult{VideoID: v.VideoID, Title: v.Title, Channel: artist})
		}
		ch <- result{hits: hits}
	}()

	select {
	case r := <-ch:
		return r.hits, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// parseDurationColon parses duration strings like "3:20" or "1:05:20"
func parseDurationColon(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}
