package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leeineian/jukebox/sys"
	"github.com/lrstanley/go-ytdlp"
)

// MetadataProber reads video metadata without downloading.
type MetadataProber interface {
	Probe(ctx context.Context, pageURL string) (Metadata, error)
}

// Downloader saves the audio of a video into dir and returns the file path.
type Downloader interface {
	Download(ctx context.Context, pageURL, dir string) (string, error)
}

// Streamer writes the raw audio of a video to w until it ends or ctx is done.
type Streamer interface {
	Stream(ctx context.Context, pageURL string, w io.Writer) error
}

const audioFormat = "bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best"

// YTDLP drives the yt-dlp binary for probing, downloading, streaming and
// last-resort search.
type YTDLP struct {
	Proxy string
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings()
	if y.Proxy != "" {
		cmd.Proxy(y.Proxy)
	}
	return cmd
}

// buildYtdlpArgs returns common args for yt-dlp commands
func buildYtdlpArgs() []string {
	return []string{
		"--no-playlist",
		"--no-check-certificates",
		"--extractor-args", "youtube:player_client=android,web",
		"--socket-timeout", "30",
		"--retries", "10",
	}
}

func (y *YTDLP) Probe(ctx context.Context, pageURL string) (Metadata, error) {
	args := append(buildYtdlpArgs(), "-f", audioFormat, "--skip-download", pageURL)
	res, err := y.command().
		Print("%(id)s\t%(title)s\t%(duration)s\t%(filesize,filesize_approx)s\t%(abr)s").
		IgnoreConfig().
		Run(ctx, args...)
	if err != nil {
		return Metadata{}, fmt.Errorf("yt-dlp metadata: %w%s", err, stderrTail(res))
	}

	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if m, ok := parseProbeLine(l); ok {
			m.PageURL = pageURL
			return m, nil
		}
	}
	return Metadata{}, errors.New("failed to parse metadata")
}

func parseProbeLine(line string) (Metadata, bool) {
	ps := strings.Split(strings.TrimSpace(line), "\t")
	if len(ps) < 5 || ps[0] == "" || ps[0] == "NA" {
		return Metadata{}, false
	}
	m := Metadata{ID: ps[0], Title: ps[1]}
	if secs, err := strconv.ParseFloat(ps[2], 64); err == nil {
		m.Duration = time.Duration(secs * float64(time.Second))
	}
	if size, err := strconv.ParseFloat(ps[3], 64); err == nil {
		m.Filesize = int64(size)
	}
	if abr, err := strconv.ParseFloat(ps[4], 64); err == nil {
		m.BitrateKbps = abr
	}
	return m, true
}

func (y *YTDLP) Download(ctx context.Context, pageURL, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	res, err := y.command().
		Format(audioFormat).
		Output(filepath.Join(dir, "%(id)s.%(ext)s")).
		NoPart().
		NoPlaylist().
		NoCheckCertificates().
		NoSimulate().
		Print("after_move:filepath").
		IgnoreConfig().
		Run(ctx, append(buildYtdlpArgs(), pageURL)...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp download: %w%s", err, stderrTail(res))
	}

	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return "", errors.New("yt-dlp did not report a file")
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func (y *YTDLP) Stream(ctx context.Context, pageURL string, w io.Writer) error {
	execCmd := y.command().
		Format(audioFormat).
		Output("-").
		NoSimulate().
		NoPart().
		NoPlaylist().
		NoCheckCertificates().
		IgnoreConfig().
		BuildCommand(ctx, append(buildYtdlpArgs(), pageURL)...)

	execCmd.Stdout = w
	execCmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	if y.Proxy != "" {
		execCmd.Env = append(execCmd.Env, "http_proxy="+y.Proxy, "https_proxy="+y.Proxy)
	}

	var stderr bytes.Buffer
	execCmd.Stderr = &stderr

	if err := execCmd.Run(); err != nil {
		msg := strings.ToLower(err.Error() + stderr.String())
		if ctx.Err() != nil || strings.Contains(msg, "broken pipe") || strings.Contains(msg, "signal: killed") {
			return nil
		}
		sys.LogMusicError("yt-dlp stream failed: %v, stderr: %s", err, stderr.String())
		return err
	}
	return nil
}

func (y *YTDLP) Name() string { return "yt-dlp" }

// Search asks yt-dlp for the first search hit.
func (y *YTDLP) Search(ctx context.Context, query string) ([]SearchResult, error) {
	out, err := y.firstEntry(ctx, "ytsearch1:"+query)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search: %w", err)
	}
	return out, nil
}

// ListURL returns the first entry of a playlist or channel URL.
func (y *YTDLP) ListURL(ctx context.Context, rawURL string) ([]SearchResult, error) {
	out, err := y.firstEntry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp list: %w", err)
	}
	return out, nil
}

func (y *YTDLP) firstEntry(ctx context.Context, target string) ([]SearchResult, error) {
	res, err := y.command().
		FlatPlaylist().
		Print("%(id)s\t%(title)s\t%(uploader)s\t%(duration)s").
		PlaylistItems("1").
		IgnoreConfig().
		Run(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w%s", err, stderrTail(res))
	}
	return parsePrinted(res.Stdout), nil
}

// parsePrinted reads the tab separated lines printed by firstEntry.
func parsePrinted(stdout string) []SearchResult {
	var out []SearchResult
	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 {
			continue
		}
		d, _ := time.ParseDuration(ps[3] + "s")
		out = append(out, SearchResult{VideoID: ps[0], Title: ps[1], Channel: ps[2], Duration: d})
	}
	return out
}

func stderrTail(res *ytdlp.Result) string {
	if res == nil || res.Stderr == "" {
		return ""
	}
	return ": " + sys.Truncate(strings.TrimSpace(res.Stderr), 300)
}
