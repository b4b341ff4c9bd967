// Package input classifies and fetches the text an agent run operates on.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
	"github.com/soyeahso/agentclick/internal/version"
)

// Type is the detected input class.
type Type string

const (
	TypeText     Type = "text"
	TypeURL      Type = "url"
	TypeEmpty    Type = "empty"
	TypeFile     Type = "file"
	TypeMultiple Type = "multiple"
	TypePrompt   Type = "prompt"
)

const (
	DefaultFetchTimeout  = 10 * time.Second
	DefaultMaxFetchBytes = 10 * 1024 * 1024
	maxRedirects         = 10
)

// Options configures a Resolver.
type Options struct {
	Clipboard    Clipboard
	Prompter     Prompter
	FetchTimeout time.Duration
	MaxBytes     int64
	// URLFallback makes ProcessURL return the URL text itself instead of an
	// error when the fetch fails.
	URLFallback bool
	Logger      *logging.Logger
}

// Detection is the result of inspecting the clipboard.
type Detection struct {
	Type Type
	Text string
}

// FileResult is one entry of a ProcessMultiple batch.
type FileResult struct {
	Path    string
	Content string
	Err     error
}

// ProgressFunc receives one call per file in a batch, before it is read.
type ProgressFunc func(current, total int, path string)

// ProgressMessage is the user-facing text for batch progress.
func ProgressMessage(current, total int) string {
	return fmt.Sprintf("Processing file %d/%d...", current, total)
}

// Resolver turns clipboard text, files, URLs and prompts into input text.
type Resolver struct {
	clip        Clipboard
	prompt      Prompter
	timeout     time.Duration
	maxBytes    int64
	urlFallback bool
	log         *logging.Logger
	client      *http.Client

	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
	blocked  func(net.IP) bool
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	r := &Resolver{
		clip:        opts.Clipboard,
		prompt:      opts.Prompter,
		timeout:     opts.FetchTimeout,
		maxBytes:    opts.MaxBytes,
		urlFallback: opts.URLFallback,
		log:         log.Sub("input"),
		lookupIP:    defaultLookupIP,
		blocked:     isPrivateIP,
	}
	if r.clip == nil {
		r.clip = SystemClipboard{}
	}
	if r.prompt == nil {
		r.prompt = NoPrompter{}
	}
	if r.timeout <= 0 {
		r.timeout = DefaultFetchTimeout
	}
	if r.maxBytes <= 0 {
		r.maxBytes = DefaultMaxFetchBytes
	}
	r.client = r.newHTTPClient()
	return r
}

func (r *Resolver) newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: r.timeout,
		// Checked again at connect time so DNS changes after validation
		// cannot reach a blocked address.
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip != nil && r.blocked(ip) {
				return fmt.Errorf("connection to private or internal address %s blocked", ip)
			}
			return nil
		},
	}
	transport := &http.Transport{
		Proxy:               nil,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: r.timeout,
		MaxIdleConns:        4,
		IdleConnTimeout:     30 * time.Second,
	}
	return &http.Client{
		Timeout:   r.timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects")
			}
			if _, err := parseFetchURL(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			if err := r.validateTarget(req.Context(), req.URL.Hostname()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
}

// Clipboard returns the clipboard collaborator.
func (r *Resolver) Clipboard() Clipboard { return r.clip }

// Detect classifies the current clipboard contents. It performs no
// prompting. A clipboard read failure is reported as empty input.
func (r *Resolver) Detect() Detection {
	text, err := r.clip.ReadAll()
	if err != nil {
		r.log.Warn().Err(err).Msg("clipboard read failed, treating input as empty")
		return Detection{Type: TypeEmpty}
	}
	return Detection{Type: Classify(text), Text: text}
}

// Classify applies the detection rules to text: blank is empty, an
// http(s) prefix is a URL, anything else is text.
func Classify(text string) Type {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return TypeEmpty
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return TypeURL
	}
	return TypeText
}

// ProcessText returns the clipboard text verbatim.
func (r *Resolver) ProcessText() (string, error) {
	text, err := r.clip.ReadAll()
	if err != nil {
		return "", &domain.InputResolutionError{Source: "clipboard", Reason: "read failed", Err: err}
	}
	return text, nil
}

// ProcessFile reads path as UTF-8 text.
func (r *Resolver) ProcessFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.InputResolutionError{Source: path, Reason: "read failed", Err: err}
	}
	if !utf8.Valid(data) {
		return "", &domain.InputResolutionError{Source: path, Reason: "file is not valid UTF-8 text"}
	}
	return string(data), nil
}

// ProcessMultiple reads paths one after another in order. A failed file is
// logged and recorded in its result; the batch continues.
func (r *Resolver) ProcessMultiple(ctx context.Context, paths []string, progress ProgressFunc) []FileResult {
	results := make([]FileResult, 0, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			results = append(results, FileResult{Path: p, Err: err})
			continue
		}
		if progress != nil {
			progress(i+1, len(paths), p)
		}
		content, err := r.ProcessFile(p)
		if err != nil {
			r.log.Error().Err(err).Str("file", p).Msg("skipping file")
		}
		results = append(results, FileResult{Path: p, Content: content, Err: err})
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.log.Info().Int("files", len(paths)).Int("failed", failed).Msg("batch processed")
	return results
}

// JoinFiles concatenates successful batch results under per-file headings.
func JoinFiles(results []FileResult) string {
	var parts []string
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("=== %s ===\n%s", filepath.Base(res.Path), res.Content))
	}
	return strings.Join(parts, "\n\n")
}

// ProcessURL downloads raw. Only http and https to public addresses are
// fetched, with a bounded time and size. Failures are errors unless URL
// fallback is enabled, in which case the URL text is returned.
func (r *Resolver) ProcessURL(ctx context.Context, raw string) (string, error) {
	body, err := r.fetch(ctx, raw)
	if err == nil {
		return body, nil
	}
	if r.urlFallback {
		r.log.Warn().Err(err).Str("url", raw).Msg("fetch failed, using URL text as input")
		return strings.TrimSpace(raw), nil
	}
	return "", err
}

func (r *Resolver) fetch(ctx context.Context, raw string) (string, error) {
	fail := func(reason string, err error) error {
		return &domain.InputResolutionError{Source: raw, Reason: reason, Err: err}
	}

	u, err := parseFetchURL(raw)
	if err != nil {
		return "", fail("rejected", err)
	}
	if err := r.validateTarget(ctx, u.Hostname()); err != nil {
		return "", fail("blocked", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fail("bad request", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "text/*, application/json, application/xml;q=0.9, */*;q=0.5")

	r.log.Debug().Str("url", u.Redacted()).Msg("fetching URL")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fail("fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fail(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if resp.ContentLength > r.maxBytes {
		return "", fail("too large", fmt.Errorf("content length %d exceeds %d bytes", resp.ContentLength, r.maxBytes))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return "", fail("read failed", err)
	}
	if int64(len(data)) > r.maxBytes {
		return "", fail("too large", fmt.Errorf("body exceeds %d bytes", r.maxBytes))
	}
	if !utf8.Valid(data) {
		return "", fail("not text", errors.New("response is not valid UTF-8"))
	}
	return string(data), nil
}

// ProcessEmpty prompts for input labelled with the agent name. ok is false
// when the user cancelled.
func (r *Resolver) ProcessEmpty(ctx context.Context, label string) (string, bool, error) {
	text, ok, err := r.prompt.Prompt(ctx, label)
	if err != nil {
		return "", false, &domain.InputResolutionError{Source: "prompt", Reason: "prompt failed", Err: err}
	}
	if !ok {
		r.log.Info().Str("agent", label).Msg("input prompt cancelled")
	}
	return text, ok, nil
}
