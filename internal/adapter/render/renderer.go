// Package render typesets markdown containing TeX math into PNG pages
// by shelling out to pandoc (with the XeLaTeX engine) and ImageMagick's
// convert. Each render runs in its own scratch directory, concurrency
// is bounded, and finished renders are cached by content hash.
package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxConcurrent = 2
	defaultCacheSize     = 64
)

// Config controls the rendering pipeline.
type Config struct {
	WorkDir       string        // root for per-job scratch directories; empty uses the system temp dir
	MaxConcurrent int64         // simultaneous pipelines; XeLaTeX is memory-hungry
	CacheSize     int           // finished renders kept before LRU eviction
	CacheTTL      time.Duration // how long cached pages stay on disk
	Timeout       time.Duration // wall clock limit per render; 0 disables
}

// Result holds the rendered pages for one markdown document.
type Result struct {
	Pages     []string // PNG paths in page order
	FromCache bool
}

// Renderer runs the markdown → PDF → PNG pipeline.
type Renderer struct {
	runner  CommandRunner
	workDir string
	timeout time.Duration
	sem     *semaphore.Weighted
	cache   *expirable.LRU[string, []string]
	log     *zap.Logger
}

// New creates a Renderer rooted at cfg.WorkDir. Evicted cache entries
// have their page files deleted, so paths handed out are only valid
// while the entry lives.
func New(cfg Config, runner CommandRunner, log *zap.Logger) (*Renderer, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "omnitea-render")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	r := &Renderer{
		runner:  runner,
		workDir: workDir,
		timeout: cfg.Timeout,
		sem:     semaphore.NewWeighted(maxConcurrent),
		log:     log.Named("render"),
	}
	r.cache = expirable.NewLRU[string, []string](cacheSize, r.evict, cfg.CacheTTL)
	return r, nil
}

// Render typesets markdown and returns its PNG pages in page order.
func (r *Renderer) Render(ctx context.Context, markdown string) (Result, error) {
	if strings.TrimSpace(markdown) == "" {
		return Result{}, ErrEmptyMarkdown
	}

	key := cacheKey(markdown)
	if pages, ok := r.cache.Get(key); ok && pagesExist(pages) {
		r.log.Debug("render cache hit", zap.Int("pages", len(pages)))
		return Result{Pages: pages, FromCache: true}, nil
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer r.sem.Release(1)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	dir := filepath.Join(r.workDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create job dir: %w", err)
	}

	start := time.Now()
	pages, err := r.renderJob(ctx, dir, id, markdown)
	if err != nil {
		_ = os.RemoveAll(dir)
		return Result{}, err
	}

	r.log.Info("rendered markdown",
		zap.Int("pages", len(pages)),
		zap.Duration("elapsed", time.Since(start)),
	)
	r.cache.Add(key, pages)
	return Result{Pages: pages}, nil
}

// Close drops all cached renders and their files.
func (r *Renderer) Close() {
	r.cache.Purge()
}

func (r *Renderer) renderJob(ctx context.Context, dir, id, markdown string) ([]string, error) {
	mdName := id + ".md"
	pdfName := id + ".pdf"

	// \pagenumbering{gobble} keeps page numbers off the tiny pages.
	content := "\\pagenumbering{gobble}\n" + markdown
	if err := os.WriteFile(filepath.Join(dir, mdName), []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write markdown: %w", err)
	}

	_, stderr, err := r.runner.Run(ctx, dir, "pandoc",
		"-V", "geometry:margin=0.2in",
		"-V", "geometry:paperwidth=4.25in",
		"-V", "geometry:paperheight=3.25in",
		"--pdf-engine=xelatex",
		"-o", pdfName,
		mdName,
	)
	if err != nil {
		return nil, &CommandError{Command: "pandoc", Stderr: stderr, Err: err}
	}

	// Trim borders, rasterize at 300dpi and invert colors for dark
	// backgrounds. ImageMagick 6 consumes one argument after +channel.
	_, stderr, err = r.runner.Run(ctx, dir, "convert",
		"-trim",
		"-density", "300",
		"-channel", "RGB",
		"-negate",
		"+channel", "RGB",
		pdfName,
		id+".png",
	)
	if err != nil {
		return nil, &CommandError{Command: "convert", Stderr: stderr, Err: err}
	}

	pages, err := collectPages(dir, id)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	// Only the PNGs survive. The markdown and PDF intermediates go.
	_ = os.Remove(filepath.Join(dir, mdName))
	_ = os.Remove(filepath.Join(dir, pdfName))

	return pages, nil
}

// evict deletes the page files of an expired cache entry.
func (r *Renderer) evict(key string, pages []string) {
	for _, page := range pages {
		_ = os.Remove(page)
	}
	if len(pages) > 0 {
		_ = os.Remove(filepath.Dir(pages[0]))
	}
	r.log.Debug("evicted cached render", zap.Int("pages", len(pages)))
}

// collectPages finds the PNGs convert wrote for id, in page order. A
// single page is named {id}.png; multiple pages come out as
// {id}-0.png, {id}-1.png, and so on.
func collectPages(dir, id string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, id+"*.png"))
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i], id) < pageNumber(matches[j], id)
	})
	return matches, nil
}

// pageNumber extracts the page index from a convert output filename.
// Lexical sorting would put page 10 before page 2.
func pageNumber(path, id string) int {
	stem := strings.TrimSuffix(filepath.Base(path), ".png")
	rest := strings.TrimPrefix(stem, id)
	if rest == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(rest, "-"))
	if err != nil {
		return 0
	}
	return n
}

func cacheKey(markdown string) string {
	sum := sha256.Sum256([]byte(markdown))
	return hex.EncodeToString(sum[:])
}

// pagesExist guards against cached paths whose files were removed
// behind the cache's back.
func pagesExist(pages []string) bool {
	if len(pages) == 0 {
		return false
	}
	for _, page := range pages {
		if _, err := os.Stat(page); err != nil {
			return false
		}
	}
	return true
}
