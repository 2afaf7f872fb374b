package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"sjsage522/consoledealworker/helpers"
	"sjsage522/consoledealworker/logger"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer loads pages in headless Chrome for platforms that build
// their listings with JavaScript. One browser is shared; each page gets its
// own tab.
type ChromeRenderer struct {
	bin  string
	wait time.Duration

	mu          sync.Mutex
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// NewChromeRenderer creates a renderer. An empty bin searches the usual
// install locations.
func NewChromeRenderer(bin string, wait time.Duration) *ChromeRenderer {
	if bin == "" {
		bin = findChromeBinary()
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &ChromeRenderer{bin: bin, wait: wait}
}

func (r *ChromeRenderer) allocator() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allocCtx != nil {
		return r.allocCtx
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(helpers.RandomUserAgent()),
	)
	if r.bin != "" {
		opts = append(opts, chromedp.ExecPath(r.bin))
	}

	r.allocCtx, r.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	logger.ForSource("chrome").Info().Str("binary", r.bin).Msg("Started headless browser")
	return r.allocCtx
}

// Fetch renders url and returns the page HTML. It satisfies FetchFunc.
func (r *ChromeRenderer) Fetch(ctx context.Context, url string) (io.Reader, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.allocator(), chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	// Bound the tab by the caller's deadline as well as a hard ceiling
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.wait+45*time.Second)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(r.wait),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome render %s: %w", url, err)
	}

	if strings.Contains(strings.ToLower(html), "verify you are human") {
		return nil, fmt.Errorf("chrome render %s: captcha page", url)
	}
	return strings.NewReader(html), nil
}

// Close shuts the browser down
func (r *ChromeRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelAlloc != nil {
		r.cancelAlloc()
		r.allocCtx = nil
		r.cancelAlloc = nil
	}
}

// findChromeBinary returns the first Chrome or Chromium on the system
func findChromeBinary() string {
	candidates := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}
