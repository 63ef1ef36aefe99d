package capture

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// ReadySelector is rendered by the page shell once content is in place.
const ReadySelector = `[data-ready="true"]`

const defaultTimeout = 30 * time.Second

// Options describes one screenshot.
type Options struct {
	// URL of the page, e.g. "http://127.0.0.1:8080/calendar".
	URL string
	// Output is where the PNG is written.
	Output string

	Width  int
	Height int

	// Mobile enables touch/mobile emulation and asks the page for its
	// mobile layout through ?device=mobile.
	Mobile bool

	Timeout time.Duration
}

// TargetURL returns opts.URL with the device hint applied.
func (o Options) TargetURL() (string, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return "", fmt.Errorf("capture: bad URL: %w", err)
	}
	q := u.Query()
	if o.Mobile {
		q.Set("device", "mobile")
	} else {
		q.Set("device", "desktop")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (o Options) validate() error {
	if o.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if o.Output == "" {
		return fmt.Errorf("capture: Output is required")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("capture: viewport %dx%d is invalid", o.Width, o.Height)
	}
	return nil
}

// Page screenshots opts.URL with headless Chromium once the ready marker is
// visible and writes the PNG atomically to opts.Output.
func Page(parent context.Context, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	target, err := opts.TargetURL()
	if err != nil {
		return err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.Timeout)
	defer cancelTimeout()

	viewport := chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height))
	if opts.Mobile {
		viewport = chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height), chromedp.EmulateMobile, chromedp.EmulateTouch)
	}

	var png []byte
	if err := chromedp.Run(ctx,
		viewport,
		chromedp.Navigate(target),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let web fonts settle.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	return writeAtomic(opts.Output, png)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
