// Package browser drives a web UI for the scenarios that exercise the candidate management
// front end. Scenarios use the Driver interface; RodDriver implements it with a Chrome instance
// controlled through go-rod.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/mapdata/gateway-contract-tests/framework"
)

const DefaultTimeout = time.Second * 15

// Driver is the set of browser actions the scenarios need. Every action that looks up an element
// waits for it to appear, up to the driver's timeout.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Fill replaces the content of an input element.
	Fill(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string) error
	Text(ctx context.Context, selector string) (string, error)
	Close() error
}

// Factory starts a new browser session.
type Factory func(ctx context.Context) (Driver, error)

type Options struct {
	// ControlURL is the DevTools websocket URL of an already running browser. If empty, a
	// headless Chrome is launched locally.
	ControlURL string
	Timeout    time.Duration
	Logger     framework.Logger
}

// RodFactory returns a Factory that starts RodDrivers with the given options.
func RodFactory(opts Options) Factory {
	return func(ctx context.Context) (Driver, error) {
		return Launch(ctx, opts)
	}
}

var _ Driver = (*RodDriver)(nil)

type RodDriver struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	timeout  time.Duration
	logger   framework.Logger
}

func Launch(ctx context.Context, opts Options) (*RodDriver, error) {
	d := &RodDriver{timeout: opts.Timeout, logger: opts.Logger}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.logger == nil {
		d.logger = framework.NullLogger()
	}

	controlURL := opts.ControlURL
	if controlURL == "" {
		d.launcher = launcher.New().Headless(true)
		u, err := d.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}
	d.logger.Printf("Connecting to browser at %s", controlURL)

	d.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := d.browser.Connect(); err != nil {
		d.cleanupLauncher()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	page, err := d.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	d.page = page
	return d, nil
}

func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	d.logger.Printf("Navigate to %s", url)
	return d.withTimeout(ctx, func(p *rod.Page) error {
		if err := p.Navigate(url); err != nil {
			return fmt.Errorf("navigate to %s: %w", url, err)
		}
		return p.WaitLoad()
	})
}

// withTimeout runs one action against the page under the driver's timeout. The timeout context is
// released when the action returns.
func (d *RodDriver) withTimeout(ctx context.Context, action func(*rod.Page) error) error {
	p := d.page.Context(ctx).Timeout(d.timeout)
	defer p.CancelTimeout()
	return action(p)
}

func (d *RodDriver) withElement(ctx context.Context, selector string, action func(*rod.Element) error) error {
	return d.withTimeout(ctx, func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return fmt.Errorf("element %q not found: %w", selector, err)
		}
		return action(el)
	})
}

func (d *RodDriver) Fill(ctx context.Context, selector, text string) error {
	d.logger.Printf("Fill %s with %q", selector, text)
	return d.withElement(ctx, selector, func(el *rod.Element) error {
		if err := el.SelectAllText(); err != nil {
			return fmt.Errorf("select text of %q: %w", selector, err)
		}
		return el.Input(text)
	})
}

func (d *RodDriver) Click(ctx context.Context, selector string) error {
	d.logger.Printf("Click %s", selector)
	return d.withElement(ctx, selector, func(el *rod.Element) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (d *RodDriver) WaitVisible(ctx context.Context, selector string) error {
	return d.withElement(ctx, selector, func(el *rod.Element) error {
		return el.WaitVisible()
	})
}

func (d *RodDriver) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := d.withElement(ctx, selector, func(el *rod.Element) error {
		var err error
		text, err = el.Text()
		return err
	})
	return text, err
}

func (d *RodDriver) Close() error {
	var err error
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil {
		err = d.browser.Close()
	}
	d.cleanupLauncher()
	return err
}

func (d *RodDriver) cleanupLauncher() {
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}
}
