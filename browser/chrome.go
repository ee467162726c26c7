package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/asx-scraper/config"
	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoResults is returned when the results container is not on the page.
var ErrNoResults = errors.New("browser: results container not found")

const rowsScript = `(() => {
	const root = document.querySelector(%s);
	if (!root) {
		return {found: false, rows: []};
	}
	const rows = Array.from(root.querySelectorAll('tr')).map(tr => {
		const anchor = tr.querySelector('a[href*=".pdf"]');
		return {
			cells: Array.from(tr.querySelectorAll('td')).map(td => td.innerText.trim()),
			link: anchor ? anchor.href : ''
		};
	});
	return {found: true, rows: rows};
})()`

const clickScript = `(() => {
	const root = document.querySelector(%s);
	if (!root) {
		return false;
	}
	const row = root.querySelectorAll('tr')[%d];
	const anchor = row && row.querySelector('a[href*=".pdf"]');
	if (!anchor) {
		return false;
	}
	anchor.click();
	return true;
})()`

type rowsResult struct {
	Found bool  `json:"found"`
	Rows  []Row `json:"rows"`
}

// ChromeSession is a tab of a Chrome instance started with remote debugging.
//
// The tab context is never cancelled: cancelling a chromedp tab context closes
// the tab, and the tab belongs to the user. The connection ends with the process.
type ChromeSession struct {
	selector string
	tabCtx   context.Context
}

// Attach connects to the debugger endpoint and picks the first page whose URL
// contains cfg.TabURLContains, falling back to the first page.
func Attach(ctx context.Context, cfg *config.DownloaderConfig) (*ChromeSession, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), cfg.DebuggerURL())
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("list browser targets at %s: %w", cfg.DebuggerURL(), err)
	}

	picked := pickTarget(targets, cfg.TabURLContains)
	if picked == nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("no page target open in browser at %s", cfg.DebuggerURL())
	}
	slog.Info("attaching to browser tab",
		slog.String("title", picked.Title),
		slog.String("url", picked.URL),
	)

	tabCtx, _ := chromedp.NewContext(browserCtx, chromedp.WithTargetID(picked.TargetID))

	downloadDir, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve download dir: %w", err)
	}
	err = chromedp.Run(tabCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("set download directory: %w", err)
	}

	return &ChromeSession{
		selector: cfg.ResultsSelector,
		tabCtx:   tabCtx,
	}, nil
}

func pickTarget(targets []*target.Info, urlContains string) *target.Info {
	var first *target.Info
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if first == nil {
			first = t
		}
		if urlContains != "" && strings.Contains(t.URL, urlContains) {
			return t
		}
	}
	return first
}

// Rows reads the results table.
func (s *ChromeSession) Rows(ctx context.Context) ([]Row, error) {
	var result rowsResult
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(rowsScript, s.quotedSelector()), &result)); err != nil {
		return nil, fmt.Errorf("read result rows: %w", err)
	}
	if !result.Found {
		return nil, ErrNoResults
	}
	return result.Rows, nil
}

// ClickLink clicks the PDF anchor in row index, letting Chrome download it.
func (s *ChromeSession) ClickLink(ctx context.Context, index int) error {
	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickScript, s.quotedSelector(), index), &clicked)); err != nil {
		return fmt.Errorf("click link in row %d: %w", index, err)
	}
	if !clicked {
		return fmt.Errorf("click link in row %d: anchor not found", index)
	}
	return nil
}

// run executes actions on the tab, stopping early if ctx is cancelled.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *ChromeSession) quotedSelector() string {
	quoted, err := json.Marshal(s.selector)
	if err != nil {
		return `""`
	}
	return string(quoted)
}
