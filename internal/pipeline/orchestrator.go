// Package pipeline runs the select, fetch, rewrite, persist and publish cycle.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bryan-buckman/feedrewrite/internal/feedxml"
	"github.com/bryan-buckman/feedrewrite/internal/items"
	"github.com/bryan-buckman/feedrewrite/internal/lock"
	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/metrics"
	"github.com/bryan-buckman/feedrewrite/internal/model"
	"github.com/bryan-buckman/feedrewrite/internal/rotation"
	"github.com/bryan-buckman/feedrewrite/internal/rss"
	"github.com/bryan-buckman/feedrewrite/internal/shortener"
	"github.com/bryan-buckman/feedrewrite/internal/sources"
	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

// PersistTimeout bounds the writes of a run whose deadline has passed.
const PersistTimeout = 30 * time.Second

// Fetcher retrieves feeds and direct article pages.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []string) []rss.FetchResult
	FetchPage(ctx context.Context, pageURL string) (model.Article, error)
}

// Rewriter turns an article into a blurb.
type Rewriter interface {
	RewriteArticle(ctx context.Context, title, body string) (string, error)
}

// Notifier is told about every successful run.
type Notifier interface {
	Notify(summary model.RunSummary)
}

// Keys names the objects a run reads and writes.
type Keys struct {
	Feeds   string `mapstructure:"feeds"`
	URLs    string `mapstructure:"urls"`
	Cursor  string `mapstructure:"cursor"`
	Items   string `mapstructure:"items"`
	FeedXML string `mapstructure:"feed_xml"`
}

// DefaultKeys returns the standard object names.
func DefaultKeys() Keys {
	return Keys{
		Feeds:   "feeds.txt",
		URLs:    "urls.txt",
		Cursor:  "cursor.json",
		Items:   "items.json",
		FeedXML: "rss.xml",
	}
}

// Options tunes batch sizes and output.
type Options struct {
	Name            string
	FeedBatchSize   int
	URLBatchSize    int
	MaxItemsPerFeed int
	Policy          rss.Policy
	FeedWindow      int
	Channel         model.ChannelMeta
	Keys            Keys
}

// DefaultOptions returns 5 feeds and 1 url per run, 3 articles per feed.
func DefaultOptions() Options {
	return Options{
		Name:            "rewrite",
		FeedBatchSize:   5,
		URLBatchSize:    1,
		MaxItemsPerFeed: rss.DefaultMaxPerFeed,
		Policy:          rss.PolicyFeedOrder,
		FeedWindow:      feedxml.DefaultWindow,
		Keys:            DefaultKeys(),
	}
}

// Deps are the collaborators of an Orchestrator. Store, Fetcher and Rewriter
// are required; the rest default to no-op or in-process implementations.
type Deps struct {
	Store     storage.Store
	Fetcher   Fetcher
	Rewriter  Rewriter
	Shortener shortener.Shortener
	Locker    lock.Locker
	Notifier  Notifier
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Orchestrator runs the pipeline once per Run call.
type Orchestrator struct {
	deps Deps
	opts Options

	mu    sync.RWMutex
	state State
}

// New creates an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.Name == "" {
		opts.Name = def.Name
	}
	if opts.FeedBatchSize <= 0 {
		opts.FeedBatchSize = def.FeedBatchSize
	}
	if opts.URLBatchSize <= 0 {
		opts.URLBatchSize = def.URLBatchSize
	}
	if opts.MaxItemsPerFeed <= 0 {
		opts.MaxItemsPerFeed = def.MaxItemsPerFeed
	}
	if opts.Policy == "" {
		opts.Policy = def.Policy
	}
	if opts.FeedWindow <= 0 {
		opts.FeedWindow = def.FeedWindow
	}
	opts.Keys = withDefaultKeys(opts.Keys)

	if deps.Shortener == nil {
		deps.Shortener = shortener.Noop{}
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{deps: deps, opts: opts}
}

func withDefaultKeys(k Keys) Keys {
	def := DefaultKeys()
	if k.Feeds == "" {
		k.Feeds = def.Feeds
	}
	if k.URLs == "" {
		k.URLs = def.URLs
	}
	if k.Cursor == "" {
		k.Cursor = def.Cursor
	}
	if k.Items == "" {
		k.Items = def.Items
	}
	if k.FeedXML == "" {
		k.FeedXML = def.FeedXML
	}
	return k
}

// Keys returns the object names the orchestrator uses.
func (o *Orchestrator) Keys() Keys { return o.opts.Keys }

// State returns the stage of the current or last run.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes one pipeline run. Per-feed and per-item failures are logged
// and counted in the summary; only missing sources, storage failures,
// cancellation and a held run lock fail the run. When ctx's deadline passes
// the remaining items are skipped and the run persists what it has.
func (o *Orchestrator) Run(ctx context.Context) (model.RunSummary, error) {
	start := o.deps.Now()
	release, err := o.deps.Locker.Acquire(ctx, o.opts.Name)
	if err != nil {
		o.deps.Metrics.ObserveRun("locked", 0)
		return model.RunSummary{}, err
	}
	defer release()

	summary, err := o.run(ctx, start)
	summary.StartedAt = start
	summary.FinishedAt = o.deps.Now()
	elapsed := summary.FinishedAt.Sub(start)

	if err != nil {
		o.setState(StateRunFailed)
		o.deps.Metrics.ObserveRun("failed", elapsed)
		o.deps.Logger.Error("Pipeline run failed",
			logger.String("pipeline", o.opts.Name),
			logger.Int("selected", summary.Selected),
			logger.Int("succeeded", summary.Succeeded),
			logger.Error(err),
		)
		return summary, err
	}

	o.setState(StateDone)
	o.deps.Metrics.ObserveRun("ok", elapsed)
	o.deps.Logger.Info("Pipeline run complete",
		logger.String("pipeline", o.opts.Name),
		logger.Int("feeds", summary.FeedsSelected),
		logger.Int("feeds_failed", summary.FeedsFailed),
		logger.Int("urls", summary.URLsSelected),
		logger.Int("selected", summary.Selected),
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("skipped", summary.Skipped),
		logger.Int("store_size", summary.StoreSize),
		logger.Duration("duration", elapsed),
	)
	if o.deps.Notifier != nil {
		o.deps.Notifier.Notify(summary)
	}
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, start time.Time) (model.RunSummary, error) {
	var summary model.RunSummary
	store := o.deps.Store
	keys := o.opts.Keys

	o.setState(StateLoadingConfig)
	lists, err := sources.Load(ctx, store, keys.Feeds, keys.URLs)
	if err != nil {
		return summary, err
	}
	if lists.Empty() {
		return summary, ErrNoSources
	}
	cursor, err := rotation.LoadCursor(ctx, store, keys.Cursor)
	if err != nil {
		return summary, err
	}
	stored, err := items.Load(ctx, store, keys.Items)
	if err != nil {
		return summary, err
	}
	summary.Cursor = cursor

	o.setState(StateSelectingBatch)
	feeds := rotation.SelectBatch(lists.Feeds, cursor.FeedIndex, o.opts.FeedBatchSize)
	urls := rotation.SelectBatch(lists.URLs, cursor.URLIndex, o.opts.URLBatchSize)
	summary.FeedsSelected = len(feeds)
	summary.URLsSelected = len(urls)
	o.deps.Logger.Debug("Batch selected",
		logger.Strings("feeds", feeds),
		logger.Strings("urls", urls),
		logger.Int("feed_index", cursor.FeedIndex),
		logger.Int("url_index", cursor.URLIndex),
	)

	o.setState(StateFetchingFeeds)
	var candidates []model.Article
	for _, res := range o.deps.Fetcher.FetchAll(ctx, feeds) {
		if res.Err != nil {
			summary.FeedsFailed++
			continue
		}
		candidates = append(candidates, rss.Select(res.Articles, o.opts.Policy, o.opts.MaxItemsPerFeed, start)...)
	}
	if err := abortErr(ctx); err != nil {
		return summary, err
	}

	o.setState(StateRewriting)
	total := len(urls) + len(candidates)
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			if err := abortErr(ctx); err != nil {
				return summary, err
			}
			left := total - i
			summary.Selected += left
			summary.Skipped += left
			for range left {
				o.deps.Metrics.ItemSkipped("deadline")
			}
			o.deps.Logger.Warn("Run deadline reached, skipping remaining items", logger.Int("skipped", left))
			break
		}
		summary.Selected++

		var article model.Article
		if i < len(urls) {
			pageURL := urls[i]
			article, err = o.deps.Fetcher.FetchPage(ctx, pageURL)
			if err != nil {
				summary.Skipped++
				o.deps.Metrics.ItemSkipped("fetch")
				o.deps.Logger.Warn("Page fetch failed", logger.String("url", pageURL), logger.Error(err))
				continue
			}
		} else {
			article = candidates[i-len(urls)]
		}
		if item, ok := o.process(ctx, article); ok {
			stored = items.Upsert(stored, item)
			summary.Succeeded++
		} else {
			summary.Skipped++
		}
	}
	summary.StoreSize = len(stored)

	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), PersistTimeout)
		defer cancel()
	}

	o.setState(StatePersisting)
	if err := items.Save(ctx, store, keys.Items, stored); err != nil {
		return summary, &PersistenceError{Key: keys.Items, Err: err}
	}

	o.setState(StateRebuildingFeed)
	doc, err := feedxml.Build(stored, o.opts.Channel, o.deps.Now(), o.opts.FeedWindow)
	if err != nil {
		return summary, &PersistenceError{Key: keys.FeedXML, Err: err}
	}
	if err := storage.PutText(ctx, store, keys.FeedXML, string(doc), storage.ContentTypeRSS); err != nil {
		return summary, &PersistenceError{Key: keys.FeedXML, Err: err}
	}

	o.setState(StateAdvancingCursor)
	next := rotation.Advance(cursor, len(feeds), len(lists.Feeds), len(urls), len(lists.URLs))
	if err := rotation.SaveCursor(ctx, store, keys.Cursor, next); err != nil {
		o.deps.Logger.Error("Cursor not advanced", logger.String("key", keys.Cursor), logger.Error(err))
		return summary, nil
	}
	summary.Cursor = next
	return summary, nil
}

// abortErr returns the context error when the run was cancelled. An expired
// deadline is not an abort: the run stops processing and still persists.
func abortErr(ctx context.Context) error {
	err := ctx.Err()
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// process rewrites and shortens one article. ok is false when the article is skipped.
func (o *Orchestrator) process(ctx context.Context, a model.Article) (model.Item, bool) {
	log := o.deps.Logger.With(logger.String("url", a.Link))

	body := rss.PlainText(a.Summary)
	if body == "" {
		body = a.Title
	}
	text, err := o.deps.Rewriter.RewriteArticle(ctx, a.Title, body)
	if err != nil {
		o.deps.Metrics.ItemSkipped("rewrite")
		log.Warn("Rewrite failed, skipping article", logger.Error(err))
		return model.Item{}, false
	}

	short := o.deps.Shortener.Shorten(ctx, a.Link)
	o.deps.Metrics.ItemRewritten()
	return items.New(a.Link, short, a.Title, text, o.deps.Now()), true
}
