package local

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/drakos74/futures-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

type series struct {
	coin     model.Coin
	interval api.Interval
}

// Feed serves bars from memory.
// Missing series are loaded from the persistence, or fetched from the upstream feed and stored.
// The cursor hides any bar after it, so that a replay never looks into the future.
type Feed struct {
	mutex       *sync.Mutex
	bars        map[series][]model.Bar
	cursor      time.Time
	failures    []error
	requests    map[api.Interval]int
	upstream    api.Feed
	persistence storage.Persistence
}

// NewFeed creates a new in-memory feed.
func NewFeed() *Feed {
	return &Feed{
		mutex:       new(sync.Mutex),
		bars:        make(map[series][]model.Bar),
		requests:    make(map[api.Interval]int),
		persistence: storage.NewVoidStorage(),
	}
}

// WithUpstream defines the feed to fetch missing series from.
func (f *Feed) WithUpstream(upstream api.Feed) *Feed {
	f.upstream = upstream
	return f
}

// WithPersistence defines the storage to cache the series in.
func (f *Feed) WithPersistence(persistence storage.Persistence) *Feed {
	f.persistence = persistence
	return f
}

// Add appends bars to the series of the interval.
func (f *Feed) Add(interval api.Interval, bars ...model.Bar) *Feed {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for _, bar := range bars {
		k := series{coin: bar.Coin, interval: interval}
		f.bars[k] = append(f.bars[k], bar)
	}
	for k := range f.bars {
		sort.SliceStable(f.bars[k], func(i, j int) bool {
			return f.bars[k][i].Time.Before(f.bars[k][j].Time)
		})
	}
	return f
}

// Fail queues errors for the next historical requests.
func (f *Feed) Fail(errs ...error) *Feed {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.failures = append(f.failures, errs...)
	return f
}

// Until moves the cursor of the feed.
func (f *Feed) Until(t time.Time) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.cursor = t
}

func storageKey(k series) storage.Key {
	return storage.Key{
		Pair:  string(k.coin),
		Label: string(k.interval),
	}
}

func (f *Feed) load(ctx context.Context, k series, limit int) ([]model.Bar, error) {
	var bars []model.Bar
	if err := f.persistence.Load(storageKey(k), &bars); err == nil && len(bars) > 0 {
		return bars, nil
	}
	if f.upstream == nil {
		return nil, nil
	}
	bars, err := f.upstream.Historical(ctx, k.coin, k.interval, limit)
	if err != nil {
		return nil, err
	}
	if err := f.persistence.Store(storageKey(k), bars); err != nil {
		log.Warn().Err(err).
			Str("coin", string(k.coin)).
			Str("interval", string(k.interval)).
			Msg("could not cache bars")
	}
	return bars, nil
}

// Historical returns the last limit bars of the series up to the cursor.
func (f *Feed) Historical(ctx context.Context, coin model.Coin, interval api.Interval, limit int) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.requests[interval]++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	k := series{coin: coin, interval: interval}
	bars, ok := f.bars[k]
	if !ok {
		loaded, err := f.load(ctx, k, limit)
		if err != nil {
			return nil, fmt.Errorf("could not load %s %s: %w", coin, interval, err)
		}
		bars = loaded
		f.bars[k] = bars
	}
	end := len(bars)
	if !f.cursor.IsZero() {
		end = sort.Search(len(bars), func(i int) bool {
			return bars[i].Time.After(f.cursor)
		})
	}
	if end == 0 {
		return nil, fmt.Errorf("no bars for %s %s: %w", coin, interval, api.ErrDataUnavailable)
	}
	begin := 0
	if limit > 0 && end > limit {
		begin = end - limit
	}
	out := make([]model.Bar, end-begin)
	copy(out, bars[begin:end])
	return out, nil
}

// Requests returns the number of historical requests received for the interval.
func (f *Feed) Requests(interval api.Interval) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.requests[interval]
}

// Stream emits the stored bars of the coins in time order and closes the channel at the end.
func (f *Feed) Stream(ctx context.Context, coins []model.Coin, interval api.Interval) (<-chan model.Bar, error) {
	f.mutex.Lock()
	all := make([]model.Bar, 0)
	for _, coin := range coins {
		bars, ok := f.bars[series{coin: coin, interval: interval}]
		if !ok {
			f.mutex.Unlock()
			return nil, fmt.Errorf("no bars for %s %s: %w", coin, interval, api.ErrDataUnavailable)
		}
		all = append(all, bars...)
	}
	f.mutex.Unlock()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Time.Before(all[j].Time)
	})

	out := make(chan model.Bar)
	go func() {
		defer close(out)
		for _, bar := range all {
			select {
			case <-ctx.Done():
				return
			case out <- bar:
			}
		}
	}()
	return out, nil
}
