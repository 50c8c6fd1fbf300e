// Package feed streams live market prices into the shared price cache.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kparichay/indexfund/internal/domain"
)

// DefaultStreamURL is the Binance websocket endpoint.
const DefaultStreamURL = "wss://stream.binance.com:9443"

// allMiniTickerStream pushes one snapshot per second covering every pair
// whose price changed. One subscription keeps the whole cache warm.
const allMiniTickerStream = "/ws/!miniTicker@arr"

// miniTicker is the per-pair payload of the miniTicker stream.
type miniTicker struct {
	EventTime int64  `json:"E"`
	Pair      string `json:"s"`
	Close     string `json:"c"`
}

// TickerFeed subscribes to the all-market miniTicker stream and writes every
// close price into the price cache. It reconnects with backoff on disconnect
// and runs until the context is cancelled or Close is called.
type TickerFeed struct {
	url       string
	cache     domain.PriceCache
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewTickerFeed creates a feed. url may be empty to use DefaultStreamURL.
func NewTickerFeed(url string, cache domain.PriceCache, logger *slog.Logger) *TickerFeed {
	if url == "" {
		url = DefaultStreamURL
	}
	return &TickerFeed{
		url:    strings.TrimSuffix(url, "/"),
		cache:  cache,
		logger: logger.With(slog.String("component", "ticker_feed")),
		done:   make(chan struct{}),
	}
}

// Run connects and consumes ticker messages until ctx is cancelled or the
// feed is closed. Disconnects are retried after a short pause.
func (f *TickerFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}
		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("ticker stream disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *TickerFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url+allMiniTickerStream, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.url, err)
	}
	defer conn.Close()
	f.logger.Info("ticker stream connected")

	// Unblock ReadMessage when the context ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		case <-stop:
			return
		}
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-f.done:
				return nil
			default:
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		if err := f.handleMessage(ctx, data); err != nil {
			f.logger.Debug("ticker message dropped",
				slog.String("error", err.Error()),
				slog.Int("payload_len", len(data)),
			)
		}
	}
}

func (f *TickerFeed) handleMessage(ctx context.Context, data []byte) error {
	var tickers []miniTicker
	if err := json.Unmarshal(data, &tickers); err != nil {
		return err
	}
	for _, t := range tickers {
		pair := strings.TrimSpace(t.Pair)
		if pair == "" {
			continue
		}
		price, err := strconv.ParseFloat(t.Close, 64)
		if err != nil {
			return fmt.Errorf("feed: parse close price for %s: %w", pair, err)
		}
		ts := time.Now()
		if t.EventTime > 0 {
			ts = time.UnixMilli(t.EventTime)
		}
		if err := f.cache.SetPrice(ctx, pair, price, ts); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the feed.
func (f *TickerFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
