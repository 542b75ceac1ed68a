package transport

import (
	"context"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/evmarchive/archiver/src/utils/build_info"
	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/logger"
	"github.com/evmarchive/archiver/src/utils/monitoring"
	"github.com/evmarchive/archiver/src/utils/monitoring/report"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTP client shared by all remote sources.
// Handles retries with capped exponential backoff, per host rate limiting
// and conditional GET caching.
type Client struct {
	client  *resty.Client
	config  *config.Config
	log     *logrus.Entry
	store   Store
	monitor monitoring.Monitor

	// Skip cache reads, responses are still written through
	forceRefresh bool

	// State
	mtx      sync.RWMutex
	limiters map[string]*rate.Limiter
}

func NewClient(config *config.Config) (self *Client) {
	self = new(Client)
	self.config = config
	self.log = logger.NewSublogger("transport")

	self.limiters = make(map[string]*rate.Limiter)

	self.client =
		resty.New().
			SetTimeout(self.config.Transport.RequestTimeout).
			SetHeader("User-Agent", "evmarchive/archiver/"+build_info.Version).
			SetRetryCount(self.config.Transport.MaxAttempts - 1).
			SetRetryWaitTime(self.config.Transport.BackoffBase).
			SetRetryMaxWaitTime(self.config.Transport.BackoffCap).
			SetRetryAfter(self.onRetryAfter).
			SetLogger(NewLogger()).
			SetTransport(self.createTransport()).
			AddRetryCondition(self.onRetryCondition).
			OnBeforeRequest(self.onRateLimit)

	return
}

func (self *Client) WithStore(store Store) *Client {
	self.store = store
	return self
}

func (self *Client) WithMonitor(monitor monitoring.Monitor) *Client {
	self.monitor = monitor
	return self
}

func (self *Client) WithForceRefresh(force bool) *Client {
	self.forceRefresh = force
	return self
}

func (self *Client) createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   self.config.Transport.DialerTimeout,
		KeepAlive: self.config.Transport.DialerKeepAlive,
	}

	return &http.Transport{
		// Some config options disable http2, try it anyway
		ForceAttemptHTTP2: true,

		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   self.config.Transport.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,

		// Mirrors and explorers sometimes stop responding on idle connections,
		// resulting in error: context deadline exceeded (Client.Timeout exceeded while awaiting headers)
		IdleConnTimeout:     self.config.Transport.IdleConnTimeout,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
	}
}

func (self *Client) report() *report.TransportReport {
	if self.monitor == nil {
		return nil
	}
	return self.monitor.GetReport().Transport
}

// Returns true if the request should be retried
func (self *Client) onRetryCondition(resp *resty.Response, err error) bool {
	if resp == nil || resp.RawResponse == nil {
		// Transport level failure
		return err != nil
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		// Remote host receives too many requests, adjust the rate limit
		u, parseErr := url.ParseRequestURI(resp.Request.URL)
		if parseErr == nil {
			self.decrementLimit(u.Host)
		}
		if r := self.report(); r != nil {
			r.Errors.RateLimit.Inc()
		}
		return true
	}

	// Server side errors may be retried
	return resp.StatusCode() >= 500
}

// Computes the wait before the next attempt.
// A 429 with Retry-After overrides the computed backoff, still capped.
func (self *Client) onRetryAfter(c *resty.Client, resp *resty.Response) (wait time.Duration, err error) {
	if r := self.report(); r != nil {
		r.State.Retries.Inc()
	}

	if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
		after := resp.Header().Get("Retry-After")
		if after != "" {
			seconds, parseErr := strconv.Atoi(after)
			if parseErr == nil {
				wait = time.Duration(seconds) * time.Second
				if wait > self.config.Transport.BackoffCap {
					wait = self.config.Transport.BackoffCap
				}
				return wait, nil
			}
		}
	}

	attempt := 1
	if resp != nil && resp.Request != nil {
		attempt = resp.Request.Attempt
	}
	return self.backoff(attempt - 1), nil
}

// Exponential backoff before the k-th retry, with a small random jitter
func (self *Client) backoff(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	wait := float64(self.config.Transport.BackoffBase) * math.Pow(2, float64(k))
	wait *= 1 + rand.Float64()*self.config.Transport.BackoffMaxJitter
	if limit := float64(self.config.Transport.BackoffCap); wait > limit {
		wait = limit
	}
	return time.Duration(wait)
}

func (self *Client) decrementLimit(host string) {
	var (
		limiter *rate.Limiter
		ok      bool
	)

	self.mtx.Lock()
	defer self.mtx.Unlock()
	limiter, ok = self.limiters[host]
	if !ok {
		return
	}

	self.log.WithField("host", host).Debug("Decreasing limit")

	limiter.SetLimit(limiter.Limit() * 0.999)
}

func (self *Client) onRateLimit(c *resty.Client, req *resty.Request) (err error) {
	// Get the limiter, create it if needed
	var (
		limiter *rate.Limiter
		ok      bool
	)

	u, err := url.ParseRequestURI(req.URL)
	if err != nil {
		return
	}

	self.mtx.Lock()
	limiter, ok = self.limiters[u.Host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(self.config.Transport.LimiterInterval), self.config.Transport.LimiterBurst)
		self.limiters[u.Host] = limiter
	}
	self.mtx.Unlock()

	// Blocks till the request is possible
	// Or ctx gets canceled
	err = limiter.Wait(req.Context())
	if err != nil {
		self.log.WithField("host", u.Host).WithError(err).Error("Rate limiting failed")
	}
	return
}

func (self *Client) statusToError(resp *resty.Response) error {
	if resp.StatusCode() > 399 && resp.StatusCode() < 500 {
		self.log.WithField("status", resp.StatusCode()).
			WithField("url", resp.Request.URL).
			Debug("Bad request")
	}
	if r := self.report(); r != nil {
		r.Errors.HttpStatus.Inc()
	}
	return &HttpStatusError{Status: resp.StatusCode()}
}

func (self *Client) put(key string, entry *CacheEntry) {
	err := self.store.Put(key, entry)
	if err != nil {
		self.log.WithError(err).WithField("url", entry.Url).Warn("Failed to write cache entry")
		if r := self.report(); r != nil {
			r.Errors.CacheWrite.Inc()
		}
	}
}

func entryFromResponse(url string, resp *resty.Response) *CacheEntry {
	return &CacheEntry{
		Url:       url,
		Timestamp: time.Now().UnixMilli(),
		Headers: CachedHeaders{
			ETag:          resp.Header().Get("ETag"),
			LastModified:  resp.Header().Get("Last-Modified"),
			ContentType:   resp.Header().Get("Content-Type"),
			ContentLength: int64(len(resp.Body())),
		},
		Data: resp.Body(),
	}
}

func (self *Client) Get(ctx context.Context, url string) (out *Payload, err error) {
	return self.Request(ctx, http.MethodGet, url)
}

func (self *Client) Request(ctx context.Context, method string, url string) (out *Payload, err error) {
	var cached *CacheEntry

	// Only GETs are cached
	if method == http.MethodGet && self.store != nil && !self.forceRefresh {
		entry, ok := self.store.Get(CacheKey(url))
		if ok {
			if entry.Age(time.Now()) <= self.config.Transport.CacheValidityWindow {
				// Fresh enough, no network needed
				if r := self.report(); r != nil {
					r.State.CacheHits.Inc()
				}
				return entry.toPayload(), nil
			}
			// Stale, revalidate below
			cached = entry
		} else {
			if r := self.report(); r != nil {
				r.State.CacheMisses.Inc()
			}
		}
	}

	req := self.client.R().SetContext(ctx)
	if cached != nil && cached.Headers.ETag != "" {
		req.SetHeader("If-None-Match", cached.Headers.ETag)
	}

	if r := self.report(); r != nil {
		r.State.RequestsMade.Inc()
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down, don't dress it up as a network problem
			return nil, ctx.Err()
		}
		if r := self.report(); r != nil {
			r.Errors.Network.Inc()
		}
		return nil, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusNotModified && cached != nil:
		// Still valid, refresh the entry's timestamp
		cached.Timestamp = time.Now().UnixMilli()
		self.put(CacheKey(url), cached)
		if r := self.report(); r != nil {
			r.State.CacheRevalidations.Inc()
		}
		return cached.toPayload(), nil

	case resp.IsSuccess():
		if r := self.report(); r != nil {
			r.State.BytesDownloaded.Add(uint64(len(resp.Body())))
		}
		if method == http.MethodGet && self.store != nil {
			self.put(CacheKey(url), entryFromResponse(url, resp))
		}
		return &Payload{
			Url:         url,
			StatusCode:  resp.StatusCode(),
			ContentType: resp.Header().Get("Content-Type"),
			Data:        resp.Body(),
		}, nil

	default:
		return nil, self.statusToError(resp)
	}
}
