package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// DNSConfig controls re-resolution of the remote write host
type DNSConfig struct {
	Enabled         bool
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	Timeout         time.Duration
	UDPServers      []string // e.g. ["1.1.1.1:53", "8.8.8.8:53"]
	TLSServers      []string // e.g. ["1.1.1.1:853", "9.9.9.9:853"]
	DoHEndpoints    []string // e.g. ["https://cloudflare-dns.com/dns-query"]
}

func (c DNSConfig) cacheTTL() time.Duration        { return pickDuration(c.CacheTTL, 10*time.Minute) }
func (c DNSConfig) refreshInterval() time.Duration { return pickDuration(c.RefreshInterval, 5*time.Minute) }
func (c DNSConfig) timeout() time.Duration         { return pickDuration(c.Timeout, 800*time.Millisecond) }

func pickDuration(v time.Duration, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

type dnsCacheEntry struct {
	ips []string
	ttl time.Time
}

// hostResolver tracks the addresses of one host and reports when they change
type hostResolver struct {
	host   string
	cfg    DNSConfig
	logger *zap.Logger

	mutex       sync.Mutex
	resolved    []string
	lastResolve time.Time
	cache       map[string]dnsCacheEntry
}

func newHostResolver(host string, cfg DNSConfig, logger *zap.Logger) *hostResolver {
	return &hostResolver{
		host:   host,
		cfg:    cfg,
		logger: logger,
		cache:  make(map[string]dnsCacheEntry),
	}
}

func (r *hostResolver) addresses() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.resolved...)
}

// refresh resolves the host and returns true when the address set changed,
// or on any successful forced resolve.
func (r *hostResolver) refresh(ctx context.Context, force bool) bool {
	if r.host == "" {
		return false
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !force && time.Since(r.lastResolve) < time.Minute {
		return false
	}

	if ce, ok := r.cache[r.host]; ok && !force && time.Now().Before(ce.ttl) {
		r.lastResolve = time.Now()
		if slices.Equal(ce.ips, r.resolved) {
			return false
		}
		r.resolved = ce.ips
		return true
	}

	var (
		ips []string
		err error
	)
	if r.cfg.Enabled {
		ips, err = r.resolveFastest(ctx)
	} else {
		ips, err = lookupSystem(ctx, r.host)
	}
	r.lastResolve = time.Now()

	if err != nil || len(ips) == 0 {
		r.logger.Warn("dns lookup failed", zap.String("host", r.host), zap.Error(err))
		return false
	}

	changed := !slices.Equal(ips, r.resolved)
	r.resolved = ips
	if r.cfg.Enabled {
		r.cache[r.host] = dnsCacheEntry{ips: ips, ttl: time.Now().Add(r.cfg.cacheTTL())}
	}
	return changed || force
}

// resolveFastest queries every configured resolver plus the system one and
// returns the first non-empty answer.
func (r *hostResolver) resolveFastest(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout())
	defer cancel()

	type result struct {
		ips []string
		err error
	}

	var queries []func() ([]string, error)
	for _, srv := range r.cfg.UDPServers {
		queries = append(queries, func() ([]string, error) { return exchangeA(ctx, r.host, srv, "udp") })
	}
	for _, srv := range r.cfg.TLSServers {
		queries = append(queries, func() ([]string, error) { return exchangeA(ctx, r.host, srv, "tcp-tls") })
	}
	for _, ep := range r.cfg.DoHEndpoints {
		queries = append(queries, func() ([]string, error) { return resolveDoH(ctx, r.host, ep) })
	}
	queries = append(queries, func() ([]string, error) { return lookupSystem(ctx, r.host) })

	ch := make(chan result, len(queries))
	for _, q := range queries {
		go func() {
			ips, err := q()
			ch <- result{ips, err}
		}()
	}

	var firstErr error
	for range queries {
		select {
		case res := <-ch:
			if res.err == nil && len(res.ips) > 0 {
				return res.ips, nil
			}
			if firstErr == nil {
				firstErr = res.err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("no dns result")
	}
	return nil, firstErr
}

func lookupSystem(ctx context.Context, host string) ([]string, error) {
	netIPs, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(netIPs))
	for _, ip := range netIPs {
		ips = append(ips, ip.String())
	}
	return ips, nil
}

func exchangeA(ctx context.Context, host, server, network string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	c := &dns.Client{Net: network, Timeout: 800 * time.Millisecond}
	resp, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, fmt.Errorf("%s dns failed: %w", network, err)
	}
	return answersA(resp)
}

func resolveDoH(ctx context.Context, host, endpoint string) ([]string, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(host), dns.TypeA)
	payload, err := q.Pack()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var msg dns.Msg
	if err := msg.Unpack(body); err != nil {
		return nil, err
	}
	return answersA(&msg)
}

func answersA(msg *dns.Msg) ([]string, error) {
	if msg == nil || msg.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns query unsuccessful")
	}
	ips := make([]string, 0, len(msg.Answer))
	for _, ans := range msg.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}
