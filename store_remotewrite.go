package monitor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/eryajf/promwrite"
	"go.uber.org/zap"
)

// RemoteWriteConfig configures a RemoteWriteStore
type RemoteWriteConfig struct {
	URL       string
	Namespace string
	// Instance labels every series; defaults to the host name
	Instance     string
	CustomLabels map[string]string
	DNS          DNSConfig
	Logger       *zap.Logger
}

// RemoteWriteStore pushes every document to a Prometheus remote write
// endpoint, one series per numeric field of the value.
type RemoteWriteStore struct {
	config   RemoteWriteConfig
	client   *promwrite.Client
	resolver *hostResolver
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mutex    sync.RWMutex
}

// NewRemoteWriteStore creates the client and, when DNS re-resolution is
// enabled, starts the background refresh loop.
func NewRemoteWriteStore(config RemoteWriteConfig) (*RemoteWriteStore, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("remote write url cannot be empty")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Namespace == "" {
		config.Namespace = "hostmonitor"
	}
	if config.Instance == "" {
		instance, err := defaultInstance()
		if err != nil {
			return nil, fmt.Errorf("failed to determine instance label: %w", err)
		}
		config.Instance = instance
	}

	var host string
	if u, err := url.Parse(config.URL); err == nil {
		host = u.Hostname()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &RemoteWriteStore{
		config:   config,
		client:   promwrite.NewClient(config.URL),
		resolver: newHostResolver(host, config.DNS, config.Logger),
		ctx:      ctx,
		cancel:   cancel,
	}

	if config.DNS.Enabled && host != "" && net.ParseIP(host) == nil {
		s.wg.Add(1)
		go s.refreshLoop()
	}

	config.Logger.Info("remote write store ready",
		zap.String("url", config.URL),
		zap.String("instance", config.Instance))
	return s, nil
}

func (s *RemoteWriteStore) refreshLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.resolver.cfg.refreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.resolver.refresh(s.ctx, false) {
				s.resetClient()
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// Insert implements Store
func (s *RemoteWriteStore) Insert(ctx context.Context, collection string, doc Document) error {
	if err := validateCollection(collection); err != nil {
		return err
	}

	req := &promwrite.WriteRequest{
		TimeSeries: s.toTimeSeries(collection, doc),
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := s.currentClient().Write(ctx, req)
	if err == nil {
		return nil
	}

	// The endpoint may have moved; re-resolve once and retry
	if s.resolver.refresh(ctx, true) {
		s.resetClient()
		if _, retryErr := s.currentClient().Write(ctx, req); retryErr != nil {
			return fmt.Errorf("writing time series failed after dns refresh: %w", retryErr)
		}
		return nil
	}
	return fmt.Errorf("writing time series failed: %w", err)
}

// toTimeSeries maps a document to one series per value field. The "value"
// field of a scalar is named after the collection alone.
func (s *RemoteWriteStore) toTimeSeries(collection string, doc Document) []promwrite.TimeSeries {
	fields := doc.Value.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	base := fmt.Sprintf("%s_%s", s.config.Namespace, collection)
	result := make([]promwrite.TimeSeries, 0, len(fields))

	for _, field := range names {
		metricName := base
		if field != "value" {
			metricName = base + "_" + field
		}

		labels := make([]promwrite.Label, 0, 2+len(s.config.CustomLabels))
		labels = append(labels,
			promwrite.Label{Name: "__name__", Value: metricName},
			promwrite.Label{Name: "instance", Value: s.config.Instance},
		)
		for k, v := range s.config.CustomLabels {
			labels = append(labels, promwrite.Label{Name: k, Value: v})
		}

		result = append(result, promwrite.TimeSeries{
			Labels: labels,
			Sample: promwrite.Sample{
				Time:  doc.CreatedAt,
				Value: fields[field],
			},
		})
	}

	return result
}

func (s *RemoteWriteStore) currentClient() *promwrite.Client {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.client
}

// resetClient recreates the client so new connections use the new addresses
func (s *RemoteWriteStore) resetClient() {
	s.mutex.Lock()
	s.client = promwrite.NewClient(s.config.URL)
	s.mutex.Unlock()

	s.config.Logger.Info("refreshed remote write client after dns update",
		zap.String("host", s.resolver.host),
		zap.Strings("ips", s.resolver.addresses()))
}

// Close implements Store
func (s *RemoteWriteStore) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// defaultInstance returns the host name, or the outbound IPv4 address when
// the host name is unavailable.
func defaultInstance() (string, error) {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name, nil
	}
	return GetOutboundIPv4()
}

// GetOutboundIPv4 gets the outbound IPv4 address of the local machine
func GetOutboundIPv4() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
