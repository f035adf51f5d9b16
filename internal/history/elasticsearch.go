package history

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog/log"
)

type ElasticsearchConfig struct {
	Addresses   []string
	Username    string
	Password    string
	Index       string
	VerifyCerts bool
	MaxRetries  int
	QueueSize   int
	Timeout     time.Duration
}

// ElasticsearchRecorder indexes entries from a background worker. Entries that
// arrive while the queue is full are dropped and logged.
type ElasticsearchRecorder struct {
	client  *elasticsearch.Client
	index   string
	timeout time.Duration

	// mu guards closed; Record holds it for reading while it sends so Close
	// never closes queue under a sender.
	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}
}

func NewElasticsearchRecorder(cfg ElasticsearchConfig) (*ElasticsearchRecorder, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch address is required")
	}
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = "arquery-history"
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	r := &ElasticsearchRecorder{
		client:  client,
		index:   index,
		timeout: timeout,
		queue:   make(chan Entry, queueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Record enqueues e. It never blocks, and entries recorded after Close are
// dropped.
func (r *ElasticsearchRecorder) Record(_ context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		log.Warn().Str("request_id", e.RequestID).Str("index", r.index).Msg("history recorder closed, entry dropped")
		return
	}
	select {
	case r.queue <- e:
	default:
		log.Warn().Str("request_id", e.RequestID).Str("index", r.index).Msg("history queue full, entry dropped")
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (r *ElasticsearchRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping checks the cluster is reachable.
func (r *ElasticsearchRecorder) Ping(ctx context.Context) error {
	res, err := r.client.Ping(r.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

func (r *ElasticsearchRecorder) run() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.indexEntry(ctx, e); err != nil {
			log.Warn().Err(err).Str("request_id", e.RequestID).Str("index", r.index).Msg("history index failed")
		}
		cancel()
	}
}

func (r *ElasticsearchRecorder) indexEntry(ctx context.Context, e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	opts := []func(*esapi.IndexRequest){r.client.Index.WithContext(ctx)}
	if e.RequestID != "" {
		opts = append(opts, r.client.Index.WithDocumentID(e.RequestID))
	}
	res, err := r.client.Index(r.index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("index error %s: %s", res.Status(), msg)
	}
	return nil
}
