// Package dispatch owns the outbound webhook transport. A dispatch is
// fire-and-forget for the caller: the message is decorated, queued, and
// delivered to every configured target concurrently by a background
// worker. Delivery failures are logged and swallowed; they can never
// reach the code path that triggered the event.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wikirelay/wikirelay/internal/adapter/otel"
	"github.com/wikirelay/wikirelay/internal/config"
	"github.com/wikirelay/wikirelay/internal/format"
)

const userAgent = "wikirelay/1.0 (+https://github.com/wikirelay/wikirelay)"

// payload is the webhook wire format. The empty allowed_mentions parse
// list is load-bearing: it disables all mention resolution server-side,
// complementing the text sanitizer.
type payload struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type job struct {
	id      string
	content []byte
}

// Dispatcher delivers rendered messages to the configured webhook targets.
type Dispatcher struct {
	targets        []string
	client         *http.Client
	requestTimeout time.Duration
	decorators     []decorator
	log            *slog.Logger
	metrics        *otel.Metrics

	queue chan job
	wg    sync.WaitGroup
	once  sync.Once
}

// New creates a Dispatcher and starts its delivery worker. A malformed or
// empty URL list yields a dispatcher that accepts dispatches and delivers
// nothing, per the permissive configuration contract.
func New(cfg config.Webhook, dcfg config.Dispatch, log *slog.Logger, metrics *otel.Metrics) *Dispatcher {
	if cfg.URLs.Malformed {
		log.Warn("webhook.urls is not a string or list; no webhooks will be sent")
	}

	d := &Dispatcher{
		targets: cfg.URLs.Values,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: cfg.ConnectTimeout,
			},
		},
		requestTimeout: cfg.RequestTimeout,
		decorators:     buildDecorators(dcfg, time.Now, log),
		log:            log,
		metrics:        metrics,
		queue:          make(chan job, cfg.QueueSize),
	}

	d.wg.Add(1)
	go d.worker()

	return d
}

// TargetCount reports how many webhook targets are configured.
func (d *Dispatcher) TargetCount() int {
	return len(d.targets)
}

// Dispatch queues one delivery of the message to every configured target.
// It never blocks and never reports an error: a full queue drops the
// notification with a warning, and delivery outcomes surface only in logs
// and metrics. At most one attempt is made per (dispatch, target) pair.
func (d *Dispatcher) Dispatch(hookKind, message string) {
	if len(d.targets) == 0 {
		return
	}

	msg := format.CollapseWhitespace(message)
	if msg == "" {
		return
	}
	for _, dec := range d.decorators {
		msg = dec(hookKind, msg)
	}

	body, err := json.Marshal(payload{
		Content:         msg,
		AllowedMentions: allowedMentions{Parse: []string{}},
	})
	if err != nil {
		d.log.Warn("webhook payload marshal failed", "hook", hookKind, "error", err)
		return
	}

	j := job{id: uuid.NewString(), content: body}
	select {
	case d.queue <- j:
	default:
		d.log.Warn("delivery queue full, notification dropped", "hook", hookKind, "delivery_id", j.id)
	}
}

// Close stops accepting deliveries and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

// deliver fans the job out to all targets concurrently. Each target gets
// its own timeout; a slow or failing target never delays the others, and
// there is no cross-target cancellation.
func (d *Dispatcher) deliver(j job) {
	var g errgroup.Group
	for _, target := range d.targets {
		g.Go(func() error {
			d.post(j, target)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) post(j job, target string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.requestTimeout)
	defer cancel()

	start := time.Now()
	err := d.send(ctx, target, j.content)
	elapsed := time.Since(start)

	d.metrics.Deliveries.Add(ctx, 1)
	d.metrics.DeliveryDuration.Record(ctx, elapsed.Seconds())

	if err != nil {
		d.metrics.DeliveryFailures.Add(ctx, 1)
		d.log.Warn("webhook delivery failed",
			"delivery_id", j.id,
			"target", target,
			"elapsed", elapsed,
			"error", err,
		)
		return
	}
	d.log.Debug("webhook delivered", "delivery_id", j.id, "target", target, "elapsed", elapsed)
}

func (d *Dispatcher) send(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
