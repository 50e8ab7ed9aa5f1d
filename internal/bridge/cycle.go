package bridge

import (
	"context"
	"time"

	"github.com/nerrad567/prusalink-bridge/internal/prusalink"
)

// cycle holds the documents fetched in one poll cycle.
// It is created by fetchAll, read by derive, and then dropped.
type cycle struct {
	status *prusalink.Status
	job    *prusalink.Job
	info   *prusalink.Info
}

// ready reports whether the cycle has enough data to publish.
// A missing job document alone does not block publishing.
func (c *cycle) ready() bool {
	return c.status != nil && c.info != nil
}

// fetchAll performs the three reads in order. Each read is independent:
// a failed read leaves its document nil and the others still run.
// Once the bridge is stopping the remaining reads are skipped and the
// partial cycle is returned; Run discards it.
func (b *Bridge) fetchAll(ctx context.Context) cycle {
	var c cycle
	var err error

	c.status, err = b.source.FetchStatus(ctx)
	if b.stopping(ctx) {
		return c
	}
	if err != nil {
		b.fetchFailed(prusalink.PathStatus, err)
	}

	c.job, err = b.source.FetchJob(ctx)
	if b.stopping(ctx) {
		return c
	}
	switch {
	case err != nil:
		b.fetchFailed(prusalink.PathJob, err)
	case c.job == nil:
		b.logDebug("no active job", "endpoint", prusalink.PathJob)
	}

	c.info, err = b.source.FetchInfo(ctx)
	if b.stopping(ctx) {
		return c
	}
	if err != nil {
		b.fetchFailed(prusalink.PathInfo, err)
	}

	return c
}

func (b *Bridge) fetchFailed(endpoint string, err error) {
	b.metrics.fetchFailures.Add(1)
	b.logWarn("printer fetch failed", "endpoint", endpoint, "error", err)
}

// derive builds the full snapshot for a ready cycle.
func derive(c *cycle, loc Locations) Snapshot {
	var s Snapshot
	for _, sig := range AllSignals() {
		s.values[sig] = descriptors[sig].derive(c, loc)
	}
	return s
}

// publishDiff publishes every signal of cur that differs from prev, or all
// of them when prev is nil. Publish failures are logged and counted; they
// do not stop the pass.
//
// The caller replaces prev with cur afterwards whether or not every
// publish succeeded, so a dropped publish is not retried until the value
// changes again. The broker's retained copy keeps the last delivered value.
func (b *Bridge) publishDiff(prev, cur *Snapshot) int {
	now := b.now()
	published := 0

	for _, sig := range AllSignals() {
		value := cur.values[sig]
		if prev != nil && prev.values[sig] == value {
			continue
		}

		topic := b.topics[sig]
		payload := value.Payload(now)
		if err := b.broker.Publish(topic, payload, b.qos, true); err != nil {
			b.metrics.publishFailures.Add(1)
			b.logWarn("publish failed", "signal", sig.Key(), "topic", topic, "error", err)
			continue
		}

		published++
		b.metrics.publishes.Add(1)
		if b.observer != nil {
			b.observer(Published{Signal: sig, Topic: topic, Payload: payload, At: now})
		}
	}

	return published
}

// wait blocks for one poll interval. It returns false if the bridge is
// stopping or ctx is done.
func (b *Bridge) wait(ctx context.Context) bool {
	timer := time.NewTimer(b.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	case <-timer.C:
		return true
	}
}
