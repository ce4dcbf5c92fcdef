package pageviews

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// entityOutcome pairs an entity key with its fetched result.
type entityOutcome struct {
	key    string
	result EntityResult
}

// fetchConcurrent runs fetch for every key through a worker pool of size
// Config.Parallelism, so at most that many requests are in flight at any
// instant. The output map's key set always equals the input key set: keys
// skipped because the call timeout expired carry a timeout error in their
// slot. The pool is fully drained before returning on all paths.
func (c *Client) fetchConcurrent(ctx context.Context, keys []string, fetch func(ctx context.Context, key string) EntityResult) map[string]EntityResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	c.logger.Info().
		Int("entities", len(keys)).
		Int("parallelism", c.config.Parallelism).
		Msg("Starting batch query")

	// Fill the work queue up front; buffered so filling never blocks
	queue := make(chan string, len(keys))
	for _, key := range keys {
		queue <- key
	}
	close(queue)

	// Buffered to the batch size so workers never block on send
	results := make(chan entityOutcome, len(keys))

	workers := c.config.Parallelism
	if workers > len(keys) {
		workers = len(keys)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go c.worker(ctx, queue, results, &wg, i, fetch)
	}

	// Close results channel when all workers are done
	go func() {
		wg.Wait()
		close(results)
	}()

	// Assemble by key; completion order is irrelevant
	output := make(map[string]EntityResult, len(keys))
	failed := 0
	for outcome := range results {
		output[outcome.key] = outcome.result
		recordOutcome(outcome.result)
		if outcome.result.Err != nil {
			failed++
		}
	}

	batchDuration.Observe(time.Since(start).Seconds())
	c.logger.Info().
		Int("entities", len(keys)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch query complete")

	return output
}

// worker processes entities from the queue. Every entity pulled gets a
// result slot, even after the call deadline expires.
func (c *Client) worker(ctx context.Context, queue <-chan string, results chan<- entityOutcome, wg *sync.WaitGroup, workerID int, fetch func(ctx context.Context, key string) EntityResult) {
	defer wg.Done()
	processed := 0

	for key := range queue {
		// Deadline already hit: mark remaining entities instead of fetching
		select {
		case <-ctx.Done():
			results <- entityOutcome{
				key:    key,
				result: EntityResult{Err: fmt.Errorf("batch call timeout: %w", ctx.Err())},
			}
			continue
		default:
		}

		result := fetch(ctx, key)
		if result.Err != nil {
			c.logger.Warn().
				Err(result.Err).
				Int("worker_id", workerID).
				Str("entity", key).
				Msg("Entity fetch failed")
		}

		results <- entityOutcome{key: key, result: result}
		processed++
	}

	if processed > 0 {
		c.logger.Debug().
			Int("worker_id", workerID).
			Int("entities_processed", processed).
			Msg("Worker completed")
	}
}
