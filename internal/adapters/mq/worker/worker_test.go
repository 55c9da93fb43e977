package worker_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/adapters/mq/queue"
	"github.com/okian/ladder/internal/adapters/mq/worker"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// countingProcessor records processed matches and closes done once target
// matches have been seen, failures included.
type countingProcessor struct {
	mu        sync.Mutex
	processed []model.MatchResult
	failIDs   map[string]bool

	target int
	done   chan struct{}
}

func newCountingProcessor(target int) *countingProcessor {
	return &countingProcessor{
		failIDs: make(map[string]bool),
		target:  target,
		done:    make(chan struct{}),
	}
}

func (p *countingProcessor) ProcessMatch(_ context.Context, m model.MatchResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, m)
	if len(p.processed) == p.target {
		close(p.done)
	}
	if p.failIDs[m.MatchID] {
		return errors.New("processing failed")
	}
	return nil
}

func (p *countingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func makeMatch(id string) model.MatchResult {
	return model.MatchResult{
		MatchID:     id,
		Bracket:     model.BracketSolo,
		WinnerID:    "alpha",
		LoserID:     "beta",
		WinnerScore: 3,
		LoserScore:  0,
	}
}

func waitDone(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-time.After(5 * time.Second):
		return false
	}
}

func TestWorkerRun(t *testing.T) {
	Convey("Given a worker bound to a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue()

		Convey("When matches are enqueued and the queue closes", func() {
			proc := newCountingProcessor(3)
			w := worker.NewInMemoryWorker(q, proc, worker.WithName("test-worker"))

			for i := 1; i <= 3; i++ {
				So(q.Enqueue(ctx, makeMatch(fmt.Sprintf("m-%d", i))), ShouldBeTrue)
			}

			runErr := make(chan error, 1)
			go func() { runErr <- w.Run(ctx) }()

			Convey("Then every match is processed and the worker exits cleanly", func() {
				So(waitDone(proc.done), ShouldBeTrue)
				So(q.Close(), ShouldBeNil)

				select {
				case err := <-runErr:
					So(err, ShouldBeNil)
				case <-time.After(5 * time.Second):
					So("worker did not exit", ShouldBeEmpty)
				}
				So(proc.count(), ShouldEqual, 3)
			})
		})

		Convey("When the processor fails on one match", func() {
			proc := newCountingProcessor(3)
			proc.failIDs["m-2"] = true
			w := worker.NewInMemoryWorker(q, proc)

			for i := 1; i <= 3; i++ {
				So(q.Enqueue(ctx, makeMatch(fmt.Sprintf("m-%d", i))), ShouldBeTrue)
			}

			runErr := make(chan error, 1)
			go func() { runErr <- w.Run(ctx) }()

			Convey("Then the worker keeps consuming past the failure", func() {
				So(waitDone(proc.done), ShouldBeTrue)
				So(proc.count(), ShouldEqual, 3)

				So(q.Close(), ShouldBeNil)
				select {
				case err := <-runErr:
					So(err, ShouldBeNil)
				case <-time.After(5 * time.Second):
					So("worker did not exit", ShouldBeEmpty)
				}
			})
		})

		Convey("When the context is cancelled", func() {
			proc := newCountingProcessor(1)
			w := worker.NewInMemoryWorker(q, proc)

			runCtx, cancel := context.WithCancel(ctx)
			runErr := make(chan error, 1)
			go func() { runErr <- w.Run(runCtx) }()
			cancel()

			Convey("Then the worker stops with the context error", func() {
				select {
				case err := <-runErr:
					So(errors.Is(err, context.Canceled), ShouldBeTrue)
				case <-time.After(5 * time.Second):
					So("worker did not exit", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers over a shared queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue()

		const matches = 20
		proc := newCountingProcessor(matches)
		pool := worker.NewPool(4, q, proc)

		Convey("When a batch of matches flows through", func() {
			pool.Start(ctx)
			for i := 0; i < matches; i++ {
				So(q.Enqueue(ctx, makeMatch(fmt.Sprintf("m-%d", i))), ShouldBeTrue)
			}

			Convey("Then every match is processed exactly once", func() {
				So(waitDone(proc.done), ShouldBeTrue)

				So(q.Close(), ShouldBeNil)
				pool.Stop(ctx)

				So(proc.count(), ShouldEqual, matches)
				seen := make(map[string]bool, matches)
				proc.mu.Lock()
				for _, m := range proc.processed {
					So(seen[m.MatchID], ShouldBeFalse)
					seen[m.MatchID] = true
				}
				proc.mu.Unlock()
			})
		})

		Convey("When the pool size is not positive", func() {
			small := worker.NewPool(0, q, proc)
			small.Start(ctx)

			Convey("Then it still runs a single worker", func() {
				So(q.Enqueue(ctx, makeMatch("solo")), ShouldBeTrue)
				So(waitDoneN(proc, 1), ShouldBeTrue)
				So(q.Close(), ShouldBeNil)
				small.Stop(ctx)
			})
		})
	})
}

// waitDoneN polls until the processor has seen at least n matches.
func waitDoneN(p *countingProcessor, n int) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p.count() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
