package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/domain/dedupe"
)

func TestSeenAndRecord(t *testing.T) {
	Convey("Given a fresh deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When an id is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "match-1")

			Convey("Then it reports unseen", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then a repeat submission reports seen", func() {
				So(d.SeenAndRecord(ctx, "match-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When distinct ids are recorded", func() {
			So(d.SeenAndRecord(ctx, "match-1"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "match-2"), ShouldBeFalse)

			Convey("Then each is tracked independently", func() {
				So(d.Size(), ShouldEqual, 2)
			})
		})
	})
}

func TestUnrecord(t *testing.T) {
	Convey("Given a deduper with a recorded id", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		So(d.SeenAndRecord(ctx, "match-1"), ShouldBeFalse)

		Convey("When the id is unrecorded", func() {
			d.Unrecord(ctx, "match-1")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "match-1"), ShouldBeFalse)
			})
		})

		Convey("When an unknown id is unrecorded", func() {
			d.Unrecord(ctx, "never-seen")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})
}

func TestEviction(t *testing.T) {
	Convey("Given a deduper bounded to three ids", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		for i := 1; i <= 3; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("match-%d", i)), ShouldBeFalse)
		}

		Convey("When a fourth id arrives", func() {
			So(d.SeenAndRecord(ctx, "match-4"), ShouldBeFalse)

			Convey("Then the oldest id is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "match-1"), ShouldBeFalse)
			})

			Convey("Then newer ids stay tracked", func() {
				So(d.SeenAndRecord(ctx, "match-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "match-4"), ShouldBeTrue)
			})
		})

		Convey("When an id was unrecorded before eviction would reach it", func() {
			d.Unrecord(ctx, "match-1")
			So(d.SeenAndRecord(ctx, "match-4"), ShouldBeFalse)

			Convey("Then eviction skips the hole and keeps live ids", func() {
				So(d.SeenAndRecord(ctx, "match-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "match-3"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a deduper with eviction disabled", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When many ids are recorded", func() {
			for i := 0; i < 1000; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("match-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
			})
		})
	})
}

func TestConcurrentAccess(t *testing.T) {
	Convey("Given a shared deduper under concurrent submissions", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When many goroutines race on the same id", func() {
			const goroutines = 32
			firsts := make(chan bool, goroutines)
			var wg sync.WaitGroup
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(ctx, "contested") {
						firsts <- true
					}
				}()
			}
			wg.Wait()
			close(firsts)

			Convey("Then exactly one wins", func() {
				So(len(firsts), ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})
}
