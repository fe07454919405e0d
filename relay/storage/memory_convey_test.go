package storage

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStoreSemantics(t *testing.T) {
	Convey("memory store", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		loc := Location{Bucket: "qgen-output", Key: "async/job.out"}

		Convey("missing objects report not found", func() {
			_, err := store.Get(ctx, loc)
			So(IsNotFound(err), ShouldBeTrue)
		})

		Convey("a later put overwrites the object", func() {
			So(store.Put(ctx, loc, []byte("first")), ShouldBeNil)
			So(store.Put(ctx, loc, []byte("second")), ShouldBeNil)

			body, err := store.Get(ctx, loc)
			So(err, ShouldBeNil)
			So(string(body), ShouldEqual, "second")
		})

		Convey("callers cannot mutate stored bytes", func() {
			in := []byte("payload")
			So(store.Put(ctx, loc, in), ShouldBeNil)
			in[0] = 'X'

			out, err := store.Get(ctx, loc)
			So(err, ShouldBeNil)
			out[1] = 'Y'

			again, err := store.Get(ctx, loc)
			So(err, ShouldBeNil)
			So(string(again), ShouldEqual, "payload")
		})

		Convey("deleted objects are gone", func() {
			So(store.Put(ctx, loc, []byte("x")), ShouldBeNil)
			store.Delete(loc)
			store.Delete(loc)

			_, err := store.Get(ctx, loc)
			So(IsNotFound(err), ShouldBeTrue)
		})
	})
}
