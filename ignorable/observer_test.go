package ignorable

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestObserver(t *testing.T) {
	Convey("测试指标", t, func() {
		registry := prometheus.NewRegistry()
		o, err := NewObserverWithOptions(&ObserverOptions{
			Name:          "ignorable_test",
			EnableMetrics: true,
			EnableTracing: true,
			Registerer:    registry,
		})
		So(err, ShouldBeNil)

		env := newTestEnv(t, WithObserver(o))
		ctx := env.ctx
		tm := env.testModel
		tm.IgnoreColumns("legacy")

		Convey("列获取和重置", func() {
			columnNames(ctx, tm)
			So(testutil.ToFloat64(o.fetchTotal.WithLabelValues("TestModel", "success")), ShouldEqual, 1)
			So(testutil.ToFloat64(o.resetTotal.WithLabelValues("TestModel")), ShouldEqual, 1)

			missing := env.registry.MustDefine("Missing", "missing_table")
			_, err := missing.Columns(ctx)
			So(err, ShouldNotBeNil)
			So(testutil.ToFloat64(o.fetchTotal.WithLabelValues("Missing", "error")), ShouldEqual, 1)
		})

		Convey("作用域", func() {
			So(tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				So(testutil.ToFloat64(o.activeScopes.WithLabelValues("TestModel")), ShouldEqual, 1)
				return nil
			}), ShouldBeNil)
			So(tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				return errors.New("body failed")
			}), ShouldNotBeNil)

			So(testutil.ToFloat64(o.activeScopes.WithLabelValues("TestModel")), ShouldEqual, 0)
			So(testutil.ToFloat64(o.scopeTotal.WithLabelValues("TestModel", "success")), ShouldEqual, 1)
			So(testutil.ToFloat64(o.scopeTotal.WithLabelValues("TestModel", "error")), ShouldEqual, 1)
		})

		Convey("同名指标复用已注册的 collector", func() {
			o2, err := NewObserverWithOptions(&ObserverOptions{Name: "ignorable_test", EnableMetrics: true, Registerer: registry})
			So(err, ShouldBeNil)
			So(o2.fetchTotal, ShouldEqual, o.fetchTotal)
			So(o2.activeScopes, ShouldEqual, o.activeScopes)
		})

		Convey("关闭指标时不注册", func() {
			empty := prometheus.NewRegistry()
			o3, err := NewObserverWithOptions(&ObserverOptions{Name: "ignorable_test", Registerer: empty})
			So(err, ShouldBeNil)
			So(o3.fetchTotal, ShouldBeNil)
			families, err := empty.Gather()
			So(err, ShouldBeNil)
			So(families, ShouldBeEmpty)
		})

		Convey("nil Observer 是空操作", func() {
			var nilObserver *Observer
			So(nilObserver.observeFetch(ctx, tm, func(context.Context) (int, error) { return 0, nil }), ShouldBeNil)
			nilObserver.observeReset(tm)
			_, end := nilObserver.observeScope(ctx, tm, 0)
			end(nil)

			_, err := NewObserverWithOptions(nil)
			So(err, ShouldNotBeNil)
		})
	})
}
