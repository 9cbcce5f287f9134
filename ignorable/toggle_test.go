package ignorable

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/sync/errgroup"

	"github.com/hatlonely/ignorable/rdb"
)

func TestWithIncludedColumns(t *testing.T) {
	Convey("测试放开忽略列", t, func() {
		env := newTestEnv(t)
		ctx := env.ctx
		tm := env.testModel
		tm.IgnoreColumns("some_attributes", "legacy")

		Convey("作用域内可见，退出后恢复", func() {
			So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})

			var inside []string
			err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				inside = columnNames(ctx, tm)
				So(tm.IsIgnored(ctx, "legacy"), ShouldBeFalse)
				So(tm.IsIgnored(ctx, "some_attributes"), ShouldBeTrue)
				So(tm.IncludedColumns(ctx), ShouldResemble, []string{"legacy"})
				So(tm.Visibility(ctx).String(), ShouldEqual, "elevated(legacy)")
				return nil
			}, "legacy")
			So(err, ShouldBeNil)
			So(inside, ShouldResemble, []string{"id", "name", "legacy"})

			So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
			So(tm.IsIgnored(ctx, "legacy"), ShouldBeTrue)
			So(tm.Visibility(ctx).IsElevated(), ShouldBeFalse)
			So(tm.IncludedColumns(ctx), ShouldBeEmpty)
		})

		Convey("不传列名时放开所有忽略列", func() {
			err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name", "some_attributes", "legacy"})
				So(tm.Visibility(ctx).IncludesAll(), ShouldBeTrue)
				So(tm.IncludedColumns(ctx), ShouldResemble, []string{"some_attributes", "legacy"})
				return nil
			})
			So(err, ShouldBeNil)
			So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
		})

		Convey("不在忽略集合中的列名被跳过", func() {
			err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
				So(tm.Visibility(ctx).IsElevated(), ShouldBeTrue)
				So(tm.IncludedColumns(ctx), ShouldBeEmpty)
				return nil
			}, "name", "missing")
			So(err, ShouldBeNil)
		})

		Convey("任意子集放开后都能恢复", func() {
			for _, subset := range [][]string{{"legacy"}, {"some_attributes"}, {"legacy", "some_attributes"}} {
				err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
					names := columnNames(ctx, tm)
					for _, name := range subset {
						So(names, ShouldContain, name)
					}
					return nil
				}, subset...)
				So(err, ShouldBeNil)
				So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
			}
		})

		Convey("放开不会重新获取后端列", func() {
			columnNames(ctx, tm)
			fetches := env.fetches.Load()
			So(tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				columnNames(ctx, tm)
				return nil
			}), ShouldBeNil)
			columnNames(ctx, tm)
			So(env.fetches.Load(), ShouldEqual, fetches)
		})

		Convey("作用域内投影带上放开的列，退出后恢复", func() {
			So(tm.IgnoreColumnsInSQL(ctx), ShouldBeNil)
			err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				So(projectionColumns(ctx, tm), ShouldResemble, []string{"id", "name", "legacy"})
				So(tm.Projection().Columns(), ShouldResemble, []string{"id", "name"})
				return nil
			}, "legacy")
			So(err, ShouldBeNil)
			So(projectionColumns(ctx, tm), ShouldResemble, []string{"id", "name"})
		})

		Convey("作用域内的错误在恢复后返回", func() {
			So(tm.IgnoreColumnsInSQL(ctx), ShouldBeNil)
			cause := errors.New("body failed")
			err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				return cause
			}, "legacy")
			So(err, ShouldEqual, cause)
			So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
			So(tm.Projection().Columns(), ShouldResemble, []string{"id", "name"})
		})

		Convey("作用域内 panic 先恢复再抛出", func() {
			So(tm.IgnoreColumnsInSQL(ctx), ShouldBeNil)
			So(func() {
				_ = tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
					panic("boom")
				}, "legacy")
			}, ShouldPanicWith, "boom")
			So(tm.Visibility(ctx).IsElevated(), ShouldBeFalse)
			So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
			So(tm.Projection().Columns(), ShouldResemble, []string{"id", "name"})

			// 锁已经释放
			So(tm.WithIncludedColumns(ctx, func(ctx context.Context) error { return nil }), ShouldBeNil)
		})

		Convey("同一类型重复进入返回错误", func() {
			err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				inner := tm.WithIncludedColumns(ctx, func(ctx context.Context) error { return nil }, "some_attributes")
				So(errors.Is(inner, ErrReentrantScope), ShouldBeTrue)
				So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name", "legacy"})
				return inner
			}, "legacy")
			So(errors.Is(err, ErrReentrantScope), ShouldBeTrue)
			So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
		})

		Convey("换成不带作用域的 ctx 再次进入会等待外层作用域，ctx 结束后返回", func() {
			err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
				defer cancel()
				inner := tm.WithIncludedColumns(waitCtx, func(ctx context.Context) error { return nil }, "some_attributes")
				So(errors.Is(inner, context.DeadlineExceeded), ShouldBeTrue)
				So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name", "legacy"})
				return nil
			}, "legacy")
			So(err, ShouldBeNil)
			So(tm.WithIncludedColumns(ctx, func(ctx context.Context) error { return nil }), ShouldBeNil)
		})

		Convey("不同类型可以嵌套", func() {
			env.author.IgnoreColumns("password_digest")
			err := tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
				return env.author.WithIncludedColumns(ctx, func(ctx context.Context) error {
					So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name", "some_attributes", "legacy"})
					So(columnNames(ctx, env.author), ShouldResemble, []string{"id", "name", "password_digest"})
					return nil
				})
			})
			So(err, ShouldBeNil)
			So(columnNames(ctx, env.author), ShouldResemble, []string{"id", "name"})
		})

		Convey("Including 返回作用域内的结果", func() {
			names, err := Including(ctx, tm, func(ctx context.Context) ([]string, error) {
				return tm.ColumnNames(ctx)
			}, "some_attributes")
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"id", "name", "some_attributes"})
		})

		Convey("子类型的作用域不影响父类型", func() {
			sub, err := env.registry.Subclass(tm, "SubclassTestModel")
			So(err, ShouldBeNil)
			err = sub.WithIncludedColumns(ctx, func(ctx context.Context) error {
				So(columnNames(ctx, sub), ShouldResemble, []string{"id", "name", "legacy"})
				So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
				return nil
			}, "legacy")
			So(err, ShouldBeNil)
		})
	})
}

func TestWithIncludedColumnsConcurrency(t *testing.T) {
	Convey("测试放开忽略列的并发", t, func() {
		env := newTestEnv(t)
		ctx := env.ctx
		tm := env.testModel
		tm.IgnoreColumns("some_attributes", "legacy")
		env.author.IgnoreColumns("password_digest")
		So(tm.IgnoreColumnsInSQL(ctx), ShouldBeNil)
		So(env.author.IgnoreColumnsInSQL(ctx), ShouldBeNil)

		Convey("同一类型的作用域互斥", func() {
			var active, maxActive atomic.Int32
			var mu sync.Mutex
			var seen [][]string

			var g errgroup.Group
			for i := 0; i < 8; i++ {
				column := []string{"legacy", "some_attributes"}[i%2]
				g.Go(func() error {
					return tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
						n := active.Add(1)
						defer active.Add(-1)
						for {
							m := maxActive.Load()
							if n <= m || maxActive.CompareAndSwap(m, n) {
								break
							}
						}
						names, err := tm.ColumnNames(ctx)
						if err != nil {
							return err
						}
						mu.Lock()
						seen = append(seen, names)
						mu.Unlock()
						time.Sleep(2 * time.Millisecond)
						return nil
					}, column)
				})
			}
			So(g.Wait(), ShouldBeNil)
			So(maxActive.Load(), ShouldEqual, 1)
			So(seen, ShouldHaveLength, 8)
			for _, names := range seen {
				So(names, ShouldHaveLength, 3)
			}
			So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
			So(tm.Projection().Columns(), ShouldResemble, []string{"id", "name"})
		})

		Convey("作用域外的调用看不到放开的列", func() {
			model := NewModel(tm, env.sql)
			_, err := env.sql.Insert(ctx, "test_models", rdb.NewRecordFromMap(map[string]any{
				"name": "test", "legacy": 1,
			}, "name", "legacy"), "id")
			So(err, ShouldBeNil)
			inst, err := model.First(ctx, nil)
			So(err, ShouldBeNil)

			entered, release := make(chan struct{}), make(chan struct{})
			var g errgroup.Group
			g.Go(func() error {
				return tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
					names, err := tm.ColumnNames(ctx)
					if err != nil {
						return err
					}
					if len(names) != 3 {
						return errors.Errorf("scope sees %v", names)
					}
					close(entered)
					<-release
					return nil
				}, "legacy")
			})
			<-entered

			var reads errgroup.Group
			for i := 0; i < 4; i++ {
				reads.Go(func() error {
					names, err := tm.ColumnNames(context.Background())
					if err != nil {
						return err
					}
					if len(names) != 2 {
						return errors.Errorf("unrelated read sees %v", names)
					}
					return nil
				})
			}
			So(reads.Wait(), ShouldBeNil)

			So(columnNames(ctx, tm), ShouldResemble, []string{"id", "name"})
			So(projectionColumns(ctx, tm), ShouldResemble, []string{"id", "name"})
			So(tm.Projection().Columns(), ShouldResemble, []string{"id", "name"})
			So(tm.Visibility(ctx).IsElevated(), ShouldBeFalse)
			So(tm.IsIgnored(ctx, "legacy"), ShouldBeTrue)
			So(inst.RespondTo(ctx, "legacy"), ShouldBeFalse)
			So(inst.Attributes(ctx), ShouldNotContainKey, "legacy")

			found, err := model.Find(ctx, nil)
			So(err, ShouldBeNil)
			So(found, ShouldHaveLength, 1)
			So(found[0].RawAttributes(), ShouldNotContainKey, "legacy")

			close(release)
			So(g.Wait(), ShouldBeNil)
		})

		Convey("不同类型的作用域可以同时进行", func() {
			tmIn, authorIn := make(chan struct{}), make(chan struct{})
			wait := func(ch chan struct{}) error {
				select {
				case <-ch:
					return nil
				case <-time.After(time.Second):
					return errors.New("scopes of different types did not overlap")
				}
			}

			var g errgroup.Group
			g.Go(func() error {
				return tm.WithIncludedColumns(ctx, func(ctx context.Context) error {
					close(tmIn)
					return wait(authorIn)
				})
			})
			g.Go(func() error {
				return env.author.WithIncludedColumns(ctx, func(ctx context.Context) error {
					close(authorIn)
					return wait(tmIn)
				})
			})
			So(g.Wait(), ShouldBeNil)
		})
	})
}
