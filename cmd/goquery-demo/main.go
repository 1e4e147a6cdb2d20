// Command goquery-demo is a terminal walkthrough of package query's
// lifecycle against a running goqueryd: setArg, invalidate, refetch,
// rebinding to another argument and cancel, each logged as it
// happens. Trigger is not exercised. It replaces the
// teacher's WASM demo page — there is no UI host here, only the core
// and its logging.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr/funcr"
	"golang.org/x/sync/errgroup"

	"goquery/examples/posts"
	"goquery/examples/postsbridge"
	"goquery/query"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "goqueryd base URL")
	flag.Parse()

	log := funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stdout, prefix, args)
	}, funcr.Options{Verbosity: 1})

	client := postsbridge.NewHTTPClient(*baseURL)

	endpoint := query.NewEndpoint[int, *posts.Post](
		func(ctx context.Context, id int) (*posts.Post, error) {
			return client.GetByID(ctx, id)
		},
		query.WithDefaultStaleTime[int](time.Minute),
		query.WithLogger[int](log),
	)

	ctx := context.Background()

	fmt.Println("--- setArgAsync(1) twice from two observers (dedup) ---")
	o1 := endpoint.Use()
	o2 := endpoint.Use()
	var g errgroup.Group
	g.Go(func() error { return o1.SetArgAsync(ctx, 1) })
	g.Go(func() error { return o2.SetArgAsync(ctx, 1) })
	if err := g.Wait(); err != nil {
		fmt.Println("error:", err)
	}
	printObserver("o1", o1)
	printObserver("o2", o2)

	fmt.Println("--- endpoint.Invalidate(1): o1 refetches because it has an observer on it ---")
	endpoint.Invalidate(1)
	time.Sleep(100 * time.Millisecond)
	printObserver("o1", o1)

	fmt.Println("--- o1.RefetchAsync: refetch the cached entry for 1 ---")
	if _, err := o1.RefetchAsync(ctx); err != nil {
		fmt.Println("error:", err)
	}
	printObserver("o1", o1)

	fmt.Println("--- o2.SetArgAsync(2): rebind to a different argument ---")
	if err := o2.SetArgAsync(ctx, 2); err != nil {
		fmt.Println("error:", err)
	}
	printObserver("o2", o2)

	fmt.Println("--- o1.Cancel() on an in-flight refetch ---")
	done := make(chan struct{})
	go func() {
		_, _ = o1.RefetchAsync(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	o1.Cancel()
	<-done
	printObserver("o1", o1)

	o1.Detach()
	o2.Detach()
}

func printObserver(name string, o *query.Observer[int, *posts.Post]) {
	data, ok := o.Data()
	if !ok {
		fmt.Printf("%s: status=%s (no data)\n", name, o.Status())
		return
	}
	fmt.Printf("%s: status=%s title=%q isFetching=%v\n", name, o.Status(), data.Title, o.IsFetching())
}
