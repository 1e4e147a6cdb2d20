// Command goqueryd serves the posts demo API used by
// cmd/goquery-demo and examples/postsbridge: an HTTP CRUD surface
// plus a WebSocket feed that pushes a mutation event after every
// write, so connected clients can invalidate their query caches.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-logr/logr/funcr"

	"goquery/examples/postsapi"
	"goquery/server"
)

func main() {
	port := flag.Int("port", 8080, "port to serve on")
	flag.Parse()

	log := funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stdout, prefix, args)
	}, funcr.Options{})

	broadcaster := postsapi.NewBroadcaster(log)
	svc := postsapi.NewService()
	handler := postsapi.NewHandler(svc, broadcaster)

	mux := handler.Routes()
	mux.Handle("/ws/posts", broadcaster)

	chain := server.Chain(
		server.Recover(log),
		server.RequestID(),
		server.Logger(log),
		server.CORS(server.CORSOptions{}),
	)

	addr := fmt.Sprintf(":%d", *port)
	fmt.Printf("goqueryd listening on http://localhost%s\n", addr)
	fmt.Println("  GET    /api/posts      - list posts")
	fmt.Println("  GET    /api/posts/{id} - get post")
	fmt.Println("  POST   /api/posts      - create post")
	fmt.Println("  PUT    /api/posts/{id} - update post")
	fmt.Println("  DELETE /api/posts/{id} - delete post")
	fmt.Println("  WS     /ws/posts       - mutation feed")

	if err := http.ListenAndServe(addr, chain(mux)); err != nil {
		log.Error(err, "server exited")
		os.Exit(1)
	}
}
