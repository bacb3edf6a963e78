// Package resumable implements a client-side engine for resumable, chunked
// large-file transfer.
//
// A file is split into fixed-size byte ranges, transmitted under a bounded
// concurrency budget, with optional existence probes to skip ranges the
// receiver already stores, automatic retries for transient failures, and
// per-range progress aggregated into per-file and queue-wide completion
// signals. The engine owns the chunk/file state machine and the scheduler;
// the wire is delegated to a transport.Adapter.
//
// # Getting Started
//
// Create a client with options, admit files, and start the upload:
//
//	adapter, err := transport.NewHTTPAdapter(transport.HTTPConfig{
//	    Target: "https://example.com/upload",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	options := resumable.NewOptions()
//	options.Adapter = adapter
//	options.SimultaneousUploads = 3
//
//	client, err := resumable.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	item, err := resumable.NewLocalItem("video.mp4")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.AddFiles(item)
//	client.Upload()
//
// # Observing Progress
//
// The client exposes a synchronous event bus. Subscribe to a single kind or
// to events.KindAny for everything:
//
//	client.Events().Subscribe(events.KindFileSuccess, func(ev events.Event) {
//	    done := ev.(events.FileSuccess)
//	    fmt.Println("uploaded:", done.Identifier)
//	})
//
// # Concurrency Model
//
// All queue, file, and chunk state transitions happen under a single engine
// mutex; only the transport call itself runs on a worker goroutine, and its
// outcome re-enters the engine under the mutex. Aborting a chunk or file
// takes effect immediately: a cancelled transmission never mutates state as
// if it had succeeded.
package resumable
