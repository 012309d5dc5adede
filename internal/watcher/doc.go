// Package watcher delivers recursive file system change notifications for
// imported roots.
//
// A Service owns one fsnotify handle and a single listener goroutine. Each
// watched directory is a subscription carrying the callback it was
// registered with; directories created under a subscription inherit it.
// Callbacks run on the listener goroutine and must return quickly, so callers
// usually hand events to a Debouncer and process its batches elsewhere.
//
// Usage:
//
//	svc, err := watcher.NewService()
//	if err != nil {
//	    return err
//	}
//	defer svc.Shutdown()
//
//	d := watcher.NewDebouncer(200*time.Millisecond, 64)
//	if err := svc.Register("/data/photos", d.Add); err != nil {
//	    return err
//	}
//	svc.Start()
//
//	for batch := range d.Output() {
//	    for _, event := range batch {
//	        switch event.Operation {
//	        case watcher.OpCreate, watcher.OpModify:
//	            // enrich event.Path
//	        case watcher.OpDelete:
//	            // evict event.Path
//	        }
//	    }
//	}
package watcher
