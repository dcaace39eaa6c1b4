// Package watcher watches an inbox folder for PDF files and hands each new
// file to an upload function.
//
// Events come from fsnotify, or from periodic directory scans when fsnotify
// cannot be initialised (network mounts, some container volumes). They are
// debounced so that a file being copied in produces a single upload.
//
// Usage:
//
//	in := watcher.NewInbox(dir, upload, watcher.DefaultOptions(), logger)
//	if err := in.Run(ctx); err != nil {
//	    return err
//	}
package watcher
