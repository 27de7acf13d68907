package config

import (
	"os"

	"github.com/fsnotify/fsnotify"
)

// Watch watches the .env file and invokes onChange with a freshly loaded
// Config whenever it is rewritten. Used for log-level hot reload; most
// settings still require a restart. Returns a stop function.
func Watch(onChange func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := watcher.Add(".env"); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange(Load())
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
