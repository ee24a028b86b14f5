// Command jequi is the server binary: it loads conf.yaml, binds the
// listener, and serves connections until told to stop, grounded on
// original_source/server/src/bin/jequi.rs's bind-then-accept-loop shape and
// on caddy-ls/cmd/caddy-ls/main.go's flag-parsing/run-and-report-error CLI
// idiom.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fsnotify/fsnotify"

	_ "jequi/plugins/goadaptor"
	_ "jequi/plugins/mainplugin"
	_ "jequi/plugins/proxy"
	_ "jequi/plugins/staticfiles"

	"jequi/internal/dispatcher"
	"jequi/internal/jqlog"
)

func main() {
	var (
		configPath string
		pidPath    string
	)
	flag.StringVar(&configPath, "config", "conf.yaml", "path to the YAML configuration file")
	flag.StringVar(&pidPath, "pid-file", "jequi.pid", "path to write the running process's pid")
	flag.Parse()

	log := jqlog.New("jequi")

	if err := run(configPath, pidPath, log); err != nil {
		log.Fatalf("jequi: %v", err)
		os.Exit(1)
	}
}

func run(configPath, pidPath string, log *jqlog.Logger) error {
	d := dispatcher.New(configPath, log)
	if err := d.Reload(); err != nil {
		return fmt.Errorf("loading %s: %w", configPath, err)
	}

	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchConfigReload(ctx, d, configPath, log)
	handleSignals(ctx, cancel, d, log)

	log.Infof("serving, config=%s pid=%s", configPath, pidPath)
	return d.Serve(ctx)
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// handleSignals reloads the running configuration on SIGHUP and cancels ctx
// (unwinding Serve's accept loop) on SIGINT/SIGTERM. The reload trigger
// itself is left open by spec.md ("some out-of-band signal"); SIGHUP is the
// conventional Unix daemon choice and the one original_source's own main
// binary leaves room for via its blocking accept loop.
func handleSignals(ctx context.Context, cancel context.CancelFunc, d *dispatcher.Dispatcher, log *jqlog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				switch sig {
				case syscall.SIGHUP:
					if err := d.Reload(); err != nil {
						log.Errorf("jequi: reload: %v", err)
						continue
					}
					log.Infof("jequi: configuration reloaded")
				default:
					log.Infof("jequi: received %v, shutting down", sig)
					cancel()
					return
				}
			}
		}
	}()
}

// watchConfigReload additively reloads on a write to configPath, so editing
// conf.yaml doesn't strictly require sending SIGHUP by hand. Best-effort:
// a watcher that fails to start only costs the convenience, not correctness.
func watchConfigReload(ctx context.Context, d *dispatcher.Dispatcher, configPath string, log *jqlog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnf("jequi: config watcher unavailable: %v", err)
		return
	}
	if err := watcher.Add(configPath); err != nil {
		log.Warnf("jequi: watching %s: %v", configPath, err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := d.Reload(); err != nil {
					log.Errorf("jequi: reload after %s: %v", event, err)
					continue
				}
				log.Infof("jequi: configuration reloaded after %s", event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("jequi: config watcher: %v", err)
			}
		}
	}()
}
