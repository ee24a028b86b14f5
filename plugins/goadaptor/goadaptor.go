// Package goadaptor implements jequi_go: the external-handler adaptor.
// It loads a build-specific shared object (go_library_path) via the
// standard library's plugin package (the idiomatic Go analogue of the
// Rust original's libloading::Library) and calls its exported
// HandleRequest symbol per request. Grounded on
// original_source/plugins/jequi_go/src/lib.rs: same "copy the .so to a
// fresh temp path before loading" trick (so a config reload that replaces
// the file on disk doesn't hand the runtime a stale, already-mapped
// inode), same single exported entry point.
package goadaptor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"plugin"
	"time"

	"github.com/mitchellh/mapstructure"

	"jequi/internal/jqhttp"
	jqplugin "jequi/internal/plugin"
)

// HandlerSymbol is the exported symbol name an external .so must provide:
// func(*jqhttp.Request, *jqhttp.Response).
const HandlerSymbol = "HandleRequest"

// Config is jequi_go's decoded scope configuration plus the loaded plugin
// handle.
type Config struct {
	GoLibraryPath string `mapstructure:"go_library_path"`

	handle func(req *jqhttp.Request, resp *jqhttp.Response)
}

func init() {
	jqplugin.Register(jqplugin.Loader{
		Ordinal:  jqplugin.OrdinalGoAdaptor,
		Name:     "jequi_go",
		Requires: jqplugin.NoRequirement,
		Load:     load,
	})
}

func load(scope map[string]interface{}, soFar jqplugin.ConfigList) (*jqplugin.Plugin, error) {
	cfg := &Config{}
	if err := mapstructure.Decode(scope, cfg); err != nil {
		return nil, err
	}
	if cfg.GoLibraryPath == "" {
		return nil, nil
	}
	if err := cfg.loadLibrary(); err != nil {
		return nil, fmt.Errorf("jequi: loading go plugin %q: %w", cfg.GoLibraryPath, err)
	}

	return &jqplugin.Plugin{Config: cfg, Handler: cfg.handleRequest}, nil
}

// loadLibrary copies GoLibraryPath to a fresh temp path and loads it
// through the stdlib plugin package, so a reload that overwrites the
// original file on disk never collides with an already-mmapped .so.
func (c *Config) loadLibrary() error {
	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("jequi_go.%d.so", time.Now().UnixNano()))
	if err := copyFile(c.GoLibraryPath, tmpPath); err != nil {
		return err
	}

	p, err := plugin.Open(tmpPath)
	if err != nil {
		return err
	}
	sym, err := p.Lookup(HandlerSymbol)
	if err != nil {
		return err
	}
	fn, ok := sym.(func(*jqhttp.Request, *jqhttp.Response))
	if !ok {
		return fmt.Errorf("jequi: %s has unexpected signature in %s", HandlerSymbol, c.GoLibraryPath)
	}
	c.handle = fn
	return nil
}

func (c *Config) handleRequest(ctx context.Context, req *jqhttp.Request, resp *jqhttp.Response) (jqplugin.Disposition, error) {
	c.handle(req, resp)
	return jqplugin.Result(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
