// Package staticfiles implements jequi_serve_static: path-traversal-safe
// static file serving under static_files_path, with a content-type
// inference table and an optional 404 body, grounded on
// original_source/plugins/jequi_serve_static/src/lib.rs's handle_request
// (segment-walk traversal clamping, index.html default, permission/
// not-found status mapping) and content_type.rs's extension table.
package staticfiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"jequi/internal/jqhttp"
	"jequi/internal/plugin"
)

// Config is jequi_serve_static's decoded scope configuration.
type Config struct {
	StaticFilesPath      string `mapstructure:"static_files_path"`
	NotFoundPath         string `mapstructure:"not_found_file_path"`
	InferContentTypeFlag *bool  `mapstructure:"infer_content_type"`
}

// InferContentType reports spec.md §6's infer_content_type setting,
// defaulting to true when the scope doesn't set it.
func (c *Config) InferContentType() bool {
	return c.InferContentTypeFlag == nil || *c.InferContentTypeFlag
}

func init() {
	plugin.Register(plugin.Loader{
		Ordinal:  plugin.OrdinalStaticFiles,
		Name:     "jequi_serve_static",
		Requires: plugin.NoRequirement,
		Load:     load,
	})
}

// load activates only when static_files_path is set in this scope, mirroring
// the Rust Config::load returning None for the all-default config.
func load(scope map[string]interface{}, soFar plugin.ConfigList) (*plugin.Plugin, error) {
	cfg := &Config{}
	if err := mapstructure.Decode(scope, cfg); err != nil {
		return nil, err
	}
	if cfg.StaticFilesPath == "" {
		return nil, nil
	}
	return &plugin.Plugin{Config: cfg, Handler: cfg.handle}, nil
}

// handle implements spec.md §8 scenario 6's behavior: clamp the request
// path onto static_files_path (each ".." pops one level, but never above
// the root, so the root can never be escaped),
// default to index.html at the root, and map filesystem errors onto
// 403/404.
func (c *Config) handle(ctx context.Context, req *jqhttp.Request, resp *jqhttp.Response) (plugin.Disposition, error) {
	if _, err := os.Stat(c.StaticFilesPath); err != nil {
		resp.Status = 404
		return plugin.Result(), nil
	}

	final := clampPath(req.URI.Path())
	if final == "" {
		final = "index.html"
	}

	full := filepath.Join(c.StaticFilesPath, final)

	body, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			resp.Status = 403
			return plugin.Result(), nil
		}
		resp.Status = 404
		c.writeNotFoundBody(resp)
		return plugin.Result(), nil
	}

	if c.InferContentType() {
		if ct := contentTypeByPath(full); ct != "" {
			resp.SetHeader("content-type", ct)
		}
	}
	resp.WriteBody(body)
	resp.Status = 200
	return plugin.Result(), nil
}

func (c *Config) writeNotFoundBody(resp *jqhttp.Response) {
	if c.NotFoundPath == "" {
		return
	}
	if body, err := os.ReadFile(c.NotFoundPath); err == nil {
		resp.WriteBody(body)
	}
}

// clampPath walks uri's segments with a stack, popping one level for each
// ".." (a no-op once the stack is already empty, so escape attempts are
// clamped to the root rather than resolved past it) and skipping "." and
// empty segments, per spec.md §8 scenario 6: "/file/./../../file resolves
// to test/file": "file" pushed, "." skipped, the first ".." pops "file"
// back off, the second ".." is a no-op on the empty stack, "file" is
// pushed again.
func clampPath(uri string) string {
	uri = strings.TrimPrefix(uri, "/")
	var stack []string
	for _, seg := range strings.Split(uri, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return strings.Join(stack, "/")
}

// contentTypeByExtension mirrors content_type.rs's get_content_type_by_path
// table exactly.
var contentTypeByExtension = map[string]string{
	".js":    "text/javascript",
	".css":   "text/css",
	".csv":   "text/csv",
	".gif":   "image/gif",
	".html":  "text/html",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".json":  "application/json",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".mpeg":  "video/mpeg",
	".txt":   "text/plain",
	".ttf":   "font/ttf",
	".weba":  "audio/webm",
	".webm":  "video/webm",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".xhtml": "application/xhtml+xml",
	".xml":   "application/xml",
	".zip":   "application/zip",
}

func contentTypeByPath(path string) string {
	return contentTypeByExtension[strings.ToLower(filepath.Ext(path))]
}
