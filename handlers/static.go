package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/andesco/edgegate/pkg/config"
	"github.com/andesco/edgegate/pkg/logger"
)

const staticErrorBody = "<h1>500 Server Error!</h1>"

// Static streams files from a local directory. The first path segment is the
// route prefix and is dropped, so /res/js/app.js serves <root>/js/app.js.
type Static struct {
	root  string
	index string
	log   *logger.Logger
}

func NewStatic(cfg config.StaticConfig, log *logger.Logger) (*Static, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("error resolving static root '%s': %w", cfg.Root, err)
	}
	if fi, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("static root '%s': %w", root, err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("static root '%s' is not a directory", root)
	}

	index := cfg.Index
	if index == "" {
		index = "index.html"
	}
	return &Static{root: root, index: index, log: log.WithComponent("static")}, nil
}

func (s *Static) Exec(route string, c *fiber.Ctx) error {
	name := s.resolve(c.Path())

	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sendEmpty(c, fiber.StatusNotFound)
		}
		return s.serverError(c, route, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return s.serverError(c, route, err)
	}
	if fi.IsDir() {
		f.Close()
		return sendEmpty(c, fiber.StatusNotFound)
	}

	c.Status(fiber.StatusOK)
	if ext := filepath.Ext(name); ext != "" {
		c.Type(ext)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	}
	// fasthttp closes f once the body has been written
	return c.SendStream(f, streamSize(fi.Size()))
}

// streamSize is the body size handed to fasthttp. -1 streams without a
// Content-Length when the size does not fit in an int.
func streamSize(n int64) int {
	if int64(int(n)) != n {
		return -1
	}
	return int(n)
}

// resolve maps a request path to a file under root. Cleaning against "/"
// keeps ".." from climbing above root.
func (s *Static) resolve(reqPath string) string {
	_, rel, _ := strings.Cut(strings.TrimPrefix(reqPath, "/"), "/")
	rel = path.Clean("/" + rel)
	if rel == "/" {
		rel = "/" + s.index
	}
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *Static) serverError(c *fiber.Ctx, route string, err error) error {
	s.log.Errorw("Could not read static file", "route", route, "error", err)
	c.Status(fiber.StatusInternalServerError)
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(staticErrorBody)
}
