package ui

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/labstack/echo/v4"
)

var viewPatterns = []string{"views/*.html", "views/auth/*.html", "views/blog/*.html"}

const emailPattern = "email/*.html"

// Template renders views for echo and email bodies for the mailer. Views are
// read from the embedded files unless a directory is given.
type Template struct {
	dir  string
	fsys fs.FS

	mu     sync.RWMutex
	views  *template.Template
	emails *template.Template

	watcher *fsnotify.Watcher
}

func NewTemplate(dir string) (*Template, error) {
	t := &Template{dir: dir, fsys: Files}
	if dir != "" {
		t.fsys = os.DirFS(dir)
	}
	if err := t.parse(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Template) parse() error {
	views, err := template.ParseFS(t.fsys, viewPatterns...)
	if err != nil {
		return fmt.Errorf("parsing views: %w", err)
	}
	emails, err := template.ParseFS(t.fsys, emailPattern)
	if err != nil {
		return fmt.Errorf("parsing emails: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.views = views
	t.emails = emails
	return nil
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t.mu.RLock()
	views := t.views
	t.mu.RUnlock()

	// Render into a buffer so a failing template never sends a partial page.
	buf := &bytes.Buffer{}
	if err := views.ExecuteTemplate(buf, name, data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func (t *Template) RenderEmail(name string, data interface{}) (string, error) {
	t.mu.RLock()
	emails := t.emails
	t.mu.RUnlock()

	buf := &bytes.Buffer{}
	if err := emails.ExecuteTemplate(buf, name, data); err != nil {
		return "", fmt.Errorf("rendering email %s: %w", name, err)
	}
	return buf.String(), nil
}

// Watch re-parses the templates whenever a file under the template directory
// changes. It does nothing for embedded templates.
func (t *Template) Watch(logger echo.Logger) error {
	if t.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	t.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					logger.Infof("modified file: %s", event.Name)
					if err := t.parse(); err != nil {
						logger.Errorf("reloading templates: %+v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Errorf("watcher: %+v", err)
			}
		}
	}()

	for _, sub := range []string{"views", "views/auth", "views/blog", "email"} {
		if err := watcher.Add(filepath.Join(t.dir, sub)); err != nil {
			return fmt.Errorf("watching %s: %w", sub, err)
		}
	}
	return nil
}

func (t *Template) Close() {
	if t.watcher != nil {
		t.watcher.Close()
	}
}
