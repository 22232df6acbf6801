// Package scaffold writes the starter files of a new chapel site: the site
// file, an example environment and a favicon.
package scaffold

import (
	"bytes"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Templates contains all scaffold template files.
// Files use Go text/template syntax and have a .tmpl suffix.
//
//go:embed all:templates
var Templates embed.FS

const root = "templates"

// Data holds the template variables passed to every scaffold template.
type Data struct {
	SiteName      string
	Domain        string
	SessionSecret string
}

// Initial is the first letter of the site name, used by the favicon.
func (d Data) Initial() string {
	r, _ := utf8.DecodeRuneInString(d.SiteName)
	if r == utf8.RuneError {
		return "C"
	}
	return strings.ToUpper(string(r))
}

// NewData derives the site name and domain from the project directory
// ("grace-chapel" becomes "Grace Chapel" and grace-chapel.org) and
// generates a session secret.
func NewData(dir string) (Data, error) {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) {
		if wd, err := os.Getwd(); err == nil {
			base = filepath.Base(wd)
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return Data{}, fmt.Errorf("scaffold: session secret: %w", err)
	}
	slug := strings.ToLower(strings.Join(strings.FieldsFunc(base, isSeparator), "-"))
	if slug == "" {
		slug = "chapel"
	}
	return Data{
		SiteName:      toTitle(slug),
		Domain:        slug + ".org",
		SessionSecret: hex.EncodeToString(secret),
	}, nil
}

func isSeparator(r rune) bool {
	return r == '-' || r == '_' || r == ' ' || r == '.'
}

// toTitle turns "grace-chapel" into "Grace Chapel".
func toTitle(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "-", " "))
}

// outputPath maps a template path to its place in the project: the .tmpl
// suffix is dropped and dotenv becomes .env.example.
func outputPath(dir, rel string) string {
	out := filepath.Join(dir, strings.TrimSuffix(rel, ".tmpl"))
	if filepath.Base(out) == "dotenv" {
		out = filepath.Join(filepath.Dir(out), ".env.example")
	}
	return out
}

// ErrExists is returned when a file the scaffold would write already exists.
var ErrExists = errors.New("scaffold: file already exists")

// Generate renders every template into dir and returns the files written.
// Nothing is written if any target file already exists.
func Generate(dir string, data Data) ([]string, error) {
	type file struct {
		path string
		body []byte
	}
	var files []file

	err := fs.WalkDir(Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out := outputPath(dir, rel)
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, out)
		}

		src, err := Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		tmpl, err := template.New(filepath.Base(path)).Option("missingkey=error").Parse(string(src))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("execute template %s: %w", path, err)
		}
		files = append(files, file{path: out, body: buf.Bytes()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return written, err
		}
		mode := os.FileMode(0o644)
		if filepath.Base(f.path) == ".env.example" {
			mode = 0o600
		}
		if err := os.WriteFile(f.path, f.body, mode); err != nil {
			return written, fmt.Errorf("write %s: %w", f.path, err)
		}
		written = append(written, f.path)
	}
	return written, nil
}
