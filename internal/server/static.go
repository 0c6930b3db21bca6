package server

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StaticHandler serves files from root. Requests for paths that do not exist fall back
// to the index document so client-side routes resolve. When inject is non-empty it is
// added as a script element at the end of every served HTML document's body.
func StaticHandler(root, index, inject string) http.Handler {
	if index == "" {
		index = "index.html"
	}
	return &staticHandler{root: root, index: index, inject: inject}
}

type staticHandler struct {
	root   string
	index  string
	inject string
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	name := filepath.Join(h.root, filepath.FromSlash(clean))
	fi, err := os.Stat(name)
	if err == nil && fi.IsDir() {
		name = filepath.Join(name, h.index)
		fi, err = os.Stat(name)
	}
	if err != nil || fi.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		name = filepath.Join(h.root, h.index)
		if fi, err = os.Stat(name); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	if strings.EqualFold(filepath.Ext(name), ".wasm") {
		w.Header().Set("Content-Type", "application/wasm")
	}
	if h.inject != "" && strings.EqualFold(filepath.Ext(name), ".html") {
		h.serveInjected(w, r, name, fi.ModTime())
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, name)
}

func (h *staticHandler) serveInjected(w http.ResponseWriter, r *http.Request, name string, mod time.Time) {
	data, err := os.ReadFile(name)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	out, err := InjectScript(data, h.inject)
	if err != nil {
		out = data
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, filepath.Base(name), mod, bytes.NewReader(out))
}

// InjectScript parses doc and appends a <script> element containing script to its body.
func InjectScript(doc []byte, script string) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	body := findElement(root, atom.Body)
	if body == nil {
		return nil, errors.New("document has no body")
	}
	el := &html.Node{Type: html.ElementNode, DataAtom: atom.Script, Data: "script"}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: script})
	body.AppendChild(el)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
