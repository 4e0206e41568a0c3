// Пакет markup компилирует разметку комментариев и статей:
// markdown в HTML плюс дополнительные проходы по дереву
// HTML (абсолютные ссылки, отложенные изображения,
// маркировка внешних ссылок).
package markup

import (
	"net/url"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"golang.org/x/net/html"
)

// Options управляет проходами компиляции.
type Options struct {
	Markdown    bool // вход - markdown, а не готовый HTML
	DeferImages bool // src -> data-src, загрузка картинок откладывается на клиент
	Externalize bool // внешние ссылки получают rel="nofollow" и target="_blank"
	Absolutize  bool // относительные ссылки становятся абсолютными
}

// Compiler компилирует разметку относительно
// адреса сайта (authority).
type Compiler struct {
	authority *url.URL
}

// New возвращает [*Compiler]. authority - базовый адрес
// сайта, например "https://blog.example.com".
func New(authority string) (*Compiler, error) {
	u, err := url.Parse(authority)
	if err != nil {
		return nil, err
	}
	return &Compiler{authority: u}, nil
}

// Compile выполняет компиляцию разметки согласно opt.
func (c *Compiler) Compile(src string, opt Options) (string, error) {
	out := src
	if opt.Markdown {
		p := parser.NewWithExtensions(parser.CommonExtensions)
		r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
		out = string(markdown.ToHTML([]byte(src), p, r))
	}
	if !opt.DeferImages && !opt.Externalize && !opt.Absolutize {
		return out, nil
	}
	return c.transform(out, opt)
}

func (c *Compiler) transform(src string, opt Options) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", err
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				c.link(n, opt)
			case "img":
				c.image(n, opt)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	// html.Parse оборачивает фрагмент в <html><body>,
	// рендерим только содержимое <body>
	body := findBody(doc)
	if body == nil {
		return "", nil
	}
	var b strings.Builder
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&b, n); err != nil {
			return "", err
		}
	}

	return b.String(), nil
}

func (c *Compiler) link(n *html.Node, opt Options) {
	href := attr(n, "href")
	if href == "" {
		return
	}
	u, err := url.Parse(href)
	if err != nil {
		return
	}
	if opt.Absolutize && !u.IsAbs() {
		setAttr(n, "href", c.authority.ResolveReference(u).String())
		return
	}
	if opt.Externalize && u.IsAbs() && u.Host != c.authority.Host {
		setAttr(n, "rel", "nofollow")
		setAttr(n, "target", "_blank")
	}
}

func (c *Compiler) image(n *html.Node, opt Options) {
	src := attr(n, "src")
	if src == "" {
		return
	}
	if opt.Absolutize {
		if u, err := url.Parse(src); err == nil && !u.IsAbs() {
			src = c.authority.ResolveReference(u).String()
			setAttr(n, "src", src)
		}
	}
	if opt.DeferImages {
		removeAttr(n, "src")
		setAttr(n, "data-src", src)
	}
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if body := findBody(child); body != nil {
			return body
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			return n.Attr[i].Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
