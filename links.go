package linkaudit

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExtractLinks parses htmlBody and returns the absolute http(s) targets of its anchors,
// resolved against baseURL, de-duplicated with the first occurrence kept.
func ExtractLinks(htmlBody, baseURL string) []string {
	links := []string{}

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return links
	}
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return links
	}

	seen := make(map[string]bool)
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && strings.TrimSpace(attr.Val) != "" {
					if linkURL, err := resolveURL(base, attr.Val); err == nil && isWebURL(linkURL) {
						if !seen[linkURL] {
							seen[linkURL] = true
							links = append(links, linkURL)
						}
					}
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return links
}

// resolveURL resolves href against base (relative, protocol-relative or absolute)
func resolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func isWebURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ExtractText returns the visible text of an HTML document with whitespace collapsed
func ExtractText(htmlBody string) string {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return ""
	}

	var buf strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return strings.TrimSpace(buf.String())
}

// assetExtensions marks links that can never be a policy page
var assetExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".css", ".js", ".woff", ".woff2", ".ttf",
	".mp4", ".webm", ".mp3", ".zip",
}

// isAssetURL reports whether the link points at a static asset rather than a page
func isAssetURL(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
