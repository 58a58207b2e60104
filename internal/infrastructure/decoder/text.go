package decoder

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// toUTF8 converts raw to UTF-8 using the BOM, the mime charset parameter or
// content sniffing, in that order.
func toUTF8(raw []byte, mimeType string) ([]byte, error) {
	enc, name, _ := charset.DetermineEncoding(raw, mimeType)
	if name == "utf-8" {
		return bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s text: %w", name, err)
	}
	return out, nil
}

func decodeText(_ context.Context, raw []byte, upload domain.Upload) (domain.Decoded, error) {
	if bytes.IndexByte(raw, 0) >= 0 {
		return domain.Decoded{}, fmt.Errorf("binary content in %s", upload.Filename)
	}
	text, err := toUTF8(raw, upload.MimeType)
	if err != nil {
		return domain.Decoded{}, err
	}
	if !utf8.Valid(text) {
		return domain.Decoded{}, fmt.Errorf("invalid text encoding in %s", upload.Filename)
	}
	return domain.Decoded{Text: strings.TrimSpace(string(text))}, nil
}

func decodeHTML(_ context.Context, raw []byte, upload domain.Upload) (domain.Decoded, error) {
	utf8Body, err := toUTF8(raw, upload.MimeType)
	if err != nil {
		return domain.Decoded{}, err
	}
	doc, err := html.Parse(bytes.NewReader(utf8Body))
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				b.WriteString(text)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return domain.Decoded{Text: strings.TrimSpace(b.String())}, nil
}
