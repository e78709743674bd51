package notes

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
</head>
<body>
    <article>
        <h1>{{.Title}}</h1>
        {{if .Tags}}<ul class="tags">{{range .Tags}}<li>{{.}}</li>{{end}}</ul>{{end}}
        {{.Body}}
    </article>
</body>
</html>`

var (
	page   = template.Must(template.New("note").Parse(pageTemplate))
	policy = bluemonday.UGCPolicy()
)

type pageData struct {
	Title string
	Tags  []string
	Body  template.HTML
}

// RenderMarkdown converts markdown content to sanitized HTML.
func RenderMarkdown(content string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse([]byte(content))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	return policy.SanitizeBytes(markdown.Render(doc, renderer))
}

// RenderHTML renders a note as a standalone HTML document.
// Title and tags are escaped by the template; the body is sanitized markdown.
func RenderHTML(n Note) ([]byte, error) {
	var buf bytes.Buffer
	err := page.Execute(&buf, pageData{
		Title: strings.TrimSpace(n.Title),
		Tags:  n.Tags,
		Body:  template.HTML(RenderMarkdown(n.Content)),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
