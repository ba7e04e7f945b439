// Package markdown converts between cards and Markdown files with YAML
// frontmatter, and renders card bodies to HTML.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/mdmemo/internal/models"
)

const delim = "---"

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	fenceRe    = regexp.MustCompile("(?ms)^```.*?^```[ \t]*$")
)

// Document is a parsed Markdown card file.
type Document struct {
	ID        string
	Title     string
	Tags      []string
	Status    models.Status
	Created   *time.Time
	Related   []string // card ids from frontmatter
	Links     []string // [[wikilink]] targets, by title
	Body      string
	HasHeader bool
}

// stringList accepts either a YAML sequence or a comma-separated scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var out []string
		for _, part := range strings.Split(value.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("markdown: expected list or string, got yaml kind %d", value.Kind)
	}
}

type frontmatter struct {
	ID      string        `yaml:"id,omitempty"`
	Title   string        `yaml:"title,omitempty"`
	Tags    stringList    `yaml:"tags,omitempty"`
	Status  models.Status `yaml:"status,omitempty"`
	Created *time.Time    `yaml:"created,omitempty"`
	Related stringList    `yaml:"related,omitempty"`
}

// Parse reads frontmatter, wikilinks and inline #tags from raw Markdown.
// Broken frontmatter is not an error: the whole input is treated as body.
func Parse(data []byte) (*Document, error) {
	fm, body, ok := splitFrontmatter(data)
	doc := &Document{Body: body, HasHeader: ok}
	if ok {
		doc.ID = strings.TrimSpace(fm.ID)
		doc.Title = strings.TrimSpace(fm.Title)
		doc.Created = fm.Created
		doc.Related = models.NormalizeTags(fm.Related)
		if fm.Status.IsValid() {
			doc.Status = fm.Status
		}
	}
	if doc.Title == "" {
		doc.Title = firstHeading(body)
	}
	doc.Tags = models.NormalizeTags(append([]string(fm.Tags), inlineTags(body)...))
	doc.Links = wikilinks(body)
	return doc, nil
}

func splitFrontmatter(data []byte) (frontmatter, string, bool) {
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data), false
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data), false
	}
	header := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return frontmatter{}, string(data), false
	}
	return fm, body, true
}

func wikilinks(body string) []string {
	var out []string
	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target, _, _ := strings.Cut(m[1], "|")
		out = append(out, target)
	}
	return models.NormalizeTags(out)
}

// inlineTags ignores fenced code so that "#include" and friends are not tags.
func inlineTags(body string) []string {
	prose := fenceRe.ReplaceAllString(body, "")
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(prose, -1) {
		out = append(out, m[1])
	}
	return out
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if t := strings.TrimSpace(line); strings.HasPrefix(t, "# ") {
			return strings.TrimSpace(t[2:])
		}
	}
	return ""
}

// Export writes card as a Markdown file. Parse recovers its id, title,
// tags, status and related ids.
func Export(card models.Card) ([]byte, error) {
	created := card.CreatedAt
	fm := frontmatter{
		ID:      card.ID,
		Title:   card.Title,
		Tags:    card.Tags,
		Status:  card.Status,
		Related: card.RelatedCardIDs,
	}
	if !created.IsZero() {
		fm.Created = &created
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("markdown: encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(header)
	buf.WriteString(delim + "\n\n")
	buf.WriteString(card.Content)
	if card.Content != "" && !strings.HasSuffix(card.Content, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
