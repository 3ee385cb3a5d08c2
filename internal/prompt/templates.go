package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"onemcp/internal/llm"
)

// Context carries the variables a prompt template consumes.
type Context struct {
	Instructions string
	OpenAPI      string
	Docs         string
	Tags         []string
	Summary      string
}

// TemplateGraphExtraction is the prompt used for per-chunk graph extraction.
const TemplateGraphExtraction = "graph_extraction"

type templatePair struct {
	system string
	user   string
}

var templates = map[string]templatePair{
	TemplateGraphExtraction: {
		system: `You are an API knowledge-graph extractor. Read the OpenAPI excerpt and any
accompanying documentation, then emit a single JSON object and nothing else.
The object has exactly these keys:

  "entities":       [{"key","name","description","domain","attributes","associatedOperationKeys"}]
  "fields":         [{"key","name","description","fieldType","owningEntityKey"}]
  "operations":     [{"key","operationId","method","path","summary","description","tags","signature","category","primaryEntityKey","requestSchema","responseSchema"}]
  "examples":       [{"key","name","summary","description","requestBody","responseBody","responseStatus","owningOperationKey"}]
  "documentations": [{"key","title","content","docType","relatedKeys"}]
  "relationships":  [{"fromKey","toKey","edgeType","description","strength"}]

Keys use the form "<kind>|<slug>" with kind one of entity, field, op, example,
doc. Categories are coarse verbs such as Retrieve, Create, Update, Delete,
Compute. Emit valid JSON only: no prose, no code fences.`,
		user: `{{if .Summary}}Service summary:
{{.Summary}}

{{end}}{{if .Tags}}Declared tags: {{join .Tags ", "}}

{{end}}{{if .Instructions}}Handbook instructions:
{{.Instructions}}

{{end}}OpenAPI excerpt:
{{.OpenAPI}}
{{if .Docs}}
Related documentation:
{{.Docs}}
{{end}}`,
	},
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

// Render resolves a named template against the context and returns the chat
// messages to send.
func Render(name string, c Context) ([]llm.Message, error) {
	pair, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown prompt template %q", name)
	}
	t, err := template.New(name).Funcs(funcs).Parse(pair.user)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, c); err != nil {
		return nil, fmt.Errorf("render prompt template %s: %w", name, err)
	}
	return []llm.Message{
		llm.System(pair.system),
		llm.User(sb.String()),
	}, nil
}
