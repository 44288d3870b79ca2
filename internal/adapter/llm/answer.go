package llm

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"ragengine/internal/port"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

const systemPrompt = "You are a precise assistant. Ground every statement in the supplied context."

var (
	_ port.AnswerGenerator = (*PromptedAnswerer)(nil)
	_ port.AnswerGenerator = ExtractiveAnswerer{}
)

// PromptedAnswerer renders the query and passages into a prompt and asks
// an LLM for the answer.
type PromptedAnswerer struct {
	llm  port.LLM
	tmpl *template.Template
}

type promptData struct {
	Query    string
	Passages []string
}

func NewPromptedAnswerer(model port.LLM) (*PromptedAnswerer, error) {
	content, err := promptTemplates.ReadFile("templates/answer_prompt.txt")
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	tmpl, err := template.New("answer").Funcs(templateFuncs()).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &PromptedAnswerer{llm: model, tmpl: tmpl}, nil
}

func (a *PromptedAnswerer) Generate(ctx context.Context, query string, chunkTexts []string) (string, error) {
	prompt, err := a.render(query, chunkTexts)
	if err != nil {
		return "", err
	}
	answer, err := a.llm.GenerateWithSystem(ctx, systemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (a *PromptedAnswerer) render(query string, passages []string) (string, error) {
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, promptData{Query: query, Passages: passages}); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatPassages": func(passages []string) string {
			var sb strings.Builder
			for i, p := range passages {
				sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, p))
			}
			return sb.String()
		},
	}
}

// ExtractiveAnswerer answers with the supporting passages themselves.
type ExtractiveAnswerer struct{}

func (ExtractiveAnswerer) Generate(ctx context.Context, query string, chunkTexts []string) (string, error) {
	return strings.Join(chunkTexts, " "), nil
}
