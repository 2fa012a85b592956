package main

import (
	"fmt"
	"strings"

	"github.com/nidhogg/statcrew/internal/provider"
	"github.com/spf13/cobra"
)

// chatTemplates are the built-in prompt templates, by name.
var chatTemplates = map[string]string{
	"joke":  "Tell me a joke about {topic}",
	"teach": "Teach me about {topic}",
}

var (
	chatTemplate string
	chatModel    string
	chatStream   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat TOPIC",
	Short: "Send a templated prompt to one model",
	Long: `Fill a prompt template with a topic and send it to a single model.

--template takes a built-in name (joke, teach) or any text containing
{topic}.

Examples:
  statcrew chat basketball
  statcrew chat --template teach --stream "the pick and roll"
  statcrew chat --template "Write a haiku about {topic}" baseball`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatTemplate, "template", "t", "joke", "Template name or text with a {topic} placeholder")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model to use (defaults to the researcher model)")
	chatCmd.Flags().BoolVarP(&chatStream, "stream", "s", false, "Print tokens as they arrive")
	rootCmd.AddCommand(chatCmd)
}

// renderChatPrompt resolves a template name or literal and fills {topic}.
func renderChatPrompt(template, topic string) (string, error) {
	if t, ok := chatTemplates[template]; ok {
		template = t
	}
	if !strings.Contains(template, "{topic}") {
		return "", fmt.Errorf("template %q has no {topic} placeholder", template)
	}
	return strings.ReplaceAll(template, "{topic}", topic), nil
}

func runChat(cmd *cobra.Command, args []string) error {
	prompt, err := renderChatPrompt(chatTemplate, strings.Join(args, " "))
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	model := chatModel
	if model == "" {
		model = a.cfg.Crew.Models["researcher"]
	}
	req := &provider.ChatRequest{
		Model:    model,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: prompt}},
	}
	ctx := cmd.Context()

	if !chatStream {
		resp, err := a.llm.Chat(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(resp.Content)
		return nil
	}

	chunks, err := a.llm.ChatStream(ctx, req)
	if err != nil {
		return err
	}
	for c := range chunks {
		fmt.Print(c.Content)
		if c.Done {
			break
		}
	}
	fmt.Println()
	return ctx.Err()
}
