package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"triagekit/internal/app"
	"triagekit/internal/config"
	"triagekit/internal/llm"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		return
	}
	cmd := os.Args[1]
	cfg, err := config.Load(os.Getenv("TK_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	appInstance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()

	switch cmd {
	case "classify":
		runClassify(ctx, appInstance, strings.Join(os.Args[2:], " "))
	case "feedback":
		runFeedback(ctx, appInstance, os.Args[2])
	default:
		usage()
	}
}

func runClassify(ctx context.Context, a *app.App, text string) {
	category, err := a.Service.Classify(ctx, text, "")
	if err != nil {
		log.Fatalf("classify error: %v", err)
	}
	fmt.Println(category)
}

// runFeedback reads a conversation file: one turn per line, formatted
// "role: content".
func runFeedback(ctx context.Context, a *app.App, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read conversation: %v", err)
	}
	var conv []llm.Message
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		role, content, found := strings.Cut(line, ":")
		if !found {
			log.Fatalf("bad conversation line %q, want \"role: content\"", line)
		}
		conv = append(conv, llm.Message{Role: strings.TrimSpace(role), Content: strings.TrimSpace(content)})
	}

	fb, err := a.Service.GenerateFeedback(ctx, conv, "")
	if err != nil {
		log.Fatalf("feedback error: %v", err)
	}
	out, err := json.MarshalIndent(map[string]any{"feedback": fb.Items, "scores": fb.Scores}, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(out))
}

func usage() {
	fmt.Println("usage: triagekit classify <text>")
	fmt.Println("       triagekit feedback <conversation-file>")
	fmt.Println("  TK_CONFIG points at the yaml config file")
}
