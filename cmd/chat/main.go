package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "statcrew server URL")
	user := flag.String("user", "cli-user", "User name for chat")
	timeout := flag.Duration("timeout", 15*time.Minute, "How long to wait for a crew answer")
	flag.Parse()

	fmt.Println("statcrew console")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave. Prefix a question with @<graph> to pick a crew.")
	fmt.Println("Commands: /help, /graphs, /leaders, /search, /runs, /status")
	fmt.Println("---")

	fetchGraphs(*server)

	client := &http.Client{Timeout: *timeout}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		sendMessage(client, *server, *user, input)
	}
}

func fetchGraphs(server string) {
	resp, err := http.Get(server + "/api/graphs")
	if err != nil {
		printError("Failed to fetch graphs: %v", err)
		return
	}
	defer resp.Body.Close()

	var graphs []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&graphs); err != nil {
		printError("Failed to parse graphs: %v", err)
		return
	}
	fmt.Println("Available crews:")
	for _, g := range graphs {
		fmt.Printf("  @%s  %s\n", g.Name, g.Description)
	}
}

func sendMessage(client *http.Client, server, user, content string) {
	body, _ := json.Marshal(map[string]string{
		"user_id":   user,
		"user_name": user,
		"content":   content,
	})

	start := time.Now()
	resp, err := client.Post(
		server+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return
	}

	var msg struct {
		Persona string `json:"persona"`
		Content string `json:"content"`
		RunID   string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}

	if msg.Persona != "" {
		fmt.Printf("\033[36m[%s]\033[0m %s\n", msg.Persona, msg.Content)
	} else {
		fmt.Println(msg.Content)
	}
	if msg.RunID != "" {
		fmt.Printf("\033[90m(run %s, %s)\033[0m\n", msg.RunID, time.Since(start).Round(time.Second))
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
