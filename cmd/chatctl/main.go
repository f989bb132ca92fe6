// chatctl is a terminal client for the conversation service: one-shot
// questions via `chatctl ask`, or an interactive REPL via `chatctl repl`.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	userID    string
	sessionID string
	token     string
)

type chatRequest struct {
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	SessionID  string `json:"session_id"`
	Response   string `json:"response"`
	NeedsHuman bool   `json:"needs_human_intervention"`
	Error      string `json:"error,omitempty"`
}

func main() {
	root := &cobra.Command{
		Use:   "chatctl",
		Short: "Client for the conversation service",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("CHAT_SERVER", "http://localhost:8080"), "service base URL")
	root.PersistentFlags().StringVar(&userID, "user", envOr("CHAT_USER", "cli"), "user id")
	root.PersistentFlags().StringVar(&sessionID, "session", "", "session id to continue")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("CHAT_TOKEN"), "bearer token")

	ask := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := sendTurn(strings.Join(args, " "))
			if err != nil {
				return err
			}
			printTurn(resp)
			return nil
		},
	}

	repl := &cobra.Command{
		Use:   "repl",
		Short: "Interactive conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL()
		},
	}

	root.AddCommand(ask, repl)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runREPL() error {
	fmt.Println("连接到", serverURL, "（输入 exit 退出）")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		resp, err := sendTurn(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		// Continue the same conversation on the next message.
		sessionID = resp.SessionID
		printTurn(resp)
	}
}

func sendTurn(message string) (*chatResponse, error) {
	body, err := json.Marshal(chatRequest{UserID: userID, Message: message, SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(serverURL, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func printTurn(resp *chatResponse) {
	fmt.Println(resp.Response)
	if resp.NeedsHuman {
		fmt.Println("[已转人工处理]")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
