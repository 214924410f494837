// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command autofin-cli is a terminal client for the autofinance orchestrator.
//
// # Usage
//
//	# Interactive financing conversation
//	autofin-cli chat
//
//	# Check a submitted application
//	autofin-cli status <request-id>
//
// The server address comes from AUTOFIN_SERVER_URL (default
// http://localhost:12310).
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var httpClient = &http.Client{Timeout: 2 * time.Minute}

var rootCmd = &cobra.Command{
	Use:   "autofin-cli",
	Short: "Talk to the autofinance orchestrator",
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive financing conversation",
	RunE:  runChat,
}

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "Check the review status of a submitted application",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	serverURL = strings.TrimSuffix(os.Getenv("AUTOFIN_SERVER_URL"), "/")
	if serverURL == "" {
		serverURL = "http://localhost:12310"
	}
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statusCmd)
}

type turnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Phase     string `json:"phase"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runChat(cmd *cobra.Command, args []string) error {
	fmt.Println("Connected to", serverURL)
	fmt.Println("Type your message, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	sessionID := ""
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		response, err := postTurn(turnRequest{SessionID: sessionID, Message: line})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		sessionID = response.SessionID
		fmt.Println(response.Reply)
		if response.RequestID != "" {
			fmt.Printf("[request id: %s]\n", response.RequestID)
		}
	}
	return scanner.Err()
}

func postTurn(request turnRequest) (*turnResponse, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Post(serverURL+"/v1/turn", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response turnResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("unexpected server response: %s", string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, response.Error)
	}
	return &response, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	requestID := args[0]
	resp, err := httpClient.Get(fmt.Sprintf("%s/v1/applications/%s/status", serverURL, requestID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("no application found for request id %s", requestID)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var status struct {
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("unexpected server response: %s", string(body))
	}

	fmt.Printf("Request %s: %s\n", status.RequestID, strings.ReplaceAll(status.Status, "_", " "))
	if status.CreatedAt > 0 {
		fmt.Printf("Submitted: %s\n", time.UnixMilli(status.CreatedAt).Format(time.RFC1123))
	}
	return nil
}
