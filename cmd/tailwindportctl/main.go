// Command tailwindportctl is a thin CLI client for a running tailwindportd,
// submitting a single compile request and printing the resulting CSS or
// stats. Grounded on the teacher's flag-driven command style (the dropped
// sticky-overseer RunCLI dispatcher's one-binary-many-verbs shape, without
// its dependency — see DESIGN.md).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/defdo-dev/tailwindport/internal/option"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "tailwindportd base URL")
	input := flag.String("input", "", "absolute path to the source CSS file")
	output := flag.String("output", "", "absolute path to the produced CSS file")
	content := flag.String("content", "", "absolute path to the markup file to scan")
	minify := flag.Bool("minify", false, "minify output")
	contentFile := flag.String("content-file", "", "read request markup body from this file instead of stdin")
	cmd := flag.String("cmd", "compile", "compile | stats")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}

	switch *cmd {
	case "stats":
		if err := printStats(client, *addr); err != nil {
			fmt.Fprintln(os.Stderr, "tailwindportctl:", err)
			os.Exit(1)
		}
	case "compile":
		if err := compile(client, *addr, *input, *output, *content, *minify, *contentFile); err != nil {
			fmt.Fprintln(os.Stderr, "tailwindportctl:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "tailwindportctl: unknown -cmd %q\n", *cmd)
		os.Exit(2)
	}
}

func compile(client *http.Client, addr, input, output, content string, minify bool, contentFile string) error {
	var body []byte
	var err error
	if contentFile != "" {
		body, err = os.ReadFile(contentFile)
	} else {
		body, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read markup body: %w", err)
	}

	payload := map[string]any{
		"options": option.Options{
			option.KeyInput:   input,
			option.KeyOutput:  output,
			option.KeyContent: content,
			option.KeyMinify:  minify,
		},
		"content": string(body),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := client.Post(addr+"/compile", "application/json", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("post /compile: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("compile failed (%d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		CSS string `json:"css"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Print(result.CSS)
	return nil
}

func printStats(client *http.Client, addr string) error {
	resp, err := client.Get(addr + "/stats")
	if err != nil {
		return fmt.Errorf("get /stats: %w", err)
	}
	defer resp.Body.Close()

	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
