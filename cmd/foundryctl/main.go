// Package main implements the foundryctl CLI for manual operations
// against the foundryd HTTP server.
package main

import (
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
	// serverURL is the base URL for the foundryd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foundryctl",
	Short: "CLI for foundryd notebook generation",
	Long: `foundryctl is a command-line interface for the foundryd HTTP server.
It submits generation requests, manages the documentation index and checks server health.`,
	Version: version,
}

var (
	generateHints  []string
	generateOutput string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8750", "foundryd server URL")

	generateCmd.Flags().StringArrayVar(&generateHints, "hint", nil, "request hint as key=value (for example architecture=router)")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write the run manifest JSON to a file instead of stdout")

	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexStatusCmd)

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(healthCmd)
}

// generateCmd submits a generation request from a file, an argument or stdin.
var generateCmd = &cobra.Command{
	Use:   "generate [text|file|-]",
	Short: "Generate a notebook from a description",
	Long: `Generate a LangGraph notebook from a natural-language description.

The argument is the description text, a file containing it, or "-" for stdin.

Examples:
  # Generate from an inline description
  foundryctl generate "route billing questions to a billing agent"

  # Generate from a file
  foundryctl generate request.txt

  # Force an architecture
  foundryctl generate --hint architecture=subagents request.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

// indexCmd groups the index subcommands.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the documentation index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the retrieval index from the corpus",
	RunE:  runIndexRebuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index readiness and chunk count",
	RunE:  runIndexStatus,
}

// healthCmd checks server health.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check foundryd server health",
	RunE:  runHealth,
}

// GenerateRequest matches internal/httpapi GenerateRequest.
type GenerateRequest struct {
	Text  string            `json:"text"`
	Hints map[string]string `json:"hints,omitempty"`
}

// GenerateResponse matches internal/httpapi GenerateResponse. The
// manifest is kept raw so the CLI renders exactly what the server sent.
type GenerateResponse struct {
	RunID    string          `json:"run_id"`
	Complete bool            `json:"complete"`
	Error    string          `json:"error,omitempty"`
	Manifest json.RawMessage `json:"manifest"`
}

// IndexStatus matches internal/generator IndexStatus.
type IndexStatus struct {
	Ready  bool `json:"ready"`
	Chunks int  `json:"chunks"`
}

// HealthResponse matches internal/httpapi HealthResponse.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// runGenerate handles the generate command.
func runGenerate(cmd *cobra.Command, args []string) error {
	text, err := readGenerateInput(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no description to generate from")
	}

	hints, err := parseHints(generateHints)
	if err != nil {
		return err
	}

	reqJSON, err := json.Marshal(GenerateRequest{Text: text, Hints: hints})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/generate", serverURL)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Generation runs the full pipeline, allow for slow embeds.
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generation failed (status %d, run %s): %s", resp.StatusCode, genResp.RunID, genResp.Error)
	}

	manifest, err := json.MarshalIndent(genResp.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format manifest: %w", err)
	}

	if generateOutput != "" {
		if err := os.WriteFile(generateOutput, append(manifest, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
		fmt.Fprintf(os.Stderr, "[foundryctl] Run %s complete, manifest written to %s\n", genResp.RunID, generateOutput)
		return nil
	}

	fmt.Println(string(manifest))
	fmt.Fprintf(os.Stderr, "[foundryctl] Run %s complete\n", genResp.RunID)
	return nil
}

// readGenerateInput resolves the description from a file, the argument
// text, or stdin.
func readGenerateInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil
	}

	if info, err := os.Stat(args[0]); err == nil && !info.IsDir() {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		return string(content), nil
	}

	return args[0], nil
}

// parseHints converts key=value flags into the request hint map.
func parseHints(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	hints := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, found := strings.Cut(h, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid hint %q, expected key=value", h)
		}
		hints[key] = value
	}
	return hints, nil
}

// runIndexRebuild handles index rebuild.
func runIndexRebuild(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/index/rebuild", serverURL)

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var status IndexStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Index rebuilt: %d chunks\n", status.Chunks)
	return nil
}

// runIndexStatus handles index status.
func runIndexStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/index/status", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var status IndexStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Ready:  %t\n", status.Ready)
	fmt.Printf("Chunks: %d\n", status.Chunks)
	return nil
}

// runHealth handles the health command.
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	if healthResp.Version != "" {
		fmt.Printf("Server Version: %s\n", healthResp.Version)
	}
	fmt.Printf("Server URL: %s\n", serverURL)
	return nil
}
