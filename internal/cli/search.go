package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ferdian/memoir/internal/config"
	"github.com/ferdian/memoir/pkg/search"
	"github.com/spf13/cobra"
)

var (
	searchProject string
	searchType    string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search past sessions",
	Long: `Search past coding sessions through the running daemon.
The query goes to the daemon's search API, so results reflect the same
hybrid ranking the assistant sees.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchProject, "project", "", "filter by project name")
	searchCmd.Flags().StringVar(&searchType, "type", "", "filter by observation type")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	baseURL := "http://" + net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port))
	result, err := querySearch(baseURL, cfg.Gateway.SharedSecret, search.Query{
		Text:    args[0],
		Project: searchProject,
		Type:    searchType,
		Limit:   searchLimit,
	})
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), result)
	return nil
}

// querySearch posts one query to the daemon's search endpoint.
func querySearch(baseURL, secret string, q search.Query) (*search.Result, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon is not reachable, is it running? (%v)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("search failed: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("search failed with status %d", resp.StatusCode)
	}

	var result search.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func printResult(w io.Writer, result *search.Result) {
	if len(result.Items) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	if result.Degraded {
		fmt.Fprintln(w, "(degraded: a search strategy was unavailable)")
	}
	for i, item := range result.Items {
		fmt.Fprintf(w, "[%d] #%d (%s) %s — %s\n", i+1, item.ObservationID, item.Type, item.Title, item.Age)
		if item.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", item.Snippet)
		}
		fmt.Fprintf(w, "    project: %s | score: %.2f\n", item.Project, item.Score)
	}
	fmt.Fprintf(w, "\n%d results in %.1fms\n", len(result.Items), result.TookMS)
}
