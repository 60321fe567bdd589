package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilnproject/kiln/internal/cli/health"
	"github.com/kilnproject/kiln/internal/cli/output"
)

var (
	statusOutput string
	statusAddr   string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the kiln server.

This command checks the server health by calling the health endpoints
and displays liveness, the live template snapshot generation, and the
loaded template names.

Examples:
  # Check status (uses default settings)
  kiln status

  # Check status of a server on another address
  kiln status --addr localhost:9090

  # Output as JSON
  kiln status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "localhost:8080", "Server address (host:port)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running    bool     `json:"running" yaml:"running"`
	Healthy    bool     `json:"healthy" yaml:"healthy"`
	Message    string   `json:"message" yaml:"message"`
	Version    string   `json:"version,omitempty" yaml:"version,omitempty"`
	Generation uint64   `json:"generation,omitempty" yaml:"generation,omitempty"`
	Uptime     string   `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Templates  []string `json:"templates,omitempty" yaml:"templates,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 2 * time.Second}
	status := checkStatus(client, statusAddr)

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func checkStatus(client *http.Client, addr string) ServerStatus {
	status := ServerStatus{
		Message: "Server is not running",
	}

	var live health.Liveness
	env, err := fetchHealth(client, addr, "/health", &live)
	if err != nil {
		return status
	}
	status.Running = true
	status.Version = live.Version

	if !env.Healthy() {
		status.Message = fmt.Sprintf("Server is running but unhealthy: %s", env.Error)
		return status
	}

	var ready health.Readiness
	env, err = fetchHealth(client, addr, "/health/ready", &ready)
	if err != nil || !env.Healthy() {
		status.Message = "Server is running but not ready to serve templates"
		if env != nil && env.Error != "" {
			status.Message = fmt.Sprintf("Server is running but not ready: %s", env.Error)
		}
		return status
	}

	status.Healthy = true
	status.Message = "Server is running and healthy"
	status.Generation = ready.Generation
	status.Uptime = ready.Uptime

	var tmpl health.Templates
	if env, err = fetchHealth(client, addr, "/health/templates", &tmpl); err == nil && env.Healthy() {
		status.Templates = tmpl.Templates
	}

	return status
}

// fetchHealth calls one health endpoint and decodes its payload into data.
// Non-2xx responses still carry a valid envelope; only transport and decode
// failures are errors.
func fetchHealth(client *http.Client, addr, path string, data interface{}) (*health.Envelope, error) {
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env health.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if env.Healthy() && data != nil {
		if err := env.Decode(data); err != nil {
			return nil, err
		}
	}
	return &env, nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("Kiln Server Status")
	fmt.Println("==================")
	fmt.Println()

	if !status.Running {
		fmt.Printf("  Status:  \033[31m● Not running\033[0m\n")
		fmt.Printf("  Checked: %s\n", statusAddr)
		fmt.Println()
		fmt.Println("Start the server with: kiln serve")
		fmt.Println()
		return
	}

	if status.Healthy {
		fmt.Printf("  Status:  \033[32m● Running\033[0m\n")
	} else {
		fmt.Printf("  Status:  \033[33m● Running (unhealthy)\033[0m\n")
		fmt.Printf("  Detail:  %s\n", status.Message)
	}

	pairs := [][2]string{
		{"Address", statusAddr},
		{"Version", status.Version},
	}
	if status.Healthy {
		pairs = append(pairs,
			[2]string{"Generation", strconv.FormatUint(status.Generation, 10)},
			[2]string{"Templates", strconv.Itoa(len(status.Templates))},
			[2]string{"Uptime", status.Uptime},
		)
	}
	fmt.Println()
	_ = output.KeyValueTable(os.Stdout, pairs)

	if len(status.Templates) > 0 {
		fmt.Println()
		fmt.Println("Loaded templates:")
		for _, name := range status.Templates {
			fmt.Printf("  - %s\n", name)
		}
	}
	fmt.Println()
}
