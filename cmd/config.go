package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "reviewdesk"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage reviewdesk configuration.

Running bare 'reviewdesk config' is the same as 'reviewdesk config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# reviewdesk configuration
# See: reviewdesk config show (for effective values and sources)

# State/data directory (default: ~/.config/reviewdesk)
# state_dir: {{ .StateDir }}

# SQLite database path, used by the sqlite backend
# db_path: {{ .DBPath }}

# History storage
store:
  # One of: sqlite, local, remote
  backend: "{{ .StoreBackend }}"

# Local backend: a single JSON document holding the history list
local:
  path: "{{ .LocalPath }}"

# Remote backend: hosted table store with a PostgREST-style API
remote:
  url: "{{ .RemoteURL }}"
  # key: "your-anon-key"
  table: "{{ .RemoteTable }}"

# AI text endpoint
analysis:
  # One of: pollinations, anthropic, openai
  provider: "{{ .Provider }}"
  # Override the endpoint base URL (empty uses the provider default)
  base_url: "{{ .BaseURL }}"
  # Model name (empty uses the provider default)
  model: "{{ .Model }}"
  # api_key: "" (falls back to ANTHROPIC_API_KEY / OPENAI_API_KEY)
  # Upper bound for one request
  timeout: {{ .Timeout }}

history:
  # Maximum records listed (default: 50)
  limit: {{ .HistoryLimit }}

export:
  # Directory for exported replies
  dir: "{{ .ExportDir }}"

# Port for 'reviewdesk serve'
port: {{ .Port }}
`

type configTemplateData struct {
	StateDir     string
	DBPath       string
	StoreBackend string
	LocalPath    string
	RemoteURL    string
	RemoteTable  string
	Provider     string
	BaseURL      string
	Model        string
	Timeout      string
	HistoryLimit int
	ExportDir    string
	Port         int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:     viper.GetString("state_dir"),
		DBPath:       viper.GetString("db_path"),
		StoreBackend: viper.GetString("store.backend"),
		LocalPath:    viper.GetString("local.path"),
		RemoteURL:    viper.GetString("remote.url"),
		RemoteTable:  viper.GetString("remote.table"),
		Provider:     viper.GetString("analysis.provider"),
		BaseURL:      viper.GetString("analysis.base_url"),
		Model:        viper.GetString("analysis.model"),
		Timeout:      viper.GetDuration("analysis.timeout").String(),
		HistoryLimit: viper.GetInt("history.limit"),
		ExportDir:    viper.GetString("export.dir"),
		Port:         viper.GetInt("port"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "REVIEWDESK_STATE_DIR"},
	{Key: "db_path", EnvVar: "REVIEWDESK_DB_PATH"},
	{Key: "store.backend", EnvVar: "REVIEWDESK_STORE_BACKEND"},
	{Key: "local.path", EnvVar: "REVIEWDESK_LOCAL_PATH"},
	{Key: "remote.url", EnvVar: "REVIEWDESK_REMOTE_URL"},
	{Key: "remote.key", EnvVar: "REVIEWDESK_REMOTE_KEY", Secret: true},
	{Key: "remote.table", EnvVar: "REVIEWDESK_REMOTE_TABLE"},
	{Key: "analysis.provider", EnvVar: "REVIEWDESK_ANALYSIS_PROVIDER"},
	{Key: "analysis.base_url", EnvVar: "REVIEWDESK_ANALYSIS_BASE_URL"},
	{Key: "analysis.model", EnvVar: "REVIEWDESK_ANALYSIS_MODEL"},
	{Key: "analysis.api_key", EnvVar: "REVIEWDESK_ANALYSIS_API_KEY", Secret: true},
	{Key: "analysis.timeout", EnvVar: "REVIEWDESK_ANALYSIS_TIMEOUT"},
	{Key: "history.limit", EnvVar: "REVIEWDESK_HISTORY_LIMIT"},
	{Key: "export.dir", EnvVar: "REVIEWDESK_EXPORT_DIR"},
	{Key: "port", EnvVar: "REVIEWDESK_PORT"},
}

// maskSecret keeps the last four characters of a credential.
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set: set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'reviewdesk config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
