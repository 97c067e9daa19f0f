package configuration

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Router    RouterConfig    `toml:"router"`
	Agent     AgentConfig     `toml:"agent"`
	Asana     AsanaConfig     `toml:"asana"`
	N8N       N8NConfig       `toml:"n8n"`
	Documents DocumentsConfig `toml:"documents"`
	Drive     DriveConfig     `toml:"drive"`
	Server    ServerConfig    `toml:"server"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	OpenAIKey      string `toml:"openai_api_key"`
	AnthropicKey   string `toml:"anthropic_api_key"`
	GeminiKey      string `toml:"gemini_api_key"`
	GroqKey        string `toml:"groq_api_key"`
	OpenAIModel    string `toml:"openai_model"`
	AnthropicModel string `toml:"anthropic_model"`
	GeminiModel    string `toml:"gemini_model"`
	GroqModel      string `toml:"groq_model"`
	OllamaHost     string `toml:"ollama_host"`
	OllamaModel    string `toml:"ollama_model"`
	// JSONToolMode describes tools in the prompt instead of using the
	// provider's native tool calling (for local models without it).
	JSONToolMode bool `toml:"json_tool_mode"`
}

// RouterConfig enables the cheap/expensive model router. Provider names
// take the same values as llm.provider.
type RouterConfig struct {
	Enabled         bool   `toml:"enabled"`
	Classifier      string `toml:"classifier"`
	ClassifierModel string `toml:"classifier_model"`
	Cheap           string `toml:"cheap"`
	CheapModel      string `toml:"cheap_model"`
	Expensive       string `toml:"expensive"`
	ExpensiveModel  string `toml:"expensive_model"`
}

type AgentConfig struct {
	MaxDepth            int    `toml:"max_depth"`
	Dedup               string `toml:"dedup"`
	Streaming           bool   `toml:"streaming"`
	ModelTimeoutSeconds int    `toml:"model_timeout_seconds"`
	ToolTimeoutSeconds  int    `toml:"tool_timeout_seconds"`
	SystemPrompt        string `toml:"system_prompt"`
	Debug               bool   `toml:"debug"`
}

type AsanaConfig struct {
	AccessToken string `toml:"access_token"`
	WorkspaceID string `toml:"workspace_id"`
	ProjectID   string `toml:"project_id"`
	BaseURL     string `toml:"base_url"`
}

type N8NConfig struct {
	BearerToken         string `toml:"bearer_token"`
	SummarizeSlackURL   string `toml:"summarize_slack_url"`
	SendSlackMessageURL string `toml:"send_slack_message_url"`
	UploadGoogleDocURL  string `toml:"upload_google_doc_url"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

type DocumentsConfig struct {
	Directory string `toml:"directory"`
	DSN       string `toml:"dsn"`
	Results   int    `toml:"results"`
}

type DriveConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	APIKey          string `toml:"api_key"`
}

type ServerConfig struct {
	Addr                  string `toml:"addr"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
		},
		Router: RouterConfig{
			Classifier: "groq",
			Cheap:      "groq",
			Expensive:  "openai",
		},
		Agent: AgentConfig{
			MaxDepth:            5,
			Dedup:               "off",
			ModelTimeoutSeconds: 120,
			ToolTimeoutSeconds:  60,
		},
		N8N: N8NConfig{
			TimeoutSeconds: 60,
		},
		Documents: DocumentsConfig{
			DSN:     ":memory:",
			Results: 3,
		},
		Server: ServerConfig{
			Addr:                  ":8080",
			RequestTimeoutSeconds: 300,
		},
	}
}

// DefaultPaths lists config locations in lookup order.
func DefaultPaths() []string {
	return []string{
		"./config.toml", // Current directory (for development)
		filepath.Join(os.Getenv("HOME"), ".config", "taskagent", "config.toml"), // User config (XDG)
		"/etc/taskagent/config.toml", // System-wide config
	}
}

// Load decodes the first existing file of paths over the defaults, then
// applies environment overrides. It returns the path used, or "" when no
// file was found.
func Load(paths ...string) (*Config, string, error) {
	config := DefaultConfig()

	var loadedPath string
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, config); err != nil {
				return nil, "", fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			loadedPath = path
			break
		}
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, loadedPath, err
	}
	return config, loadedPath, nil
}

// LoadConfig loads configuration from the default paths and reports where
// it came from on w.
func LoadConfig(w io.Writer) (*Config, error) {
	config, path, err := Load(DefaultPaths()...)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return config, nil
	}

	if path == "" {
		fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Fprintln(w, "⚠️  No config file found. Using default settings.")
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "To configure taskAgent, create ~/.config/taskagent/config.toml")
		fmt.Fprintln(w, "or use environment variables:")
		fmt.Fprintln(w, "     export OPENAI_API_KEY='sk-...'")
		fmt.Fprintln(w, "     export ASANA_ACCESS_TOKEN='...'")
		fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Fprintln(w, "")
	} else {
		fmt.Fprintf(w, "✓ Loaded config from: %s\n", path)
	}
	return config, nil
}

// applyEnv overrides file values with environment variables when set.
func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.LLM.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&c.LLM.GeminiKey, "GEMINI_API_KEY")
	setString(&c.LLM.GroqKey, "GROQ_API_KEY")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.OllamaHost, "OLLAMA_HOST")
	setString(&c.LLM.OllamaModel, "OLLAMA_MODEL")

	setString(&c.Asana.AccessToken, "ASANA_ACCESS_TOKEN")
	setString(&c.Asana.WorkspaceID, "ASANA_WORKSPACE_ID")
	setString(&c.Asana.ProjectID, "ASANA_PROJECT_ID")

	setString(&c.N8N.BearerToken, "N8N_BEARER_TOKEN")
	setString(&c.N8N.SummarizeSlackURL, "SUMMARIZE_SLACK_CONVERSATION_WEBHOOK")
	setString(&c.N8N.SendSlackMessageURL, "SEND_SLACK_MESSAGE_WEBHOOK")
	setString(&c.N8N.UploadGoogleDocURL, "UPLOAD_GOOGLE_DOC_WEBHOOK")

	setString(&c.Documents.Directory, "DOCUMENTS_DIR")

	if debug := os.Getenv("DEBUG"); debug == "true" {
		c.Agent.Debug = true
	}
}

// Validate normalizes defaults and rejects values the agent cannot use.
func (c *Config) Validate() error {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if !knownProvider(c.LLM.Provider) {
		return fmt.Errorf("unknown llm.provider %q (supported: %s)", c.LLM.Provider, strings.Join(Providers, ", "))
	}
	if c.Router.Enabled {
		for _, p := range []*string{&c.Router.Classifier, &c.Router.Cheap, &c.Router.Expensive} {
			*p = strings.ToLower(strings.TrimSpace(*p))
			if !knownProvider(*p) {
				return fmt.Errorf("unknown router provider %q (supported: %s)", *p, strings.Join(Providers, ", "))
			}
		}
	}

	if c.Agent.MaxDepth <= 0 {
		c.Agent.MaxDepth = 5
	}
	switch strings.ToLower(c.Agent.Dedup) {
	case "", "off", "turn", "conversation":
	default:
		return fmt.Errorf("invalid agent.dedup %q (want off, turn or conversation)", c.Agent.Dedup)
	}
	if c.Agent.ModelTimeoutSeconds < 0 || c.Agent.ToolTimeoutSeconds < 0 {
		return fmt.Errorf("agent timeouts must not be negative")
	}

	if c.Documents.DSN == "" {
		c.Documents.DSN = ":memory:"
	}
	if c.Documents.Results <= 0 {
		c.Documents.Results = 3
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	return nil
}

// Providers are the accepted llm.provider values.
var Providers = []string{"openai", "anthropic", "gemini", "ollama", "groq"}

func knownProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}

func (a AgentConfig) ModelTimeout() time.Duration {
	return time.Duration(a.ModelTimeoutSeconds) * time.Second
}

func (a AgentConfig) ToolTimeout() time.Duration {
	return time.Duration(a.ToolTimeoutSeconds) * time.Second
}

func (n N8NConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// HasN8N reports whether any webhook tool is configured.
func (n N8NConfig) HasN8N() bool {
	return n.SummarizeSlackURL != "" || n.SendSlackMessageURL != "" || n.UploadGoogleDocURL != ""
}

// Enabled reports whether Drive credentials are configured.
func (d DriveConfig) Enabled() bool {
	return d.CredentialsFile != "" || d.APIKey != ""
}
