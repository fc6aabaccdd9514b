package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendFoundry = "foundry"
	BackendLocal   = "local"

	ResponderEcho = "echo"
	ResponderLLM  = "llm"

	AuthToken             = "token"
	AuthClientCredentials = "client_credentials"
	AuthNone              = "none"

	envPrefix = "AGENTCHAT_"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port           int           `koanf:"port"`
		FrontendURL    string        `koanf:"frontend_url"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"server"`

	AgentService struct {
		Backend      string `koanf:"backend"`
		Endpoint     string `koanf:"endpoint"`
		APIVersion   string `koanf:"api_version"`
		Token        string `koanf:"token"`
		TenantID     string `koanf:"tenant_id"`
		ClientID     string `koanf:"client_id"`
		ClientSecret string `koanf:"client_secret"`
		Scope        string `koanf:"scope"`
	} `koanf:"agent_service"`

	Agent struct {
		ModelDeployment string `koanf:"model_deployment"`
		DefaultName     string `koanf:"default_name"`
	} `koanf:"agent"`

	Tool struct {
		ServerLabel     string `koanf:"server_label"`
		ServerURL       string `koanf:"server_url"`
		RequireApproval string `koanf:"require_approval"`
	} `koanf:"tool"`

	Run struct {
		PollInterval   time.Duration `koanf:"poll_interval"`
		MaxWait        time.Duration `koanf:"max_wait"`
		MaxPolls       int           `koanf:"max_polls"`
		ApprovalPolicy string        `koanf:"approval_policy"`
		AllowedTools   []string      `koanf:"allowed_tools"`
	} `koanf:"run"`

	Local struct {
		Responder   string        `koanf:"responder"`
		Provider    string        `koanf:"provider"`
		Model       string        `koanf:"model"`
		APIKey      string        `koanf:"api_key"`
		BaseURL     string        `koanf:"base_url"`
		Temperature float64       `koanf:"temperature"`
		MaxTokens   int           `koanf:"max_tokens"`
		RunTTL      time.Duration `koanf:"run_ttl"`
		Seed        int64         `koanf:"seed"`
	} `koanf:"local"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`

	PersonasFile string `koanf:"personas_file"`
}

// AuthMode names how the foundry backend will authenticate. A static token wins
// over client credentials.
func (c *Config) AuthMode() string {
	svc := c.AgentService
	switch {
	case svc.Token != "":
		return AuthToken
	case svc.TenantID != "" && svc.ClientID != "" && svc.ClientSecret != "":
		return AuthClientCredentials
	default:
		return AuthNone
	}
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":               8888,
		"server.frontend_url":       "http://localhost:5173",
		"server.request_timeout":    "3m",
		"agent_service.backend":     BackendLocal,
		"agent_service.api_version": "2025-05-15-preview",
		"agent.model_deployment":    "gpt-4o",
		"agent.default_name":        "ContosoBikeStoreAgent",
		"tool.server_label":         "contoso_store",
		"tool.require_approval":     "always",
		"run.poll_interval":         "500ms",
		"run.max_wait":              "2m",
		"run.max_polls":             0,
		"run.approval_policy":       "approve_all",
		"local.responder":           ResponderEcho,
		"local.run_ttl":             "10m",
		"local.seed":                1,
		"log.level":                 "info",
		"log.format":                "console",
	}
}

// LoadConfig loads the configuration: defaults, then the TOML file, then AGENTCHAT_ environment
// variables. Nested keys use a double underscore, e.g. AGENTCHAT_RUN__POLL_INTERVAL=250ms.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./agentchat.toml", "$HOME/.agentchat.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// InitConfig writes a sample configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# agentchat configuration

personas_file = ""

[server]
port = 8888
frontend_url = "http://localhost:5173"
request_timeout = "3m"

[agent_service]
# "foundry" talks to an Azure AI Foundry project, "local" runs an in-process emulator
backend = "foundry"
endpoint = "https://your-resource.services.ai.azure.com/api/projects/your-project"
api_version = "2025-05-15-preview"
# either a static bearer token...
token = ""
# ...or an Entra ID app registration
tenant_id = ""
client_id = ""
client_secret = ""

[agent]
model_deployment = "gpt-4o"
default_name = "ContosoBikeStoreAgent"

[tool]
server_label = "contoso_store"
server_url = "https://your-mcp-server.example.com/mcp"
require_approval = "always"

[run]
poll_interval = "500ms"
max_wait = "2m"
max_polls = 0
approval_policy = "approve_all"
allowed_tools = []

[local]
# "echo" or "llm"
responder = "echo"
provider = "openai"
model = "gpt-4o-mini"
api_key = ""
run_ttl = "10m"

[log]
level = "info"
format = "console"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	var errs []error

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d is out of range", config.Server.Port))
	}
	if config.Agent.ModelDeployment == "" {
		errs = append(errs, errors.New("agent model_deployment is required"))
	}
	if config.Agent.DefaultName == "" {
		errs = append(errs, errors.New("agent default_name is required"))
	}
	if config.Tool.ServerLabel == "" {
		errs = append(errs, errors.New("tool server_label is required"))
	}
	if config.Run.MaxWait <= 0 {
		errs = append(errs, errors.New("run max_wait must be positive"))
	}
	if config.Run.PollInterval < 0 {
		errs = append(errs, errors.New("run poll_interval must not be negative"))
	}
	switch config.Run.ApprovalPolicy {
	case "approve_all":
	case "allow_list":
		if len(config.Run.AllowedTools) == 0 {
			errs = append(errs, errors.New("run allowed_tools is required for the allow_list policy"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown approval policy %q", config.Run.ApprovalPolicy))
	}

	switch config.AgentService.Backend {
	case BackendFoundry:
		if config.AgentService.Endpoint == "" {
			errs = append(errs, errors.New("agent_service endpoint is required"))
		}
		if config.Tool.ServerURL == "" {
			errs = append(errs, errors.New("tool server_url is required"))
		}
		if config.AuthMode() == AuthNone {
			errs = append(errs, errors.New("agent_service needs a token or tenant_id, client_id and client_secret"))
		}
	case BackendLocal:
		switch config.Local.Responder {
		case ResponderEcho:
		case ResponderLLM:
			if config.Local.Provider == "" {
				errs = append(errs, errors.New("local provider is required for the llm responder"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown local responder %q", config.Local.Responder))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown agent_service backend %q", config.AgentService.Backend))
	}

	return errors.Join(errs...)
}
