package domain

import "time"

const (
	ServerSuffix       = "_server"
	NamespaceSeparator = "_"
	DefaultEntrypoint  = "main.py"
	DefaultLauncher    = "python3"

	CredentialSerpAPIKey   = "SERPAPI_KEY"
	DefaultSerpAPIEndpoint = "https://serpapi.com/search.json"

	DefaultServerName        = "py_mcp_travelplanner_unified"
	DefaultPIDStoreFile      = ".mcp_pids.db"
	DefaultLogsDir           = "logs"
	DefaultStartTimeout      = 30 * time.Second
	DefaultStopTimeout       = 5 * time.Second
	DefaultVerifyTimeout     = 10 * time.Second
	DefaultStopPollInterval  = 100 * time.Millisecond
	DefaultReconcileSchedule = "@every 30s"
	DefaultLogLevel          = "warn"
	DefaultServerIgnoreFile  = ".serverignore"
)

// DefaultExcludedServers names packages that end with the server suffix and
// ship a main.py but are third-party dependencies rather than sibling servers.
var DefaultExcludedServers = []string{
	"mcp_server",
	"jupyter_server",
	"python_lsp_server",
	"jedi_language_server",
	"fastmcp_server",
	"uvicorn_server",
}
