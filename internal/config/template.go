package config

import (
	"fmt"
	"os"
)

// Template kinds understood by WriteTemplate.
const (
	KindSession = "session"
	KindDaemon  = "daemon"
)

const sessionTemplate = `# DrawNet session configuration

session_name = "Untitled session"
# session_code = "CRAYON"
display_name = "anonymous"

# 0 picks an ephemeral port; the default wire port is 34567 with fallback.
port = 34567
# 0 = unlimited
max_peers = 0
announce = false

# realtime | stroke | interval | manual
sync_mode = "realtime"
sync_interval = "2s"

# view | draw | edit | admin
default_permission = "draw"
share_cursor = true
share_tool = true

chunk_size = 32768
`

const daemonTemplate = `# drawnetd configuration

admin_addr = "127.0.0.1:9090"
# admin_token = "change-me"
admin_origins = ["http://localhost:3000"]

session_file = "session.toml"
# canvas_file = "state/canvas.bin"
`

// WriteTemplate writes a starter config of the given kind, refusing to
// overwrite an existing file unless force is set.
func WriteTemplate(path, kind string, force bool) error {
	var body string
	switch kind {
	case KindSession:
		body = sessionTemplate
	case KindDaemon:
		body = daemonTemplate
	default:
		return fmt.Errorf("config: unknown template kind %q", kind)
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists (use force to overwrite)", path)
		}
	}
	return os.WriteFile(path, []byte(body), 0o644)
}
