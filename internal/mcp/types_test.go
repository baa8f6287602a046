package mcp

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr string
	}{
		{
			"valid",
			ServerConfig{Name: "fs", Transport: "stdio", Command: "mcp-server-fs", Args: []string{"--root", "/tmp/data"}},
			"",
		},
		{
			"missing name",
			ServerConfig{Transport: "stdio", Command: "x"},
			"name is required",
		},
		{
			"unsupported transport",
			ServerConfig{Name: "fs", Transport: "sse", Command: "x"},
			"not supported",
		},
		{
			"missing command",
			ServerConfig{Name: "fs", Transport: "stdio"},
			"command is required",
		},
		{
			"command traversal",
			ServerConfig{Name: "fs", Transport: "stdio", Command: "../../bin/evil"},
			"path traversal",
		},
		{
			"arg with command substitution",
			ServerConfig{Name: "fs", Transport: "stdio", Command: "server", Args: []string{"$(rm -rf /)"}},
			"shell metacharacters",
		},
		{
			"arg with pipe",
			ServerConfig{Name: "fs", Transport: "stdio", Command: "server", Args: []string{"a|b"}},
			"shell metacharacters",
		},
		{
			"arg with newline",
			ServerConfig{Name: "fs", Transport: "stdio", Command: "server", Args: []string{"a\nb"}},
			"shell metacharacters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfigEnvNeverSerialized(t *testing.T) {
	cfg := ServerConfig{
		Name:      "db",
		Transport: "stdio",
		Command:   "mcp-server-db",
		Env:       map[string]string{"DB_PASSWORD": "hunter22"},
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter22") || strings.Contains(string(data), "DB_PASSWORD") {
		t.Errorf("env block leaked into JSON: %s", data)
	}
}
