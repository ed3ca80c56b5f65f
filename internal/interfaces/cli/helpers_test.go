package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/config"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

const testSecret = "cli-test-secret-0123456789"

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{JWTSecret: testSecret, Issuer: "landlordcomply", TokenTTL: time.Hour},
	}
}

// testDeps never touches real infrastructure.
func testDeps() Dependencies {
	return Dependencies{
		LoadConfig: func(string) (*config.Config, error) { return testConfig(), nil },
		Now:        func() time.Time { return testNow },
	}
}

// run executes landlordctl with args and returns stdout and stderr.
func run(t *testing.T, deps Dependencies, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
