package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/infrastructure/arpc/client"
)

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests.
// Without a server address the whole suite is skipped, so `go test ./...`
// stays green on machines with no IM server around.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set, skipping live suite")
	}
}

// Dial opens an authenticated session with a colorized header in logs
func (s *BaseSuite) Dial(t *testing.T, name string) *client.Session {
	// 1. Print a colorized header for the connection step in logs
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	// 2. Quiet logger: the suite output should read as a scenario, not a log dump
	logger := logs.GetLoggerFromLevel(slog.LevelError)

	session, err := client.NewSession(logger, domain.BotID(s.Config.BotID),
		s.Config.ServerAddr, s.Config.Token, 5*time.Second, 64)
	s.Require().NoError(err, "Failed to connect to IM server at "+s.Config.ServerAddr)
	return session
}

// WithSession provides an authenticated session within a contextual test step
func (s *BaseSuite) WithSession(name string, fn func(ctx context.Context, session *client.Session)) {
	session := s.Dial(s.T(), name)
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fn(ctx, session)
}

// Mutate sends one mutation, logs the verdict and latency, and dumps the
// full frames as JSON when E2E_DEBUG_JSON is enabled
func (s *BaseSuite) Mutate(ctx context.Context, t *testing.T, session *client.Session,
	req contract.MutationRequest) contract.MutationResponse {
	start := time.Now()
	rsp, err := session.SendGroupMutation(ctx, req)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "ARPC %s on %d/%d [code=%d] in %v",
		req.Action, req.Group, req.Member, rsp.Code, time.Since(start))

	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, asJSON(req))
		if err != nil {
			fmt.Fprintln(&logBuilder, "ERROR:", err)
		} else {
			fmt.Fprintln(&logBuilder, "RESPONSE:")
			fmt.Fprintln(&logBuilder, asJSON(rsp))
		}
	}
	t.Log(logBuilder.String())

	s.Require().NoError(err)
	return rsp
}

// AwaitChange drains the push feed until one record matches or the
// timeout passes. Non-matching records are consumed and dropped, the
// server may interleave pushes from unrelated activity.
func (s *BaseSuite) AwaitChange(session *client.Session, timeout time.Duration,
	match func(domain.Change) bool) domain.Change {
	deadline := time.After(timeout)
	for {
		select {
		case c, ok := <-session.Changes():
			s.Require().True(ok, "push feed closed before the expected record arrived")
			if match(c) {
				return c
			}
		case <-deadline:
			s.Require().Fail("expected push not observed", "waited %v", timeout)
			return nil
		}
	}
}

func asJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	return string(b)
}
