package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/metadeploy/internal/service/notifier"
)

// TestNotify_SharesTheDeploySession sends mail after a deployment without
// authenticating again.
func TestNotify_SharesTheDeploySession(t *testing.T) {
	t.Parallel()

	p := newPlatform(t, succeeded)
	s := p.stack(p.config())

	job, err := s.pipeline.DeployFolder(context.Background(), writeClasses(t, "Foo.cls"), false, nil)
	require.NoError(t, err)

	result, err := notifier.New(s.sessions, s.sessions.ClientOptions()...).Send(context.Background(), notifier.Email{
		To:      []string{"ops@example.com", "dev@example.com"},
		Subject: "Deployment " + job.ID,
		Body:    "Status: " + job.Status,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	tokens, _, _ := p.counts()
	require.Equal(t, 1, tokens)

	p.mu.Lock()
	defer p.mu.Unlock()

	require.Len(t, p.emails, 1)

	inputs, ok := p.emails[0]["inputs"].([]any)
	require.True(t, ok)
	require.Len(t, inputs, 1)

	input, ok := inputs[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ops@example.com,dev@example.com", input["emailAddresses"])
	require.Equal(t, "Deployment 0Af5g00000ABCDE", input["emailSubject"])
	require.Equal(t, "Status: Succeeded", input["emailBody"])
}
