package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildin7days/entitlements/internal/directory"
	"github.com/buildin7days/entitlements/internal/domain"
)

func TestParseTeams(t *testing.T) {
	teams, err := parseTeams(map[string]string{"alpha": "1", " beta ": " 2 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alpha": 1, "beta": 2}, teams)

	_, err = parseTeams(map[string]string{"alpha": "x"})
	assert.Error(t, err)

	_, err = parseTeams(map[string]string{"alpha": "0"})
	assert.Error(t, err)
}

func TestMockDirectory_ServesDirectoryClient(t *testing.T) {
	m := &mockDirectory{token: "tok", teams: map[string]int64{"customers-scale-boilerplate": 4242}}
	srv := httptest.NewServer(m.routes())
	defer srv.Close()

	client := directory.NewClient(directory.Config{BaseURL: srv.URL, Token: "tok", Org: "BuildIn7Days"})

	id, err := client.Grant(context.Background(), "customers-scale-boilerplate", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(4242), id)

	require.Len(t, m.invites, 1)
	assert.Equal(t, "a@example.com", m.invites[0].Email)
	assert.Equal(t, "direct_member", m.invites[0].Role)
	assert.Equal(t, []int64{4242}, m.invites[0].TeamIDs)

	_, err = client.Grant(context.Background(), "unknown", "a@example.com")
	assert.ErrorIs(t, err, domain.ErrUpstreamLookup)
}

func TestMockDirectory_RequiresToken(t *testing.T) {
	m := &mockDirectory{token: "tok", teams: map[string]int64{"team": 1}}
	srv := httptest.NewServer(m.routes())
	defer srv.Close()

	client := directory.NewClient(directory.Config{BaseURL: srv.URL, Token: "wrong", Org: "o"})
	_, err := client.Grant(context.Background(), "team", "a@example.com")
	assert.ErrorIs(t, err, domain.ErrUpstreamLookup)
	assert.Empty(t, m.invites)
}
