package api

import (
	"encoding/json/v2"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksapp/stacks-server/internal/dto"
	"github.com/stacksapp/stacks-server/internal/policy"
)

func TestListUsers(t *testing.T) {
	ts := setupTestServer(t)
	rootToken, _ := ts.setupRoot(t)
	ts.registerUser(t, "first")
	ts.registerUser(t, "second")

	resp := ts.api.Get("/api/v1/users", bearer(rootToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Users []*dto.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Users, 3)

	names := make(map[string]bool)
	for _, u := range body.Users {
		names[u.Username] = true
		assert.NotEmpty(t, u.ID)
	}
	assert.True(t, names["root"] && names["first"] && names["second"])
}

func TestSetUserGroups(t *testing.T) {
	ts := setupTestServer(t)
	rootToken, _ := ts.setupRoot(t)
	_, userID := ts.registerUser(t, "promotee")

	resp := ts.api.Put("/api/v1/users/"+userID+"/groups",
		bearer(rootToken),
		map[string]any{"groups": []string{policy.SlugViewers, policy.SlugEditors}},
	)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[dto.User]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "Groups updated successfully", envelope.Message)
	assert.ElementsMatch(t, []string{policy.SlugViewers, policy.SlugEditors}, envelope.Data.Groups)
	assert.Contains(t, envelope.Data.Capabilities, "can_create")
}

func TestSetUserGroupsUnknownGroup(t *testing.T) {
	ts := setupTestServer(t)
	rootToken, _ := ts.setupRoot(t)
	_, userID := ts.registerUser(t, "victim")

	resp := ts.api.Put("/api/v1/users/"+userID+"/groups",
		bearer(rootToken),
		map[string]any{"groups": []string{"wizards"}},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decodeError(t, resp.Body.Bytes()).Errors, "groups")
}

func TestSetUserGroupsUnknownUser(t *testing.T) {
	ts := setupTestServer(t)
	rootToken, _ := ts.setupRoot(t)

	resp := ts.api.Put("/api/v1/users/user_doesnotexist/groups",
		bearer(rootToken),
		map[string]any{"groups": []string{policy.SlugViewers}},
	)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListGroups(t *testing.T) {
	ts := setupTestServer(t)
	rootToken, _ := ts.setupRoot(t)

	resp := ts.api.Get("/api/v1/groups", bearer(rootToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Groups []struct {
			Slug         string   `json:"slug"`
			Capabilities []string `json:"capabilities"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	slugs := make(map[string][]string)
	for _, g := range body.Groups {
		slugs[g.Slug] = g.Capabilities
	}
	require.Contains(t, slugs, policy.SlugViewers)
	require.Contains(t, slugs, policy.SlugEditors)
	require.Contains(t, slugs, policy.SlugAdmins)
	assert.Equal(t, []string{"can_view"}, slugs[policy.SlugViewers])
	assert.Contains(t, slugs[policy.SlugAdmins], "can_delete")
}

func TestApplyPolicyIsIdempotent(t *testing.T) {
	ts := setupTestServer(t)
	rootToken, _ := ts.setupRoot(t)
	_, userID := ts.registerUser(t, "member")
	ts.setGroups(t, userID, policy.SlugEditors)

	var first, second struct {
		Message string          `json:"message"`
		Policy  policy.Document `json:"policy"`
	}

	resp := ts.api.Post("/api/v1/admin/policy/apply", bearer(rootToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &first))
	assert.Equal(t, "Policy applied successfully", first.Message)
	assert.NotEmpty(t, first.Policy.Groups)

	resp = ts.api.Post("/api/v1/admin/policy/apply", bearer(rootToken))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &second))
	assert.Equal(t, first.Policy, second.Policy)

	// Reapplying the policy never disturbs membership.
	me := ts.api.Get("/api/v1/users", bearer(rootToken))
	require.Equal(t, http.StatusOK, me.Code)

	var body struct {
		Users []*dto.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &body))
	for _, u := range body.Users {
		if u.ID == userID {
			assert.Equal(t, []string{policy.SlugEditors}, u.Groups)
		}
	}
}
