package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"spx-studio/internal/models"
	"spx-studio/internal/plans"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func createWebsite(t *testing.T, u *testUser, req WebsiteRequest) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/websites", jsonBody(t, req))
	return serve(testServer, http.MethodPost, "/api/v1/websites", testServer.CreateWebsiteHandler, authed(r, u))
}

func updateWebsite(t *testing.T, u *testUser, id string, req WebsiteRequest) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPut, "/api/v1/websites/"+id, jsonBody(t, req))
	return serve(testServer, http.MethodPut, "/api/v1/websites/{websiteId}", testServer.UpdateWebsiteHandler, authed(r, u))
}

func uniqueDomain() string {
	return fmt.Sprintf("site%d.example.com", atomic.AddInt64(&userSeq, 1))
}

func TestWebsiteLifecycle(t *testing.T) {
	u := newTestUser(t, plans.Free)

	rr := createWebsite(t, u, WebsiteRequest{
		Name:        strPtr("<b>Bakery</b>"),
		Description: strPtr("Fresh bread <script>alert(1)</script>"),
		HTMLContent: strPtr("<h1>Bakery</h1>"),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var site models.Website
	decode(t, rr, &site)
	require.Equal(t, "Bakery", site.Name)
	require.Equal(t, "Fresh bread", *site.Description)
	require.Equal(t, "<h1>Bakery</h1>", site.HTMLContent, "page content is stored verbatim")
	require.False(t, site.IsPublished)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/websites", nil)
	rr = serve(testServer, http.MethodGet, "/api/v1/websites", testServer.ListWebsitesHandler, authed(req, u))
	require.Equal(t, http.StatusOK, rr.Code)
	var sites []models.Website
	decode(t, rr, &sites)
	require.Len(t, sites, 1)

	rr = updateWebsite(t, u, site.ID, WebsiteRequest{CSSContent: strPtr("h1{color:red}"), IsPublished: boolPtr(true)})
	require.Equal(t, http.StatusOK, rr.Code)
	var updated models.Website
	decode(t, rr, &updated)
	require.Equal(t, "Bakery", updated.Name)
	require.Equal(t, "h1{color:red}", updated.CSSContent)
	require.True(t, updated.IsPublished)
	require.False(t, updated.LastModified.Before(site.LastModified))

	require.Equal(t, http.StatusBadRequest, updateWebsite(t, u, site.ID, WebsiteRequest{Name: strPtr("  ")}).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/websites/"+site.ID, nil)
	rr = serve(testServer, http.MethodGet, "/api/v1/websites/{websiteId}", testServer.GetWebsiteHandler, authed(req, u))
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/websites/"+site.ID, nil)
	rr = serve(testServer, http.MethodDelete, "/api/v1/websites/{websiteId}", testServer.DeleteWebsiteHandler, authed(req, u))
	require.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/websites/"+site.ID, nil)
	rr = serve(testServer, http.MethodGet, "/api/v1/websites/{websiteId}", testServer.GetWebsiteHandler, authed(req, u))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func boolPtr(b bool) *bool { return &b }

func TestCreateWebsiteAssignsDistinctIDs(t *testing.T) {
	u := newTestUser(t, plans.Free)

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		rr := createWebsite(t, u, WebsiteRequest{Name: strPtr(fmt.Sprintf("Site %d", i))})
		require.Equal(t, http.StatusCreated, rr.Code)
		var site models.Website
		decode(t, rr, &site)
		require.Len(t, site.ID, 21)
		require.False(t, seen[site.ID])
		seen[site.ID] = true
	}
}

func TestWebsiteValidationAndOwnership(t *testing.T) {
	owner := newTestUser(t, plans.Free)
	other := newTestUser(t, plans.Free)

	require.Equal(t, http.StatusBadRequest, createWebsite(t, owner, WebsiteRequest{}).Code)
	require.Equal(t, http.StatusBadRequest, createWebsite(t, owner, WebsiteRequest{Name: strPtr("<i></i>")}).Code)

	rr := createWebsite(t, owner, WebsiteRequest{Name: strPtr("Private")})
	require.Equal(t, http.StatusCreated, rr.Code)
	var site models.Website
	decode(t, rr, &site)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/websites/"+site.ID, nil)
	rr = serve(testServer, http.MethodGet, "/api/v1/websites/{websiteId}", testServer.GetWebsiteHandler, authed(req, other))
	require.Equal(t, http.StatusForbidden, rr.Code)

	require.Equal(t, http.StatusForbidden, updateWebsite(t, other, site.ID, WebsiteRequest{Name: strPtr("Mine now")}).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/websites/"+site.ID, nil)
	rr = serve(testServer, http.MethodDelete, "/api/v1/websites/{websiteId}", testServer.DeleteWebsiteHandler, authed(req, other))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestWebsiteCustomDomains(t *testing.T) {
	t.Run("free plan has no domains", func(t *testing.T) {
		u := newTestUser(t, plans.Free)
		rr := createWebsite(t, u, WebsiteRequest{Name: strPtr("Shop"), Domain: strPtr(uniqueDomain())})
		require.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("basic plan has one", func(t *testing.T) {
		u := newTestUser(t, plans.Basic)
		domain := uniqueDomain()

		rr := createWebsite(t, u, WebsiteRequest{Name: strPtr("One"), Domain: strPtr(domain)})
		require.Equal(t, http.StatusCreated, rr.Code)
		var first models.Website
		decode(t, rr, &first)
		require.Equal(t, domain, *first.Domain)

		rr = createWebsite(t, u, WebsiteRequest{Name: strPtr("Two"), Domain: strPtr(uniqueDomain())})
		require.Equal(t, http.StatusForbidden, rr.Code)

		// Changing the domain of the site that already holds one stays within the allowance.
		moved := uniqueDomain()
		rr = updateWebsite(t, u, first.ID, WebsiteRequest{Domain: strPtr(moved)})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = updateWebsite(t, u, first.ID, WebsiteRequest{Domain: strPtr("")})
		require.Equal(t, http.StatusOK, rr.Code)
		var unbound models.Website
		decode(t, rr, &unbound)
		require.Nil(t, unbound.Domain)
	})

	t.Run("domain taken by someone else", func(t *testing.T) {
		a := newTestUser(t, plans.Pro)
		b := newTestUser(t, plans.Pro)
		domain := uniqueDomain()

		require.Equal(t, http.StatusCreated, createWebsite(t, a, WebsiteRequest{Name: strPtr("A"), Domain: strPtr(domain)}).Code)
		require.Equal(t, http.StatusConflict, createWebsite(t, b, WebsiteRequest{Name: strPtr("B"), Domain: strPtr(domain)}).Code)
	})
}
