package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostDate(t *testing.T) {
	tests := map[string]time.Time{
		"2024-05-02":           time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		"2024-05-02T08:30":     time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC),
		"2024-05-02 08:30:15":  time.Date(2024, 5, 2, 8, 30, 15, 0, time.UTC),
		"2024-05-02T08:30:00Z": time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC),
	}
	for in, want := range tests {
		got, ok := parsePostDate(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
	}

	_, ok := parsePostDate("yesterday")
	assert.False(t, ok)

	now, ok := parsePostDate(" ")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), now, time.Minute)
}

func TestArticleAdminCRUD(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()

	c, w := env.newContext(http.MethodPost, "/admin/api/articles", map[string]any{
		"title":     "Hello World",
		"post_date": "2024-05-02",
		"text":      "**hi**",
		"format":    "markdown",
		"tag_names": []string{"Go", "Web"},
		"active":    false,
	})
	env.api.CreateArticle(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := createdID(t, w, "article")

	c, w = env.newContext(http.MethodPost, "/admin/api/articles", map[string]any{"title": "Bad", "post_date": "soon"})
	env.api.CreateArticle(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = env.newContext(http.MethodPost, "/admin/api/articles", map[string]any{"title": "Hello World", "post_date": "2024-05-02"})
	env.api.CreateArticle(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = env.newContext(http.MethodPost, "/admin/api/articles", map[string]any{"title": "Orphan", "post_date": "2024-05-02", "author_id": 404})
	env.api.CreateArticle(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = env.newContext(http.MethodGet, "/admin/api/articles", nil)
	env.api.GetArticles(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["total"], "drafts are listed in the admin")

	c, w = env.newContext(http.MethodPut, "/admin/api/articles", map[string]any{
		"title":     "Hello World",
		"post_date": "2024-05-02",
		"tag_names": []string{"Go"},
	}, idParam(id))
	env.api.UpdateArticle(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	article, err := env.api.articles.Get(id)
	require.NoError(t, err)
	assert.True(t, article.Active)
	require.Len(t, article.Tags, 1)
	assert.Equal(t, "Go", article.Tags[0].Name)

	c, w = env.newContext(http.MethodDelete, "/admin/api/articles", nil, idParam(id))
	env.api.DeleteArticle(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = env.newContext(http.MethodGet, "/admin/api/articles", nil, idParam(id))
	env.api.GetArticle(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
