package listing

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, target string, fn func(c *fiber.Ctx) any) map[string]any {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.JSON(fn(c)) })

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		query      string
		page, size float64
	}{
		{"/", 1, 10},
		{"/?page=3&pageSize=25", 3, 25},
		{"/?page=-1&pageSize=500", 1, 10},
		{"/?page=abc&pageSize=0", 1, 10},
	}
	for _, tc := range cases {
		out := probe(t, tc.query, func(c *fiber.Ctx) any {
			p, s := ParsePage(c)
			return fiber.Map{"page": p, "size": s}
		})
		assert.Equal(t, tc.page, out["page"], tc.query)
		assert.Equal(t, tc.size, out["size"], tc.query)
	}
}

func TestSortOrder_AllowList(t *testing.T) {
	s := Sort{
		Columns: map[string]string{"title": "cases.title", "created_at": "cases.created_at"},
		Default: "created_at",
		Desc:    true,
	}

	out := probe(t, "/?sort=title&order=asc", func(c *fiber.Ctx) any {
		o := s.Order(c)
		return fiber.Map{"col": o.Column.Name, "desc": o.Desc}
	})
	assert.Equal(t, "cases.title", out["col"])
	assert.Equal(t, false, out["desc"])

	// Injection attempts never reach the ORDER BY.
	out = probe(t, "/?sort=title;DROP%20TABLE%20cases", func(c *fiber.Ctx) any {
		o := s.Order(c)
		return fiber.Map{"col": o.Column.Name, "desc": o.Desc}
	})
	assert.Equal(t, "cases.created_at", out["col"])
	assert.Equal(t, true, out["desc"])
}

func TestNewPage(t *testing.T) {
	p := NewPage[int](2, 10, 21, nil)
	assert.Equal(t, 3, p.Pages)
	assert.NotNil(t, p.Items)
	assert.Len(t, p.Items, 0)
}

func TestLike(t *testing.T) {
	assert.Equal(t, `%50\% off%`, Like("50% OFF"))
	assert.Equal(t, `%a\_b%`, Like("a_b"))
}
