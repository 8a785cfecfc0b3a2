package sanitize

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "Trial", Clean("  <b>Trial</b> "))
	assert.Equal(t, "Smith & Sons", Clean("Smith & Sons"))
	assert.Equal(t, "", Clean("<script>alert(1)</script>"))
	assert.Equal(t, "", Clean("   "))
	assert.Equal(t, "a < b", Clean("a < b"))
}

func TestClean_EncodedMarkupIsStripped(t *testing.T) {
	assert.Equal(t, "Bold", Clean("&lt;b&gt;Bold&lt;/b&gt;"))
	assert.Equal(t, "", Clean("&lt;script&gt;alert(1)&lt;/script&gt;"))
	assert.Equal(t, "Bold", Clean("&amp;lt;b&amp;gt;Bold&amp;lt;/b&amp;gt;"))
	assert.NotContains(t, Clean("&lt;img src=x onerror=alert(1)&gt;ok"), "<")
}

func TestStruct(t *testing.T) {
	type item struct{ Description string }
	in := struct {
		Title string
		Items []item
		Ptr   *item
		n     string
	}{
		Title: " <i>Land dispute</i> ",
		Items: []item{{Description: "<p>Consultation</p>"}},
		Ptr:   &item{Description: " filing "},
		n:     " untouched ",
	}

	Struct(&in)

	assert.Equal(t, "Land dispute", in.Title)
	assert.Equal(t, "Consultation", in.Items[0].Description)
	assert.Equal(t, "filing", in.Ptr.Description)
	assert.Equal(t, " untouched ", in.n)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "short", Summary("short", 10))
	assert.Equal(t, "hello…", Summary("hello world again", 8))

	// No space to cut at: back off to a rune boundary.
	got := Summary("ééééé", 3)
	assert.Equal(t, "é…", got)
	assert.True(t, utf8.ValidString(got))
}
