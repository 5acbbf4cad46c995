package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest("GET", "/?"+query, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=10&offset=30", 10, 30},
		{"limit=0", DefaultLimit, 0},
		{"limit=-5&offset=-3", DefaultLimit, 0},
		{"limit=500", MaxLimit, 0},
		{"limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, c := range cases {
		p := paramsFor(c.query)
		if p.Limit != c.wantLimit || p.Offset != c.wantOffset {
			t.Errorf("query %q: got limit=%d offset=%d, want limit=%d offset=%d",
				c.query, p.Limit, p.Offset, c.wantLimit, c.wantOffset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2, 3}, 50, 20, 0)
	if !r.HasMore {
		t.Error("expected has_more when offset+limit < total")
	}

	last := NewResponse([]int{1}, 50, 20, 40)
	if last.HasMore {
		t.Error("expected has_more false on the final page")
	}
}
