package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	client := NewClient(context.Background(), "")
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	client.rest.BaseURL = base
	return client
}

func TestBranchesPaginationAndMemoization(t *testing.T) {
	calls := 0
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/tool/branches", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"name":"dev","commit":{"sha":"ccc"}}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octo/tool/branches?page=2>; rel="next"`, srv.URL))
		fmt.Fprint(w, `[{"name":"main","commit":{"sha":"aaa"}},{"name":"release","commit":{"sha":"bbb"}}]`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv)

	tips, err := client.Branches(context.Background(), "octo", "tool")
	if err != nil {
		t.Fatalf("Branches() failed: %v", err)
	}

	want := []RefTip{
		{Name: "main", SHA: "aaa"},
		{Name: "release", SHA: "bbb"},
		{Name: "dev", SHA: "ccc"},
	}
	if len(tips) != len(want) {
		t.Fatalf("expected %d branches, got %d", len(want), len(tips))
	}
	for i, tip := range tips {
		if tip != want[i] {
			t.Errorf("branch %d: expected %+v, got %+v", i, want[i], tip)
		}
	}
	if calls != 2 {
		t.Errorf("expected 2 API calls for 2 pages, got %d", calls)
	}

	// The second listing must come out of the memo, not the API.
	if _, err := client.Branches(context.Background(), "octo", "tool"); err != nil {
		t.Fatalf("memoized Branches() failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected memoized listing to skip the API, got %d calls", calls)
	}
}

func TestTags(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/tool/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"v1","commit":{"sha":"abc"}},{"name":"v1.2.3","commit":{"sha":"def"}}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv)

	tips, err := client.Tags(context.Background(), "octo", "tool")
	if err != nil {
		t.Fatalf("Tags() failed: %v", err)
	}
	if len(tips) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tips))
	}
	if tips[0].Name != "v1" || tips[0].SHA != "abc" {
		t.Errorf("unexpected first tag: %+v", tips[0])
	}
}

func TestCompareCommits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/tool/compare/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "aaa...bbb"):
			fmt.Fprint(w, `{"status":"behind"}`)
		case strings.HasSuffix(r.URL.Path, "bbb...aaa"):
			fmt.Fprint(w, `{"status":"ahead"}`)
		case strings.HasSuffix(r.URL.Path, "aaa...aaa"):
			fmt.Fprint(w, `{"status":"identical"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv)

	tests := []struct {
		base, head string
		expected   Comparison
		contains   bool
	}{
		{"aaa", "bbb", ComparisonBehind, true},
		{"bbb", "aaa", ComparisonAhead, false},
		{"aaa", "aaa", ComparisonIdentical, true},
		// 404 on the compare endpoint is "no shared history", not a failure.
		{"aaa", "fff", ComparisonUnrelated, false},
	}

	for _, test := range tests {
		cmp, err := client.CompareCommits(context.Background(), "octo", "tool", test.base, test.head)
		if err != nil {
			t.Fatalf("CompareCommits(%s, %s) failed: %v", test.base, test.head, err)
		}
		if cmp != test.expected {
			t.Errorf("CompareCommits(%s, %s): expected %v, got %v", test.base, test.head, test.expected, cmp)
		}
		if cmp.Contains() != test.contains {
			t.Errorf("Comparison(%v).Contains(): expected %v", cmp, test.contains)
		}
	}
}

func TestTreeFiltersBlobs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/tool/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") != "1" {
			t.Errorf("expected recursive tree listing, got query %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"tree":[
			{"path":".github","type":"tree"},
			{"path":".github/workflows/ci.yml","type":"blob"},
			{"path":"action.yml","type":"blob"}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv)

	paths, err := client.Tree(context.Background(), "octo", "tool", "main")
	if err != nil {
		t.Fatalf("Tree() failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 blobs, got %d: %v", len(paths), paths)
	}
	if paths[0] != ".github/workflows/ci.yml" || paths[1] != "action.yml" {
		t.Errorf("unexpected blob paths: %v", paths)
	}
}

func TestParseSlug(t *testing.T) {
	tests := []struct {
		slug      string
		owner     string
		repo      string
		ref       string
		expectErr bool
	}{
		{slug: "octo/tool", owner: "octo", repo: "tool"},
		{slug: "octo/tool@v3", owner: "octo", repo: "tool", ref: "v3"},
		{slug: "octo/tool@refs/heads/main", owner: "octo", repo: "tool", ref: "refs/heads/main"},
		{slug: "octo", expectErr: true},
		{slug: "octo/tool@", expectErr: true},
		{slug: "octo/tool/subdir", expectErr: true},
		{slug: "/tool", expectErr: true},
	}

	for _, test := range tests {
		owner, repo, ref, err := ParseSlug(test.slug)
		if test.expectErr {
			if err == nil {
				t.Errorf("ParseSlug(%q): expected error, got none", test.slug)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSlug(%q) failed: %v", test.slug, err)
			continue
		}
		if owner != test.owner || repo != test.repo || ref != test.ref {
			t.Errorf("ParseSlug(%q): expected (%s, %s, %s), got (%s, %s, %s)",
				test.slug, test.owner, test.repo, test.ref, owner, repo, ref)
		}
	}
}
