package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-product-scraper/parser"
	"github.com/aluiziolira/go-product-scraper/scraper"
	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
)

const baseURL = "http://something.com/fruits/"

const listingPage = `<html><body><ul class="productLister">` +
	`<li><h3><a href="http://something.com/fruits/A/">Fruit A</a></h3><p class="pricePerUnit">£1.8/unit</p></li>` +
	`</ul></body></html>`

const detailPage = `<html><body><p class="productText">Tasty</p></body></html>`

func runCLI(t *testing.T, transport *httpmock.MockTransport, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr}
	if transport != nil {
		a.transport = transport
	}
	code := run(context.Background(), args, a)
	return code, stdout.String()
}

func TestRunPrintsReport(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", baseURL, httpmock.NewStringResponder(200, listingPage))
	transport.RegisterResponder("GET", "http://something.com/fruits/A/", httpmock.NewStringResponder(200, detailPage))

	code, out := runCLI(t, transport, baseURL)
	if code != 0 {
		t.Fatalf("exit code=%d, output=%q", code, out)
	}

	want := fmt.Sprintf(`{
    "results": [
        {
            "title": "Fruit A",
            "description": "Tasty",
            "size": %q,
            "unit_price": 1.8
        }
    ],
    "total": 1.8
}
`, parser.FormatSize(len(detailPage)))
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPrintsIntegralPricesAsIntegers(t *testing.T) {
	listing := `<html><body><ul class="productLister">` +
		`<li><h3>Fruit A</h3><p class="pricePerUnit">£2/unit</p></li>` +
		`</ul></body></html>`
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", baseURL, httpmock.NewStringResponder(200, listing))

	code, out := runCLI(t, transport, baseURL)
	if code != 0 {
		t.Fatalf("exit code=%d, output=%q", code, out)
	}
	want := `{
    "results": [
        {
            "title": "Fruit A",
            "unit_price": 2
        }
    ],
    "total": 2
}
`
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunEmptyListing(t *testing.T) {
	tests := []struct {
		name  string
		extra []string
	}{
		{name: "no export"},
		{name: "csv export", extra: []string{"--format", "csv"}},
		{name: "json export", extra: []string{"--format", "json"}},
		{name: "dual export", extra: []string{"--format", "dual"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", baseURL, httpmock.NewStringResponder(200, "<html><body>some content</body></html>"))

			args := []string{baseURL}
			if len(tt.extra) > 0 {
				args = append(args, "--output", filepath.Join(t.TempDir(), "products.out"))
				args = append(args, tt.extra...)
			}
			code, out := runCLI(t, transport, args...)
			if code != 0 {
				t.Fatalf("exit code=%d, output=%q", code, out)
			}

			var decoded map[string]interface{}
			if err := json.Unmarshal([]byte(out), &decoded); err != nil {
				t.Fatalf("decode output: %v", err)
			}
			want := map[string]interface{}{"results": []interface{}{}, "total": 0.0}
			if diff := cmp.Diff(want, decoded); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		register func(*httpmock.MockTransport)
		want     string
	}{
		{
			name: "listing server error",
			args: []string{"http://something.com/500/"},
			register: func(tr *httpmock.MockTransport) {
				tr.RegisterResponder("GET", "http://something.com/500/", httpmock.NewStringResponder(500, ""))
			},
			want: "Could not fetch body of main page\n",
		},
		{
			name: "unreachable listing",
			args: []string{baseURL},
			register: func(tr *httpmock.MockTransport) {
				tr.RegisterResponder("GET", baseURL, httpmock.NewErrorResponder(
					&net.DNSError{Err: "no such host", Name: "something.com", IsNotFound: true},
				))
			},
			want: "Could not connect to " + baseURL + "\n",
		},
		{
			name:     "missing scheme",
			args:     []string{"invalid.com"},
			register: func(*httpmock.MockTransport) {},
			want:     `invalid URL "invalid.com": no scheme supplied, perhaps you meant http://invalid.com?` + "\n",
		},
		{
			name:     "missing argument",
			args:     nil,
			register: func(*httpmock.MockTransport) {},
			want:     "accepts 1 arg(s), received 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			tt.register(transport)

			code, out := runCLI(t, transport, tt.args...)
			if code != 1 {
				t.Fatalf("exit code=%d, want 1", code)
			}
			if out != tt.want {
				t.Fatalf("output=%q, want %q", out, tt.want)
			}
		})
	}
}

func TestRunExportsCSV(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", baseURL, httpmock.NewStringResponder(200, listingPage))
	transport.RegisterResponder("GET", "http://something.com/fruits/A/", httpmock.NewStringResponder(200, detailPage))

	path := filepath.Join(t.TempDir(), "out", "products.csv")
	code, out := runCLI(t, transport, baseURL, "--output", path, "--format", "csv")
	if code != 0 {
		t.Fatalf("exit code=%d, output=%q", code, out)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	if rows[1][0] != "Fruit A" || rows[1][4] != "http://something.com/fruits/A/" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
	if !strings.HasPrefix(out, "{\n    \"results\"") {
		t.Fatalf("report should still be printed, got %q", out)
	}
}

func TestRunReportsOtherTransportFaults(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", baseURL, httpmock.NewErrorResponder(errors.New("stopped after 10 redirects")))

	code, out := runCLI(t, transport, baseURL)
	if code != 1 {
		t.Fatalf("exit code=%d, want 1", code)
	}
	if strings.HasPrefix(out, "Could not connect") || !strings.Contains(out, "stopped after 10 redirects") {
		t.Fatalf("output=%q, want the underlying error", out)
	}
}

func TestRunExportsDual(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", baseURL, httpmock.NewStringResponder(200, listingPage))
	transport.RegisterResponder("GET", "http://something.com/fruits/A/", httpmock.NewStringResponder(200, detailPage))

	dir := t.TempDir()
	code, out := runCLI(t, transport, baseURL, "--output", filepath.Join(dir, "products.csv"), "--format", "dual")
	if code != 0 {
		t.Fatalf("exit code=%d, output=%q", code, out)
	}

	if _, err := os.Stat(filepath.Join(dir, "products.csv")); err != nil {
		t.Fatalf("csv export missing: %v", err)
	}
	exported, err := os.ReadFile(filepath.Join(dir, "products.json"))
	if err != nil {
		t.Fatalf("json export missing: %v", err)
	}
	if diff := cmp.Diff(out, string(exported)); diff != "" {
		t.Fatalf("json export should match the printed report (-stdout +file):\n%s", diff)
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("wrapped: %w", scraper.ErrNoListingContent), want: "Could not fetch body of main page"},
		{err: fmt.Errorf("fetch listing: %w", scraper.ErrConnection{URL: "http://x.test/", Err: errors.New("refused")}), want: "Could not connect to http://x.test/"},
		{err: errors.New("something else"), want: "something else"},
	}

	for _, tt := range tests {
		if got := failureMessage(tt.err); got != tt.want {
			t.Errorf("failureMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
