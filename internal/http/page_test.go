package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nebula-panel/static-delete/internal/buildinfo"
)

func TestSuccessPageLayout(t *testing.T) {
	body := string(successPage("/var/www/uploads/foo.txt"))
	if !strings.HasPrefix(body, successPageTop) {
		t.Fatalf("page does not start with the header: %q", body)
	}
	if !strings.Contains(body, "file: /var/www/uploads/foo.txt\r\n</center>") {
		t.Fatalf("page does not carry the path: %q", body)
	}
	if !strings.HasSuffix(body, "<hr><center>"+buildinfo.ServerIdent()+"</center>\r\n</body>\r\n</html>\r\n") {
		t.Fatalf("page does not end with the footer: %q", body)
	}
	want := len(successPageTop) + len(fileLabel) + len("/var/www/uploads/foo.txt") + len(pageTail())
	if len(body) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(body))
	}
}

func TestSuccessPageEscapesPath(t *testing.T) {
	body := string(successPage(`/var/www/<script>&"x".txt`))
	if strings.Contains(body, "<script>") {
		t.Fatalf("path was not escaped: %q", body)
	}
	if !strings.Contains(body, "file: /var/www/&lt;script&gt;&amp;&#34;x&#34;.txt") {
		t.Fatalf("unexpected escaping: %q", body)
	}
}

func TestWritePageHead(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/x", nil)
	if err := writePage(rr, req, http.StatusOK, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rr.Body.Len() != 0 || rr.Header().Get("Content-Length") != "5" {
		t.Fatalf("unexpected HEAD response: len=%d cl=%s", rr.Body.Len(), rr.Header().Get("Content-Length"))
	}
}
