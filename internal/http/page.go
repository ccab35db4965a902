package http

import (
	"html"
	"net/http"
	"strconv"

	"github.com/nebula-panel/static-delete/internal/buildinfo"
)

const (
	successPageTop = "<html>\r\n" +
		"<head><title>Successfully deleted</title></head>\r\n" +
		"<body bgcolor=\"white\">\r\n" +
		"<center><h1>Successfully deleted</h1>\r\n"
	fileLabel = "file: "
)

func pageTail() string {
	return "\r\n</center>\r\n" +
		"<hr><center>" + buildinfo.ServerIdent() + "</center>\r\n" +
		"</body>\r\n" +
		"</html>\r\n"
}

// successPage renders the confirmation body for path.
func successPage(path string) []byte {
	escaped := html.EscapeString(path)
	tail := pageTail()
	buf := make([]byte, 0, len(successPageTop)+len(fileLabel)+len(escaped)+len(tail))
	buf = append(buf, successPageTop...)
	buf = append(buf, fileLabel...)
	buf = append(buf, escaped...)
	buf = append(buf, tail...)
	return buf
}

// writePage sends body with an exact Content-Length. HEAD requests get the
// headers only.
func writePage(w http.ResponseWriter, r *http.Request, status int, body []byte) error {
	h := w.Header()
	h.Set("Content-Type", "text/html")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return nil
	}
	_, err := w.Write(body)
	return err
}
