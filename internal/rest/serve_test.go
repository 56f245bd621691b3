// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mlnoga/flatfield/internal/raster"
)

func init() { gin.SetMode(gin.TestMode) }

func request(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// Changes into a fresh temporary directory holding in.png, and restores the working directory after the test
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	f := raster.NewImage(16, 8, 3, nil)
	for i := range f.Data {
		f.Data[i] = float32(60 + i%90)
	}
	if err := f.WriteFile("in.png"); err != nil {
		t.Fatal(err)
	}
}

func TestPing(t *testing.T) {
	logs := &bytes.Buffer{}
	w := request(t, NewRouter(zerolog.New(logs), 1), http.MethodGet, "/api/v1/ping", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Errorf("code=%d body=%s; want 200 pong", w.Code, w.Body.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
		t.Fatalf("access log %q: %s", logs.String(), err.Error())
	}
	if entry["path"] != "/api/v1/ping" || entry["status"] != float64(200) || entry["method"] != "GET" {
		t.Errorf("access log entry=%v; want GET /api/v1/ping 200", entry)
	}
}

func TestIndex(t *testing.T) {
	w := request(t, NewRouter(zerolog.Nop(), 1), http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/v1/correct") {
		t.Errorf("code=%d; want 200 with a form for /api/v1/correct", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type=%s; want text/html", ct)
	}
}

func TestCorrectBadRequests(t *testing.T) {
	r := NewRouter(zerolog.Nop(), 1)
	tcs := []struct {
		Name, Body string
	}{
		{"malformed", `{"input":`},
		{"missing output", `{"input":"in.png"}`},
		{"absolute input", `{"input":"/etc/passwd","output":"out.png"}`},
		{"parent output", `{"input":"in.png","output":"../out.png"}`},
		{"negative kernel", `{"input":"in.png","output":"out.png","kernelSize":-3}`},
		{"huge kernel", `{"input":"in.png","output":"out.png","kernelSize":2147483000}`},
		{"kernel above limit", `{"input":"in.png","output":"out.png","kernelSize":65536}`},
		{"unknown mode", `{"input":"in.png","output":"out.png","mode":"hsv"}`},
		{"unknown backend", `{"input":"in.png","output":"out.png","backend":"cuda"}`},
	}
	for _, tc := range tcs {
		w := request(t, r, http.MethodPost, "/api/v1/correct", tc.Body)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "error") {
			t.Errorf("%s: code=%d body=%s; want 400 with error", tc.Name, w.Code, w.Body.String())
		}
	}
}

func TestCorrect(t *testing.T) {
	chdirTemp(t)
	r := NewRouter(zerolog.Nop(), 2)
	w := request(t, r, http.MethodPost, "/api/v1/correct", `{"input":"in.png","output":"out.png","kernelSize":6,"mode":"lab"}`)
	body := w.Body.String()
	if w.Code != http.StatusOK || !strings.Contains(body, "Done.") {
		t.Fatalf("code=%d body=%s; want 200 Done.", w.Code, body)
	}
	if !strings.Contains(body, "7x7 gaussian") {
		t.Errorf("body=%s; want kernel size rounded up to 7", body)
	}
	if _, err := os.Stat("out.png"); err != nil {
		t.Errorf("stat(out.png): %s", err.Error())
	}
}

func TestCorrectMissingInput(t *testing.T) {
	chdirTemp(t)
	w := request(t, NewRouter(zerolog.Nop(), 1), http.MethodPost, "/api/v1/correct", `{"input":"missing.png","output":"out.png"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Error: ") {
		t.Errorf("code=%d body=%s; want streamed error", w.Code, w.Body.String())
	}
	if _, err := os.Stat("out.png"); !os.IsNotExist(err) {
		t.Errorf("stat(out.png) err=%v; want not exist", err)
	}
}

func TestPipeline(t *testing.T) {
	chdirTemp(t)
	r := NewRouter(zerolog.Nop(), 1)
	body := `{"type":"seq","active":true,"steps":[
		{"type":"load","active":true,"id":3,"fileName":"in.png"},
		{"type":"flatField","active":true,"kernelSize":9},
		{"type":"save","active":true,"filePattern":"out_%d.jpg"}]}`
	w := request(t, r, http.MethodPost, "/api/v1/pipeline", body)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Done.") {
		t.Fatalf("code=%d body=%s; want 200 Done.", w.Code, w.Body.String())
	}
	if _, err := os.Stat("out_3.jpg"); err != nil {
		t.Errorf("stat(out_3.jpg): %s", err.Error())
	}

	w = request(t, r, http.MethodPost, "/api/v1/pipeline", `{"type":"seq","steps":[{"type":"stack"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown operator code=%d; want 400", w.Code)
	}

	w = request(t, r, http.MethodPost, "/api/v1/pipeline", `{"type":"seq","steps":[
		{"type":"load","fileName":"in.png"},{"type":"flatField","kernelSize":2147483000}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("huge kernel code=%d; want 400", w.Code)
	}
}
