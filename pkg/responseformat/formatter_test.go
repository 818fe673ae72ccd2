package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type feedEntry struct {
	Name    string `json:"name"`
	Archive bool   `json:"archive"`
}

func TestWriteResponse(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		accept   string
		wantType string
	}{
		{"default json", "/feeds", "", ContentTypeJSON},
		{"query msgpack", "/feeds?format=msgpack", "", ContentTypeMsgPack},
		{"accept msgpack", "/feeds", ContentTypeMsgPack, ContentTypeMsgPack},
		{"unknown format", "/feeds?format=xml", "", ContentTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()

			in := []feedEntry{{Name: "brasil", Archive: true}}
			if err := NewFormatter().WriteResponse(rec, req, in); err != nil {
				t.Fatalf("WriteResponse() error: %v", err)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Fatalf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header")
			}

			var out []map[string]any
			var err error
			if tt.wantType == ContentTypeMsgPack {
				err = msgpack.Unmarshal(rec.Body.Bytes(), &out)
			} else {
				err = json.Unmarshal(rec.Body.Bytes(), &out)
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(out) != 1 || out[0]["name"] != "brasil" || out[0]["archive"] != true {
				t.Errorf("decoded = %v", out)
			}
		})
	}
}
