package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialstack/callbridge/internal/filemaker"
)

// fakeDataAPI emulates just enough of the FileMaker Data API for the full
// webhook flow: sessions, _find, create and edit.
type fakeDataAPI struct {
	mu      sync.Mutex
	nextID  int
	records map[string]map[string]string // recordId -> fieldData
	logins  int
	creates int
	edits   int
}

func newFakeDataAPI() *fakeDataAPI {
	return &fakeDataAPI{nextID: 1, records: make(map[string]map[string]string)}
}

func (f *fakeDataAPI) handler() http.Handler {
	mux := http.NewServeMux()
	prefix := "/fmi/data/v1/databases/calls"

	mux.HandleFunc(prefix+"/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		fmt.Fprint(w, `{"response":{"token":"session-token"},"messages":[{"code":"0","message":"OK"}]}`)
	})

	mux.HandleFunc(prefix+"/sessions/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{},"messages":[{"code":"0","message":"OK"}]}`)
	})

	mux.HandleFunc(prefix+"/layouts/CallLog/_find", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query []map[string]string `json:"query"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		callID := strings.TrimPrefix(body.Query[0]["CallID"], "==")

		f.mu.Lock()
		defer f.mu.Unlock()
		for id, fields := range f.records {
			if fields["CallID"] == callID {
				fmt.Fprintf(w, `{"response":{"data":[{"recordId":"%s","modId":"1"}]},"messages":[{"code":"0","message":"OK"}]}`, id)
				return
			}
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"response":{},"messages":[{"code":"401","message":"No records match the request"}]}`)
	})

	mux.HandleFunc(prefix+"/layouts/CallLog/records", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FieldData map[string]string `json:"fieldData"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		id := strconv.Itoa(f.nextID)
		f.nextID++
		f.records[id] = body.FieldData
		f.creates++
		f.mu.Unlock()

		fmt.Fprintf(w, `{"response":{"recordId":"%s","modId":"0"},"messages":[{"code":"0","message":"OK"}]}`, id)
	})

	mux.HandleFunc(prefix+"/layouts/CallLog/records/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FieldData map[string]string `json:"fieldData"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		id := strings.TrimPrefix(r.URL.Path, prefix+"/layouts/CallLog/records/")

		f.mu.Lock()
		f.records[id] = body.FieldData
		f.edits++
		f.mu.Unlock()

		fmt.Fprint(w, `{"response":{"modId":"2"},"messages":[{"code":"0","message":"OK"}]}`)
	})

	return mux
}

func TestDuplicateDeliveryCreatesOneRecord(t *testing.T) {
	api := newFakeDataAPI()
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := filemaker.NewClient(filemaker.ClientConfig{
		Host:     srv.URL,
		Database: "calls",
		Layout:   "CallLog",
		Username: "api",
		Password: "secret",
		Timeout:  5 * time.Second,
	}, zerolog.Nop())
	session := filemaker.NewSession(client, time.Minute, zerolog.Nop())
	recorder := filemaker.NewRecorder(client, session, zerolog.Nop())
	h := NewHandler(testSecret, recorder, session, false, zerolog.Nop())

	body := completedEventBody("dup-77")

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, signedRequest(t, body))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected status 200, got %d", i+1, rec.Code)
		}
	}

	if api.creates != 1 {
		t.Errorf("expected exactly 1 create, got %d", api.creates)
	}
	if api.edits != 1 {
		t.Errorf("expected exactly 1 update, got %d", api.edits)
	}
	if len(api.records) != 1 {
		t.Errorf("expected one logical record, got %d", len(api.records))
	}
	if api.logins != 1 {
		t.Errorf("expected a single login across both deliveries, got %d", api.logins)
	}

	for _, fields := range api.records {
		if fields["CallID"] != "dup-77" {
			t.Errorf("expected CallID dup-77, got %s", fields["CallID"])
		}
		if fields["Duration"] != "00:01:05" {
			t.Errorf("expected Duration 00:01:05, got %s", fields["Duration"])
		}
	}
}
