package introspect

import (
	"net/http"
	"testing"
	"time"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
	"github.com/fulldump/box"
)

type fakeSource struct {
	snap Snapshot
}

func (f fakeSource) Latest() Snapshot { return f.snap }

// TestAcceptance exercises the introspection routes end to end, in the
// biff.Alternative/apitest acceptance-test style.
func TestAcceptance(t *testing.T) {
	biff.Alternative("Status and matches against a fixed snapshot", func(a *biff.A) {
		source := fakeSource{snap: Snapshot{
			PassID:     "abc-123",
			PassNumber: 3,
			ScanType:   "exact",
			EntryCount: 3,
			Entries: []Entry{
				{Address: 0x1000, Value: "1"},
				{Address: 0x2000, Value: "2"},
				{Address: 0x3000, Value: "3"},
			},
			Timestamp: time.Unix(0, 0),
		}}

		b := Build(source, nil)
		api := apitest.NewWithHandler(box.Box2Http(b))
		defer api.Destroy()

		a.Alternative("GET /status", func(a *biff.A) {
			resp := api.Request("GET", "/status").Do()
			biff.AssertEqual(resp.StatusCode, http.StatusOK)

			body := resp.BodyJsonMap()
			biff.AssertEqual(body["pass_id"].(string), "abc-123")
			biff.AssertEqual(body["scan_type"].(string), "exact")
		})

		a.Alternative("GET /matches without a filter returns everything", func(a *biff.A) {
			resp := api.Request("GET", "/matches").Do()
			biff.AssertEqual(resp.StatusCode, http.StatusOK)

			matches := resp.BodyJson().([]interface{})
			biff.AssertEqual(len(matches), 3)
		})

		a.Alternative("GET /matches with a connor filter narrows the set", func(a *biff.A) {
			resp := api.Request("GET", "/matches").
				WithBodyJson(map[string]interface{}{
					"filter": map[string]interface{}{
						"address": map[string]interface{}{"$gt": float64(0x1000)},
					},
				}).Do()
			biff.AssertEqual(resp.StatusCode, http.StatusOK)

			matches := resp.BodyJson().([]interface{})
			biff.AssertEqual(len(matches), 2)
		})

		a.Alternative("GET /matches with an undecodable filter body is rejected", func(a *biff.A) {
			resp := api.Request("GET", "/matches").
				WithBodyString("not json").Do()
			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
		})
	})
}
