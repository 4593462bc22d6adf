// Package introspect is the optional read-only HTTP introspection
// layer: a status endpoint and a connor-filtered query over the most
// recent pass's matches. It is not part of the core (spec.md treats the
// command surface as an external collaborator) — it exists purely so an
// operator or another tool can watch a long-running scan from outside
// the interactive CLI.
//
// Routing follows api.Build's box.NewBox() wiring in the teacher;
// filtering follows apicollectionv1's connor.Match usage in
// traverseFullscan. Response encoding uses go-json-experiment/json, as
// the teacher itself does in cmd/streamtest/jsonv2_test.go (apicollectionv1
// only uses the stdlib encoding/json and encoding/json/v2 packages).
package introspect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/SierraSoftworks/connor"
	"github.com/fulldump/box"
	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tidwall/pretty"
)

// Entry is the JSON projection of one scan_result match exposed over
// the introspection API, independent of the engine's scalar type T.
type Entry struct {
	Address uint64 `json:"address"`
	Value   string `json:"value"`
}

// Snapshot is a read-only view the engine publishes after each pass,
// for Source to return to the HTTP layer. The engine never imports this
// package; a cmd/memscan binary is what bridges the engine into a Source
// whose Latest builds a Snapshot on each request.
type Snapshot struct {
	PassID     string    `json:"pass_id"`
	PassNumber int       `json:"pass_number"`
	ScanType   string    `json:"scan_type"`
	EntryCount int       `json:"entry_count"`
	Entries    []Entry   `json:"entries"`
	Timestamp  time.Time `json:"timestamp"`
}

// Source is anything that can hand back the latest Snapshot. Kept as an
// interface, not a concrete dependency on engine.Engine, so introspect
// stays agnostic to the engine's scalar type parameter.
type Source interface {
	Latest() Snapshot
}

// Build wires the introspection routes onto a fresh box, grounded on
// api.Build / api.AccessLog in the teacher.
func Build(source Source, logger *log.Logger) *box.B {
	b := box.NewBox()
	b.WithInterceptors(
		accessLog(logger),
		recoverFromPanic,
	)

	b.Resource("/status").WithActions(
		box.Get(statusHandler(source)).WithName("status"),
	)
	b.Resource("/matches").WithActions(
		box.Get(matchesHandler(source)).WithName("matches"),
	)

	return b
}

func statusHandler(source Source) box.H {
	return func(ctx context.Context) {
		snap := source.Latest()
		w := box.GetResponse(ctx)
		w.Header().Set("Content-Type", "application/json")
		out, _ := jsonv2.Marshal(snap)
		w.Write(pretty.Pretty(out))
	}
}

// matchesHandler accepts an optional JSON body {"filter": {...}} using
// connor's query-document syntax (e.g. {"address": {"$gt": 4096}}),
// matched against each entry's JSON projection — the same pattern
// apicollectionv1.traverseFullscan uses against row documents.
func matchesHandler(source Source) box.H {
	return func(ctx context.Context) {
		r := box.GetRequest(ctx)
		w := box.GetResponse(ctx)

		params := struct {
			Filter map[string]interface{} `json:"filter"`
		}{}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, "decode filter: %s", err)
				return
			}
		}

		snap := source.Latest()
		hasFilter := len(params.Filter) > 0

		matched := make([]Entry, 0, len(snap.Entries))
		for _, e := range snap.Entries {
			if hasFilter {
				// connor compares against whatever numeric type the JSON
				// filter decoded as (float64); project address the same
				// way rather than leaving it a uint64.
				doc := map[string]interface{}{"address": float64(e.Address), "value": e.Value}
				ok, err := connor.Match(params.Filter, doc)
				if err != nil {
					w.WriteHeader(http.StatusBadRequest)
					fmt.Fprintf(w, "match: %s", err)
					return
				}
				if !ok {
					continue
				}
			}
			matched = append(matched, e)
		}

		w.Header().Set("Content-Type", "application/json")
		out, _ := jsonv2.Marshal(matched)
		w.Write(pretty.Pretty(out))
	}
}

func recoverFromPanic(next box.H) box.H {
	return func(ctx context.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Println("introspect: recovered:", err)
			}
		}()
		next(ctx)
	}
}

func accessLog(l *log.Logger) box.I {
	if l == nil {
		l = log.Default()
	}
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			r := box.GetRequest(ctx)
			start := time.Now()
			defer func() {
				l.Println(start.UTC().Format(time.RFC3339Nano), remoteAddr(r), r.Method, r.URL.String(), time.Since(start))
			}()
			next(ctx)
		}
	}
}

func remoteAddr(r *http.Request) string {
	xorigin := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-For"), ",")[0])
	if xorigin != "" {
		return xorigin
	}
	if i := strings.LastIndex(r.RemoteAddr, ":"); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
