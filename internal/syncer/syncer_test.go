package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/blackwell-systems/catalog-sync/internal/konnect"
	"github.com/blackwell-systems/catalog-sync/internal/mapping"
	"github.com/blackwell-systems/catalog-sync/internal/port"
	"github.com/blackwell-systems/catalog-sync/internal/transform"
)

// --- Fake Source ---
type fakeSource struct {
	data   map[string]string
	failed map[string]bool
	calls  []string
}

func (f *fakeSource) FetchEntities(_ context.Context, typ string) konnect.FetchResult {
	f.calls = append(f.calls, typ)
	result := konnect.FetchResult{Type: typ, Entities: []transform.RawEntity{}}
	if f.failed[typ] {
		result.Err = fmt.Errorf("failed to fetch %s: %w", typ, konnect.ErrUnexpectedStatus)
		return result
	}
	if raw, ok := f.data[typ]; ok {
		if err := json.Unmarshal([]byte(raw), &result.Entities); err != nil {
			panic(err)
		}
	}
	return result
}

// --- Fake Target ---
type upsertCall struct {
	Blueprint string
	Entities  []transform.TargetEntity
	Token     string
}

type fakeTarget struct {
	authErr  error
	reject   map[string]bool
	upserts  []upsertCall
	authRuns int
}

func (f *fakeTarget) Authenticate(context.Context) (string, error) {
	f.authRuns++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "tok", nil
}

func (f *fakeTarget) Upsert(_ context.Context, blueprint string, entities []transform.TargetEntity, token string) []port.UpsertResult {
	f.upserts = append(f.upserts, upsertCall{Blueprint: blueprint, Entities: entities, Token: token})
	results := make([]port.UpsertResult, 0, len(entities))
	for _, e := range entities {
		r := port.UpsertResult{Blueprint: blueprint, Identifier: e.Identifier, StatusCode: http.StatusCreated}
		if f.reject[e.Identifier] {
			r.StatusCode = http.StatusBadRequest
			r.Err = errors.New("rejected")
		}
		results = append(results, r)
	}
	return results
}

func sourceData() map[string]string {
	return map[string]string{
		"service":             `[{"id":"svc:abc","name":"orders","attributes":{"tags":["Integrations"]}},{"id":"svc:def","name":"billing","attributes":{"tags":[]}}]`,
		"api_product":         `[{"name":"Payments","attributes":{"visibility":"public"}}]`,
		"api_product_version": `[{"id":"v1","name":"1.0.0","labels":{"service":"billing"}}]`,
		"route":               `[{"name":"orders-route","attributes":{"paths":[],"service_id":"abc"}}]`,
		"consumer":            `[{"id":"c1","attributes":{"username":"bob"}}]`,
	}
}

func TestRunOrder(t *testing.T) {
	src := &fakeSource{data: sourceData()}
	tgt := &fakeTarget{}

	report, err := New(Options{
		Source:   src,
		Target:   tgt,
		Registry: transform.NewRegistry("cp-1"),
		Mapping:  mapping.Default(),
		Logger:   testr.New(t),
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, tgt.authRuns)
	assert.Equal(t, []string{"service", "api_product", "api_product_version", "route", "consumer"}, src.calls)

	var blueprints []string
	for _, u := range tgt.upserts {
		blueprints = append(blueprints, u.Blueprint)
		assert.Equal(t, "tok", u.Token)
	}
	assert.Equal(t, []string{"kongApi", "kongApiProduct", "kongApiVersion", "kongApiRoute", "consumer"}, blueprints)

	services := tgt.upserts[0].Entities
	require.Len(t, services, 2)
	assert.Equal(t, "abc", services[0].Identifier)
	assert.Equal(t, map[string]any{"product": "Integrations"}, services[0].Relations)
	assert.Empty(t, services[1].Relations)

	version := tgt.upserts[2].Entities[0]
	assert.Equal(t, "svc:def", version.Relations["api"])

	consumer := tgt.upserts[4].Entities[0]
	require.NotNil(t, consumer.Title)
	assert.Equal(t, "bob", *consumer.Title)
	assert.Equal(t, "cp-1", consumer.Relations["control_plane_id"])

	assert.NoError(t, report.Err())
	assert.Equal(t, Totals{Fetched: 6, Pushed: 6}, report.Totals())
	assert.NotEmpty(t, report.RunID)
}

func TestRunAuthFailureAborts(t *testing.T) {
	src := &fakeSource{data: sourceData()}
	tgt := &fakeTarget{authErr: fmt.Errorf("%w: 401", port.ErrAuthFailed)}

	report, err := New(Options{Source: src, Target: tgt, Logger: logr.Discard()}).Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrAuthFailed))
	assert.Nil(t, report)
	assert.Empty(t, src.calls)
	assert.Empty(t, tgt.upserts)
}

func TestRunPartialFailures(t *testing.T) {
	data := sourceData()
	data["route"] = `[{"attributes":{"paths":["/v1"]}},{"name":"r2"}]`
	src := &fakeSource{data: data, failed: map[string]bool{"api_product": true}}
	tgt := &fakeTarget{reject: map[string]bool{"abc": true}}

	var seen []string
	report, err := New(Options{
		Source:   src,
		Target:   tgt,
		Registry: transform.NewRegistry("cp-1"),
		Logger:   logr.Discard(),
		OnType:   func(tr TypeReport) { seen = append(seen, tr.Type) },
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"service", "api_product", "api_product_version", "route", "consumer"}, seen)
	assert.Len(t, tgt.upserts, 5)

	byType := map[string]TypeReport{}
	for _, tr := range report.Types {
		byType[tr.Type] = tr
	}

	assert.Equal(t, 1, byType["service"].Failed)
	assert.Equal(t, 1, byType["service"].Pushed)
	assert.True(t, errors.Is(byType["api_product"].FetchErr, konnect.ErrUnexpectedStatus))
	assert.Equal(t, 0, byType["api_product"].Fetched)
	assert.Equal(t, 1, byType["route"].Skipped)
	assert.Equal(t, 1, byType["route"].Pushed)
	assert.Equal(t, 1, byType["consumer"].Pushed)

	err = report.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, konnect.ErrUnexpectedStatus))
	assert.True(t, errors.Is(err, transform.ErrNoIdentifier))
	assert.Contains(t, err.Error(), "kongApi/abc")
}

func TestRunWithoutServiceInMapping(t *testing.T) {
	src := &fakeSource{data: sourceData()}
	tgt := &fakeTarget{}

	_, err := New(Options{
		Source:  src,
		Target:  tgt,
		Mapping: mapping.Mapping{{Type: "api_product_version", Blueprint: "kongApiVersion"}},
		Logger:  logr.Discard(),
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"service", "api_product_version"}, src.calls)
	require.Len(t, tgt.upserts, 1)
	assert.Equal(t, "svc:def", tgt.upserts[0].Entities[0].Relations["api"])
}

func TestRunUnknownTypeIsShaped(t *testing.T) {
	data := sourceData()
	data["plugin"] = `[{"id":"p1","name":"rate-limiting","attributes":{"enabled":true}}]`
	src := &fakeSource{data: data}
	tgt := &fakeTarget{}

	_, err := New(Options{
		Source:  src,
		Target:  tgt,
		Mapping: mapping.Mapping{{Type: "plugin", Blueprint: "kongPlugin"}},
		Logger:  logr.Discard(),
	}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, tgt.upserts, 1)
	got := tgt.upserts[0].Entities[0]
	assert.Equal(t, "p1", got.Identifier)
	assert.Equal(t, map[string]any{"enabled": true}, got.Properties)
}

func TestRunDryRun(t *testing.T) {
	src := &fakeSource{data: sourceData()}
	tgt := &fakeTarget{authErr: port.ErrAuthFailed}

	report, err := New(Options{Source: src, Target: tgt, Logger: logr.Discard(), DryRun: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, tgt.authRuns)
	assert.Empty(t, tgt.upserts)
	assert.True(t, report.DryRun)
	require.Len(t, report.Types, 5)
	assert.Len(t, report.Types[0].Entities, 2)
}

func TestRunIsIdempotent(t *testing.T) {
	run := func() []upsertCall {
		tgt := &fakeTarget{}
		_, err := New(Options{
			Source:   &fakeSource{data: sourceData()},
			Target:   tgt,
			Registry: transform.NewRegistry("cp-1"),
			Logger:   logr.Discard(),
		}).Run(context.Background())
		require.NoError(t, err)
		return tgt.upserts
	}

	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("second run pushed different documents (-first +second):\n%s", diff)
	}
}

// End to end through the real HTTP clients.
func TestRunEndToEnd(t *testing.T) {
	var upserted []map[string]any
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/access_token":
			w.Write([]byte(`{"accessToken":"tok"}`))
		case strings.HasPrefix(r.URL.Path, "/blueprints/"):
			var doc map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
			doc["_blueprint"] = strings.Split(r.URL.Path, "/")[2]
			upserted = append(upserted, doc)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer catalog.Close()

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "type:service" {
			w.Write([]byte(`{"data":[{"id":"svc:abc","name":"orders","attributes":{"tags":["Integrations"]}}]}`))
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer search.Close()

	_, err := New(Options{
		Source:   konnect.NewClient(search.URL, "pat", search.Client(), logr.Discard()),
		Target:   port.NewClient(catalog.URL, "id", "secret", catalog.Client(), logr.Discard()),
		Registry: transform.NewRegistry("cp-1"),
		Logger:   logr.Discard(),
	}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, upserted, 1)
	assert.Equal(t, "kongApi", upserted[0]["_blueprint"])
	assert.Equal(t, "abc", upserted[0]["identifier"])
	assert.Equal(t, "orders", upserted[0]["title"])
	assert.Equal(t, map[string]any{"product": "Integrations"}, upserted[0]["relations"])
}

func TestRunEndToEndMalformedRecord(t *testing.T) {
	var upserted []map[string]any
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/access_token" {
			w.Write([]byte(`{"accessToken":"tok"}`))
			return
		}
		var doc map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		upserted = append(upserted, doc)
		w.WriteHeader(http.StatusCreated)
	}))
	defer catalog.Close()

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "type:service":
			w.Write([]byte(`{"data":[
				{"id":"svc:1","name":"orders","attributes":{"port":"8443"}},
				{"id":"svc:2","name":"billing","attributes":{"enabled":"yes"}}
			]}`))
		case "type:api_product_version":
			w.Write([]byte(`{"data":[{"id":"v1","name":"1.0.0","labels":{"service":"orders","rev":2}}]}`))
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	}))
	defer search.Close()

	report, err := New(Options{
		Source:   konnect.NewClient(search.URL, "pat", search.Client(), logr.Discard()),
		Target:   port.NewClient(catalog.URL, "id", "secret", catalog.Client(), logr.Discard()),
		Registry: transform.NewRegistry("cp-1"),
		Logger:   logr.Discard(),
	}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, upserted, 2)
	assert.Equal(t, "1", upserted[0]["identifier"])
	assert.Equal(t, "v1", upserted[1]["identifier"])
	assert.Equal(t, "svc:1", upserted[1]["relations"].(map[string]any)["api"])

	services := report.Types[0]
	assert.Equal(t, 2, services.Fetched)
	assert.Equal(t, 1, services.Pushed)
	assert.Equal(t, 1, services.Skipped)
	assert.True(t, errors.Is(report.Err(), konnect.ErrMalformedRecord))
}

func TestRunEndToEndAuthRejected(t *testing.T) {
	searched := false
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searched = true
		w.Write([]byte(`{"data":[]}`))
	}))
	defer search.Close()

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/access_token" {
			t.Errorf("unexpected catalog call %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer catalog.Close()

	_, err := New(Options{
		Source: konnect.NewClient(search.URL, "pat", search.Client(), logr.Discard()),
		Target: port.NewClient(catalog.URL, "id", "bad", catalog.Client(), logr.Discard()),
		Logger: logr.Discard(),
	}).Run(context.Background())

	assert.True(t, errors.Is(err, port.ErrAuthFailed))
	assert.False(t, searched)
}

func TestRunRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	src := &fakeSource{data: sourceData(), failed: map[string]bool{"route": true}}
	_, err := New(Options{
		Source: src,
		Target: &fakeTarget{},
		Logger: logr.Discard(),
		Tracer: tp.Tracer("test"),
	}).Run(context.Background())
	require.NoError(t, err)

	spans := recorder.Ended()
	run := spans[len(spans)-1]
	require.Equal(t, "sync.run", run.Name())

	var typeSpans []string
	for _, span := range spans[:len(spans)-1] {
		require.Equal(t, "sync.type", span.Name())
		assert.Equal(t, run.SpanContext().SpanID(), span.Parent().SpanID())
		for _, kv := range span.Attributes() {
			if kv.Key == "sync.type" {
				typeSpans = append(typeSpans, kv.Value.AsString())
			}
		}
		assertRouteStatus(t, span)
	}

	assert.Equal(t, []string{"service", "api_product", "api_product_version", "route", "consumer"}, typeSpans)
}

func assertRouteStatus(t *testing.T, span sdktrace.ReadOnlySpan) {
	t.Helper()
	for _, kv := range span.Attributes() {
		if kv.Key == "sync.type" && kv.Value.AsString() == "route" {
			assert.Equal(t, codes.Error, span.Status().Code)
		}
	}
}

func TestRunAuthFailureMarksSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	_, err := New(Options{
		Source: &fakeSource{},
		Target: &fakeTarget{authErr: port.ErrAuthFailed},
		Logger: logr.Discard(),
		Tracer: tp.Tracer("test"),
	}).Run(context.Background())
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.run", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
