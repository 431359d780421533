package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"slot-lobby/internal/gateway"
	"slot-lobby/internal/storage"
)

type fakeRequester struct {
	mu   sync.Mutex
	reqs []gateway.Request
	resp *gateway.Response
	err  error
}

func (f *fakeRequester) Do(_ context.Context, req gateway.Request) (*gateway.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

type expiryRecorder struct{ reasons []string }

func (e *expiryRecorder) HandleExpiry(reason string) { e.reasons = append(e.reasons, reason) }

func newService(rq *fakeRequester, token string) (*Service, *expiryRecorder) {
	session := storage.NewSessionStore()
	if token != "" {
		session.Set(storage.KeyToken, token)
	}
	exp := &expiryRecorder{}
	return NewService(rq, session, exp), exp
}

func TestFetchMapsItemsAndDefaults(t *testing.T) {
	rq := &fakeRequester{resp: &gateway.Response{Status: 200, Body: []byte(`{
		"status":"RS_OK",
		"history":[
			{"roundId":1001,"betAmount":10,"won":25,"isFreeSpin":true,"result":[["A","K"]],"endTime":1700000000000,"tableId":"7"},
			{"roundId":"r-2","betAmount":5,"won":0,"endTime":1700000001000}
		],
		"page":1,"pageSize":10,"totalRecords":42,"totalPages":5
	}`)}}
	svc, _ := newService(rq, "abc")

	page, err := svc.Fetch(context.Background(), Filters{TableID: "9"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	req := rq.reqs[0]
	if req.Method != http.MethodPost || req.Path != "/unity/get-game-history" || req.Bearer != "abc" {
		t.Fatalf("unexpected request %+v", req)
	}
	raw, _ := json.Marshal(req.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	if body["page"] != float64(1) || body["pageSize"] != float64(10) || body["tableId"] != "9" {
		t.Fatalf("unexpected body %s", raw)
	}

	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	first, second := page.Items[0], page.Items[1]
	if first.RoundID != "1001" || first.TableID != "7" || first.GameStatus != "closed" || !first.IsFreeSpin {
		t.Fatalf("unexpected first item %+v", first)
	}
	if first.CreatedAt != 1700000000000 || first.UpdatedAt != first.CreatedAt {
		t.Fatalf("expected timestamps from endTime, got %+v", first)
	}
	if second.RoundID != "r-2" || second.TableID != "9" || second.GameStatus != "open" {
		t.Fatalf("unexpected second item %+v", second)
	}
	if page.Pagination.Total != 42 || page.Pagination.TotalPages != 5 {
		t.Fatalf("unexpected pagination %+v", page.Pagination)
	}
}

func TestFetchWithoutTokenReturnsNil(t *testing.T) {
	rq := &fakeRequester{}
	svc, _ := newService(rq, "")
	page, err := svc.Fetch(context.Background(), Filters{})
	if page != nil || err != nil {
		t.Fatalf("expected nil result, got %+v %v", page, err)
	}
	if len(rq.reqs) != 0 {
		t.Fatal("expected no request")
	}
}

func TestFetchUnauthorizedExpiresSession(t *testing.T) {
	rq := &fakeRequester{err: &gateway.StatusError{Status: http.StatusUnauthorized}}
	svc, exp := newService(rq, "abc")
	page, err := svc.Fetch(context.Background(), Filters{})
	if page != nil || err != nil {
		t.Fatalf("expected nil result, got %+v %v", page, err)
	}
	if len(exp.reasons) != 1 {
		t.Fatalf("expected expiry, got %v", exp.reasons)
	}
}

func TestFetchOtherFailures(t *testing.T) {
	rq := &fakeRequester{err: &gateway.StatusError{Status: http.StatusBadGateway}}
	svc, exp := newService(rq, "abc")
	if _, err := svc.Fetch(context.Background(), Filters{}); err == nil {
		t.Fatal("expected error")
	}
	if len(exp.reasons) != 0 {
		t.Fatal("expected no expiry for 502")
	}

	rq = &fakeRequester{resp: &gateway.Response{Status: 200, Body: []byte(`{"status":"RS_ERROR"}`)}}
	svc, _ = newService(rq, "abc")
	if _, err := svc.Fetch(context.Background(), Filters{}); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}
