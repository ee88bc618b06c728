package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/Mengjie-s/CA2UN/internal/model"
	"github.com/Mengjie-s/CA2UN/internal/sci"
	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

func testModel(t *testing.T) *model.Model {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Bands = 2
	cfg.Step = 1
	cfg.Dim = 4
	cfg.WindowSize = 4
	cfg.Stage = 1
	m, err := model.New(cfg)
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	m.InitWeights(1)
	return m
}

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	server := NewServer(testModel(t), NewReconstructionStore(0), nil)
	e := echo.New()
	server.Register(e)
	return e
}

func testRequestBody(t *testing.T) []byte {
	t.Helper()
	cube := tensor.New(1, 2, 16, 16)
	for i := range cube.Data {
		cube.Data[i] = float32(i%9) / 9
	}
	phi := tensor.New(1, 2, 16, 17)
	for i := range phi.Data {
		phi.Data[i] = 0.5 + float32(i%4)/8
	}
	y := sci.Synthesize(cube, phi, 1)

	body, err := json.Marshal(ReconstructionRequest{
		Measurement: TensorPayload{Shape: y.Shape(), Data: y.Data},
		Mask:        TensorPayload{Shape: phi.Shape(), Data: phi.Data},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return body
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestReconstructionLifecycle(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/reconstructions", testRequestBody(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var created ReconstructionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.Object != "reconstruction" || created.Status != "completed" {
		t.Fatalf("unexpected response envelope: %+v", created)
	}
	wantShape := []int{1, 2, 16, 16}
	for i, d := range wantShape {
		if created.Cube.Shape[i] != d {
			t.Fatalf("cube shape %v, want %v", created.Cube.Shape, wantShape)
		}
	}
	if len(created.Stages) != 0 {
		t.Fatalf("stages returned without return_stages: %d", len(created.Stages))
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/reconstructions/"+created.ID, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", getRec.Code)
	}
	var fetched ReconstructionResponse
	if err := json.Unmarshal(getRec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetched: %v", err)
	}
	if fetched.ID != created.ID {
		t.Fatalf("fetched id %q, want %q", fetched.ID, created.ID)
	}
}

func TestReconstructionReturnStages(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)

	var req ReconstructionRequest
	if err := json.Unmarshal(testRequestBody(t), &req); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	req.ReturnStages = true
	body, _ := json.Marshal(req)

	rec := doJSON(t, e, http.MethodPost, "/v1/reconstructions", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var created ReconstructionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(created.Stages) != 1 {
		t.Fatalf("expected 1 stage estimate, got %d", len(created.Stages))
	}
}

func TestReconstructionBadRequests(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)

	cases := []struct {
		name string
		body []byte
	}{
		{"invalid json", []byte("{not json")},
		{"missing tensors", []byte(`{}`)},
		{"shape mismatch", func() []byte {
			b, _ := json.Marshal(ReconstructionRequest{
				Measurement: TensorPayload{Shape: []int{1, 1, 2, 2}, Data: []float32{1}},
				Mask:        TensorPayload{Shape: []int{1, 2, 2, 2}, Data: make([]float32, 8)},
			})
			return b
		}()},
		{"wrong band count", func() []byte {
			b, _ := json.Marshal(ReconstructionRequest{
				Measurement: TensorPayload{Shape: []int{1, 1, 4, 5}, Data: make([]float32, 20)},
				Mask:        TensorPayload{Shape: []int{1, 3, 4, 5}, Data: make([]float32, 60)},
			})
			return b
		}()},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodPost, "/v1/reconstructions", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got status %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestGetReconstructionNotFound(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/v1/reconstructions/rec_missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestModelInfo(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/v1/model", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var info ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.Bands != 2 || info.Step != 1 || info.Stages != 1 {
		t.Fatalf("unexpected model info: %+v", info)
	}
	if info.NumParams == 0 {
		t.Fatal("model info reports zero parameters")
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestStoreEviction(t *testing.T) {
	t.Parallel()
	s := NewReconstructionStore(2)
	s.Save(ReconstructionResponse{ID: "a"})
	s.Save(ReconstructionResponse{ID: "b"})
	s.Save(ReconstructionResponse{ID: "c"})
	if s.Len() != 2 {
		t.Fatalf("store holds %d results, want 2", s.Len())
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("oldest result should have been evicted")
	}
	if _, ok := s.Get("c"); !ok {
		t.Fatal("newest result missing")
	}
}
