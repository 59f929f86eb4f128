package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipespec/valve-datasheet/pkg/engine"
)

const (
	testConfigDir = "../../configs"
	testDataDir   = "../../data"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Load(context.Background(), testConfigDir, testDataDir,
		engine.WithLogger(discard))
	require.NoError(t, err)
	return New(eng, discard).Routes()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "body: %s", rec.Body.String())
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/api/v1/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Status             string `json:"status"`
		Version            string `json:"version"`
		DataLoaded         bool   `json:"dataLoaded"`
		VDSIndexCount      int    `json:"vdsIndexCount"`
		PipingClassesCount int    `json:"pipingClassesCount"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.True(t, resp.DataLoaded)
	assert.Equal(t, 5, resp.VDSIndexCount)
	assert.Equal(t, 11, resp.PipingClassesCount)
}

type listBody struct {
	VDSNumbers []string `json:"vdsNumbers"`
	Total      int      `json:"total"`
}

func TestListVDS(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/api/v1/vds")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp listBody
	decodeInto(t, rec, &resp)
	assert.Equal(t, []string{"BSFA1R", "BSFA2R", "BSFB1NR", "BSRA1R", "GSRD1W"}, resp.VDSNumbers)
	assert.Equal(t, 5, resp.Total)

	rec = get(t, h, "/api/v1/vds?valveType=BSF")
	decodeInto(t, rec, &resp)
	assert.Equal(t, []string{"BSFA1R", "BSFA2R", "BSFB1NR"}, resp.VDSNumbers)
	assert.Equal(t, 3, resp.Total)

	// Prefix filtering is case-insensitive.
	rec = get(t, h, "/api/v1/vds?valveType=bsf")
	decodeInto(t, rec, &resp)
	assert.Equal(t, 3, resp.Total)

	// Total counts all matches, not just the returned page.
	rec = get(t, h, "/api/v1/vds?offset=1&limit=2")
	decodeInto(t, rec, &resp)
	assert.Equal(t, []string{"BSFA2R", "BSFB1NR"}, resp.VDSNumbers)
	assert.Equal(t, 5, resp.Total)

	// An offset past the end yields an empty page, not null.
	rec = get(t, h, "/api/v1/vds?offset=50")
	assert.Contains(t, rec.Body.String(), `"vdsNumbers":[]`)
	decodeInto(t, rec, &resp)
	assert.Equal(t, 5, resp.Total)

	// Limit clamps to at least one.
	rec = get(t, h, "/api/v1/vds?limit=0")
	decodeInto(t, rec, &resp)
	assert.Equal(t, []string{"BSFA1R"}, resp.VDSNumbers)
}

func listWithFilter(t *testing.T, h http.Handler, query string) *httptest.ResponseRecorder {
	t.Helper()
	return get(t, h, "/api/v1/vds?filterQuery="+url.QueryEscape(query))
}

func TestListVDSFilterQuery(t *testing.T) {
	h := newTestRouter(t)

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"equality", `pipingClass='A1'`, []string{"BSFA1R", "BSRA1R"}},
		{"conjunction", `valveType LIKE 'Ball' AND revision='C0'`, []string{"BSFA1R", "BSRA1R"}},
		{"disjunction", `vdsNo='GSRD1W' OR pipingClass='A2'`, []string{"BSFA2R", "GSRD1W"}},
		{"substring", `sizeRange LIKE '36'`, []string{"BSRA1R"}},
		{"no match", `pipingClass='Z9'`, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := listWithFilter(t, h, tc.query)
			require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
			var resp listBody
			decodeInto(t, rec, &resp)
			assert.Equal(t, tc.want, resp.VDSNumbers)
			assert.Equal(t, len(tc.want), resp.Total)
		})
	}
}

func TestListVDSFilterQueryInvalid(t *testing.T) {
	h := newTestRouter(t)

	rec := listWithFilter(t, h, `bogus='1'`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorBody
	decodeInto(t, rec, &resp)
	assert.Equal(t, "InvalidFilterQuery", resp.Error)
	assert.Contains(t, resp.Message, "bogus")

	rec = listWithFilter(t, h, `vdsNo='BS`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decodeInto(t, rec, &resp)
	assert.Equal(t, "InvalidFilterQuery", resp.Error)
	assert.Contains(t, resp.Message, "unbalanced")
}

func TestDecodeEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/api/v1/vds/BSFMG1LNJ/decode")
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	var resp struct {
		Prefix          string `json:"valveTypePrefix"`
		BoreType        string `json:"boreType"`
		PipingClass     string `json:"pipingClass"`
		PipingClassBase string `json:"pipingClassBase"`
		EndConnection   string `json:"endConnectionName"`
		IsNaceCompliant bool   `json:"isNaceCompliant"`
		IsLowTemp       bool   `json:"isLowTemp"`
		IsMetalSeated   bool   `json:"isMetalSeated"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, "BSF", resp.Prefix)
	assert.Equal(t, "M", resp.BoreType)
	assert.Equal(t, "G1LN", resp.PipingClass)
	assert.Equal(t, "G1", resp.PipingClassBase)
	assert.Equal(t, "RTJ", resp.EndConnection)
	assert.True(t, resp.IsNaceCompliant)
	assert.True(t, resp.IsLowTemp)
	assert.True(t, resp.IsMetalSeated)

	rec = get(t, h, "/api/v1/vds/XYZA1R/decode")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp errorBody
	decodeInto(t, rec, &errResp)
	assert.Equal(t, "UnknownPrefix", errResp.Error)
	assert.Contains(t, errResp.Message, `UnknownPrefix("XYZ")`)
}

func TestValidateEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/api/v1/vds/BSFA1R/validate")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		VdsNo   string `json:"vdsNo"`
		IsValid bool   `json:"isValid"`
		Error   string `json:"error"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, "BSFA1R", resp.VdsNo)
	assert.True(t, resp.IsValid)
	assert.NotContains(t, rec.Body.String(), `"error"`)

	// Invalid numbers still answer 200: the request itself succeeded.
	rec = get(t, h, "/api/v1/vds/XYZA1R/validate")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &resp)
	assert.False(t, resp.IsValid)
	assert.Contains(t, resp.Error, "UnknownPrefix")
}

func TestDatasheetEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/api/v1/datasheets/BSFA1R")
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	var resp struct {
		Metadata struct {
			VdsNo            string `json:"vdsNo"`
			ValidationStatus string `json:"validationStatus"`
			Completion       struct {
				Percentage float64 `json:"percentage"`
			} `json:"completion"`
		} `json:"metadata"`
		Sections []struct {
			Name string `json:"name"`
		} `json:"sections"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, "BSFA1R", resp.Metadata.VdsNo)
	assert.Equal(t, "valid", resp.Metadata.ValidationStatus)
	assert.Equal(t, 100.0, resp.Metadata.Completion.Percentage)
	require.Len(t, resp.Sections, 6)
	assert.Equal(t, "General", resp.Sections[0].Name)
	assert.Equal(t, "Testing", resp.Sections[5].Name)

	rec = get(t, h, "/api/v1/datasheets/XYZA1R")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp errorBody
	decodeInto(t, rec, &errResp)
	assert.Equal(t, "UnknownPrefix", errResp.Error)
}

func TestFlatDatasheetEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/api/v1/datasheets/BSFA1R/flat")
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	var resp struct {
		VdsNo                string            `json:"vdsNo"`
		Data                 map[string]string `json:"data"`
		ValidationStatus     string            `json:"validationStatus"`
		CompletionPercentage float64           `json:"completionPercentage"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, "BSFA1R", resp.VdsNo)
	assert.Equal(t, "valid", resp.ValidationStatus)
	assert.Equal(t, 100.0, resp.CompletionPercentage)
	assert.Len(t, resp.Data, 40)
	assert.Equal(t, "ASME B16.34 Class 150", resp.Data["pressureClass"])
	assert.Equal(t, "Forged - ASTM A105, Cast - ASTM A216 WCB", resp.Data["bodyMaterial"])
	assert.Equal(t, "29.4 barg", resp.Data["hydrotestShell"])
}

func TestGenerateEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := post(t, h, "/api/v1/datasheets/generate", `{"vdsNo":"GSRD1W"}`)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"vdsNo":"GSRD1W"`)

	rec = post(t, h, "/api/v1/datasheets/generate", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp errorBody
	decodeInto(t, rec, &errResp)
	assert.Equal(t, "InvalidRequest", errResp.Error)

	rec = post(t, h, "/api/v1/datasheets/generate", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decodeInto(t, rec, &errResp)
	assert.Equal(t, "InvalidRequest", errResp.Error)

	rec = post(t, h, "/api/v1/datasheets/generate", `{"vdsNo":"XYZA1R"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decodeInto(t, rec, &errResp)
	assert.Equal(t, "UnknownPrefix", errResp.Error)
}

func TestBatchEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := post(t, h, "/api/v1/datasheets/batch", `{"vdsNumbers":["BSFA1R","BOGUS","BSFB1NR"]}`)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	var resp struct {
		BatchID    string `json:"batchId"`
		Total      int    `json:"total"`
		Successful int    `json:"successful"`
		Failed     int    `json:"failed"`
		Results    []struct {
			VdsNo  string `json:"vdsNo"`
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"results"`
	}
	decodeInto(t, rec, &resp)
	_, err := uuid.Parse(resp.BatchID)
	assert.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Successful)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "BSFA1R", resp.Results[0].VdsNo)
	assert.Equal(t, "success", resp.Results[0].Status)
	assert.Equal(t, "error", resp.Results[1].Status)
	assert.Contains(t, resp.Results[1].Error, `UnknownPrefix("BOG")`)
	assert.Equal(t, "success", resp.Results[2].Status)

	rec = post(t, h, "/api/v1/datasheets/batch", `{"vdsNumbers":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp errorBody
	decodeInto(t, rec, &errResp)
	assert.Equal(t, "InvalidRequest", errResp.Error)
}

func TestMetadataEndpoints(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/api/v1/metadata")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ValveTypes []struct {
			Code            string `json:"code"`
			Name            string `json:"name"`
			PrimaryStandard string `json:"primaryStandard"`
		} `json:"valveTypes"`
		PipingClasses []struct {
			Class        string `json:"class"`
			Rating       int    `json:"rating"`
			BaseMaterial string `json:"baseMaterial"`
			NaceService  bool   `json:"naceService"`
			LowTemp      bool   `json:"lowTemp"`
		} `json:"pipingClasses"`
		EndConnections  []struct{ Code string } `json:"endConnections"`
		BoreTypes       []struct{ Code string } `json:"boreTypes"`
		PressureClasses []int                   `json:"pressureClasses"`
	}
	decodeInto(t, rec, &resp)
	assert.Len(t, resp.ValveTypes, 15)
	assert.Len(t, resp.PipingClasses, 11)
	assert.Len(t, resp.EndConnections, 5)
	assert.Len(t, resp.BoreTypes, 4)
	assert.Equal(t, []int{150, 300, 400, 600, 900, 1500, 2500}, resp.PressureClasses)

	byCode := map[string]string{}
	for _, v := range resp.ValveTypes {
		byCode[v.Code] = v.PrimaryStandard
	}
	assert.Equal(t, "API 6D / ISO 17292", byCode["BSF"])

	var b1n *struct {
		Class        string `json:"class"`
		Rating       int    `json:"rating"`
		BaseMaterial string `json:"baseMaterial"`
		NaceService  bool   `json:"naceService"`
		LowTemp      bool   `json:"lowTemp"`
	}
	for i := range resp.PipingClasses {
		if resp.PipingClasses[i].Class == "B1N" {
			b1n = &resp.PipingClasses[i]
		}
	}
	require.NotNil(t, b1n)
	assert.Equal(t, 300, b1n.Rating)
	assert.Equal(t, "CS", b1n.BaseMaterial)
	assert.True(t, b1n.NaceService)
	assert.False(t, b1n.LowTemp)

	rec = get(t, h, "/api/v1/metadata/valve-types")
	require.Equal(t, http.StatusOK, rec.Code)
	var vt struct {
		ValveTypes []struct{ Code string } `json:"valveTypes"`
	}
	decodeInto(t, rec, &vt)
	assert.Len(t, vt.ValveTypes, 15)

	rec = get(t, h, "/api/v1/metadata/piping-classes")
	require.Equal(t, http.StatusOK, rec.Code)
	var pc struct {
		PipingClasses []struct{ Class string } `json:"pipingClasses"`
	}
	decodeInto(t, rec, &pc)
	assert.Len(t, pc.PipingClasses, 11)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newTestRouter(t)

	rec := get(t, h, "/api/v1/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorBody
	decodeInto(t, rec, &resp)
	assert.Equal(t, "NotFound", resp.Error)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/healthz", nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec2.Code)
	decodeInto(t, rec2, &resp)
	assert.Equal(t, "MethodNotAllowed", resp.Error)
}

func TestExpiredRequestContextMapsToGatewayTimeout(t *testing.T) {
	h := newTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/datasheets/BSFA1R", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	var resp errorBody
	decodeInto(t, rec, &resp)
	assert.Equal(t, "Timeout", resp.Error)
}
