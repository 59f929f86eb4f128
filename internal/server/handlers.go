package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pipespec/valve-datasheet/internal/filter"
	"github.com/pipespec/valve-datasheet/pkg/engine"
	"github.com/pipespec/valve-datasheet/pkg/vds"
)

// writeEngineError maps a generation failure onto the HTTP error taxonomy:
// malformed VDS numbers are the client's fault, context expiry is a gateway
// timeout, and anything else is an internal fault reported without detail.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var decodeErr *vds.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusBadRequest, string(decodeErr.Kind), decodeErr.Error())
	case errors.Is(err, engine.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "Timeout", err.Error())
	default:
		s.logger.Error("generation failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "internal server error")
	}
}

type healthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	DataLoaded         bool   `json:"dataLoaded"`
	VDSIndexCount      int    `json:"vdsIndexCount"`
	PipingClassesCount int    `json:"pipingClassesCount"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	indexCount := s.engine.IndexCount()
	classCount := s.engine.PipingClassCount()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "ok",
		Version:            s.engine.Version(),
		DataLoaded:         indexCount > 0 && classCount > 0,
		VDSIndexCount:      indexCount,
		PipingClassesCount: classCount,
	})
}

type listVDSResponse struct {
	VDSNumbers []string `json:"vdsNumbers"`
	Total      int      `json:"total"`
}

func (s *Server) handleListVDS(w http.ResponseWriter, r *http.Request) {
	codes := s.engine.CodesWithPrefix(r.URL.Query().Get("valveType"))

	if raw := r.URL.Query().Get("filterQuery"); raw != "" {
		query, err := filter.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidFilterQuery", err.Error())
			return
		}
		matched := []string{}
		for _, code := range codes {
			if query.Match(s.codeGetter(code)) {
				matched = append(matched, code)
			}
		}
		codes = matched
	}

	offset, limit := listParams(r)
	writeJSON(w, http.StatusOK, listVDSResponse{
		VDSNumbers: page(codes, offset, limit),
		Total:      len(codes),
	})
}

// codeGetter exposes the filterable attributes of one indexed VDS number.
// Decode and index fields that do not apply to the code simply report
// absent, which a filter term treats as no match.
func (s *Server) codeGetter(code string) filter.Getter {
	decoded, decodeErr := s.engine.Decode(code)
	values, _ := s.engine.IndexValues(code)
	return func(field string) (string, bool) {
		switch field {
		case "vdsNo":
			return code, true
		case "pipingClass":
			if decodeErr != nil {
				return "", false
			}
			return decoded.PipingClass, true
		case "valveType":
			if decodeErr != nil {
				return "", false
			}
			return decoded.ValveType(), true
		case "sizeRange", "revision":
			v, ok := values[field]
			return v, ok && v != ""
		}
		return "", false
	}
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	decoded, err := s.engine.Decode(chi.URLParam(r, "vdsNo"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decoded)
}

type validateResponse struct {
	VdsNo   string `json:"vdsNo"`
	IsValid bool   `json:"isValid"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	vdsNo := chi.URLParam(r, "vdsNo")
	ok, reason := s.engine.Validate(vdsNo)
	writeJSON(w, http.StatusOK, validateResponse{VdsNo: vdsNo, IsValid: ok, Error: reason})
}

func (s *Server) handleDatasheet(w http.ResponseWriter, r *http.Request) {
	ds, err := s.engine.Generate(r.Context(), chi.URLParam(r, "vdsNo"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

type flatResponse struct {
	VdsNo                string            `json:"vdsNo"`
	Data                 map[string]string `json:"data"`
	ValidationStatus     string            `json:"validationStatus"`
	CompletionPercentage float64           `json:"completionPercentage"`
}

func (s *Server) handleFlatDatasheet(w http.ResponseWriter, r *http.Request) {
	ds, err := s.engine.Generate(r.Context(), chi.URLParam(r, "vdsNo"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flatResponse{
		VdsNo:                ds.Metadata.VdsNo,
		Data:                 ds.Flat(),
		ValidationStatus:     string(ds.Metadata.ValidationStatus),
		CompletionPercentage: ds.Metadata.Completion.Percentage,
	})
}

type generateRequest struct {
	VdsNo string `json:"vdsNo"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "request body must be JSON: "+err.Error())
		return
	}
	if req.VdsNo == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "vdsNo is required")
		return
	}
	ds, err := s.engine.Generate(r.Context(), req.VdsNo)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

type batchRequest struct {
	VDSNumbers []string `json:"vdsNumbers"`
}

type batchResponse struct {
	BatchID    string             `json:"batchId"`
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Results    []engine.BatchItem `json:"results"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "request body must be JSON: "+err.Error())
		return
	}
	if len(req.VDSNumbers) == 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "vdsNumbers must not be empty")
		return
	}
	results, err := s.engine.GenerateBatch(r.Context(), req.VDSNumbers)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	resp := batchResponse{
		BatchID: uuid.New().String(),
		Total:   len(results),
		Results: results,
	}
	for _, item := range results {
		if item.Succeeded() {
			resp.Successful++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type metadataResponse struct {
	ValveTypes      []vds.Prefix        `json:"valveTypes"`
	PipingClasses   []engine.ClassInfo  `json:"pipingClasses"`
	EndConnections  []vds.EndConnection `json:"endConnections"`
	BoreTypes       []vds.Bore          `json:"boreTypes"`
	PressureClasses []int               `json:"pressureClasses"`
}

func (s *Server) valveTypes() []vds.Prefix {
	prefixes := s.engine.SupportedPrefixes()
	out := make([]vds.Prefix, 0, len(prefixes))
	for _, code := range prefixes {
		if p, ok := s.engine.PrefixInfo(code); ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metadataResponse{
		ValveTypes:      s.valveTypes(),
		PipingClasses:   s.engine.PipingClassInfo(),
		EndConnections:  s.engine.EndConnections(),
		BoreTypes:       s.engine.BoreTypes(),
		PressureClasses: s.engine.PressureClasses(),
	})
}

func (s *Server) handleValveTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]vds.Prefix{"valveTypes": s.valveTypes()})
}

func (s *Server) handlePipingClasses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]engine.ClassInfo{"pipingClasses": s.engine.PipingClassInfo()})
}
