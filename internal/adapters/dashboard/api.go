package dashboard

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"stockroom/internal/adapters/exports"
	"stockroom/internal/core"
)

// NoNewItemsWarning is reported when a create request only named existing sizes.
const NoNewItemsWarning = "No new items added"

type createResponse struct {
	Created  []core.StockItem `json:"created"`
	Skipped  []string         `json:"skipped"`
	Warnings []string         `json:"warnings,omitempty"`
}

func newCreateResponse(out core.CreateOutcome, res core.Result) (int, createResponse) {
	resp := createResponse{Created: out.Created, Skipped: out.Skipped, Warnings: res.Warnings()}
	if len(out.Created) == 0 {
		resp.Warnings = append(resp.Warnings, NoNewItemsWarning)
		return http.StatusOK, resp
	}
	return http.StatusCreated, resp
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return core.ValidationError{Message: "invalid request payload"}
	}
	return nil
}

func (s *Server) apiItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.svc.Search(r.URL.Query().Get("q"))})
}

func (s *Server) apiInventory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.svc.GroupedInventory(r.URL.Query().Get("q"))})
}

func (s *Server) apiSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"summary": s.svc.Summary()})
}

func (s *Server) apiProducts(w http.ResponseWriter, _ *http.Request) {
	names := s.svc.ProductNames()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": names})
}

func (s *Server) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in core.ProductInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, res, err := s.svc.CreateProduct(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, "create_product", err)
		return
	}
	status, resp := newCreateResponse(out, res)
	writeJSON(w, status, resp)
}

func (s *Server) apiAddVariant(w http.ResponseWriter, r *http.Request) {
	var in core.VariantInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, res, err := s.svc.AddVariant(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, "add_variant", err)
		return
	}
	status, resp := newCreateResponse(out, res)
	writeJSON(w, status, resp)
}

func (s *Server) apiAdjust(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out, _, err := s.svc.AdjustStock(r.Context(), id, delta)
		if err != nil {
			s.writeServiceError(w, "adjust_stock", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) apiDeleteVariant(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, _, err := s.svc.DeleteVariant(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "delete_variant", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (s *Server) apiDeleteProduct(w http.ResponseWriter, r *http.Request) {
	removed, _, err := s.svc.DeleteProduct(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeServiceError(w, "delete_product", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) apiCategories(w http.ResponseWriter, _ *http.Request) {
	categories := s.svc.Categories()
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) apiAddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name, _, err := s.svc.AddCategory(r.Context(), req.Name)
	if err != nil {
		s.writeServiceError(w, "add_category", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": name})
}

func (s *Server) apiDeleteCategory(w http.ResponseWriter, r *http.Request) {
	removed, _, err := s.svc.DeleteCategory(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeServiceError(w, "delete_category", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) apiHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": s.svc.HistoryEnabled(),
		"history": s.svc.History(r.URL.Query().Get("q")),
	})
}

func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="history.csv"`)
	if _, err := s.svc.WriteHistoryCSV(w, r.URL.Query().Get("q")); err != nil {
		s.logger.Error("history download failed", "error", err)
	}
}

func (s *Server) exportsConfigured(w http.ResponseWriter) bool {
	if s.exports == nil {
		writeError(w, http.StatusNotFound, "history exports not configured")
		return false
	}
	return true
}

func (s *Server) apiCreateExport(w http.ResponseWriter, r *http.Request) {
	if !s.exportsConfigured(w) {
		return
	}
	var req struct {
		Query       string `json:"query"`
		RequestedBy string `json:"requested_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "api"
	}
	record, err := s.exports.Enqueue(r.Context(), exports.Input{Query: req.Query, RequestedBy: req.RequestedBy})
	if err != nil {
		s.writeServiceError(w, "export_history", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (s *Server) apiListExports(w http.ResponseWriter, _ *http.Request) {
	if !s.exportsConfigured(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": s.exports.List()})
}

func (s *Server) apiGetExport(w http.ResponseWriter, r *http.Request) {
	if !s.exportsConfigured(w) {
		return
	}
	record, ok := s.exports.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	if !s.exportsConfigured(w) {
		return
	}
	record, rc, err := s.exports.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "download_export", err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="history-`+record.ID+`.csv"`)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("export download interrupted", "id", record.ID, "error", err)
	}
}
