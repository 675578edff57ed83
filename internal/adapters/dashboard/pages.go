package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"stockroom/internal/adapters/exports"
	"stockroom/internal/core"
)

// Flash levels carried in the redirect query string.
const (
	levelSuccess = "success"
	levelWarning = "warning"
	levelError   = "error"
)

type flash struct {
	Level   string
	Message string
}

type pageData struct {
	Title  string
	Active string
	Flash  flash
	Query  string

	Summary    core.Summary
	Groups     []core.CategoryGroup
	Categories []string
	Products   []string

	HistoryEnabled bool
	History        []core.HistoryEntry
	ExportsEnabled bool
	Exports        []exports.Record
}

func (s *Server) newPage(r *http.Request, title, active string) pageData {
	q := r.URL.Query()
	return pageData{
		Title:  title,
		Active: active,
		Query:  strings.TrimSpace(q.Get("q")),
		Flash:  flash{Level: q.Get("level"), Message: q.Get("flash")},
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages[name].ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("render page failed", "page", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(r, "Inventory", "inventory")
	data.Summary = s.svc.Summary()
	data.Groups = s.svc.GroupedInventory(data.Query)
	data.Categories = s.svc.Categories()
	data.Products = s.svc.ProductNames()
	s.render(w, "index.gohtml", data)
}

func (s *Server) handleCategoriesPage(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(r, "Categories", "categories")
	data.Categories = s.svc.Categories()
	s.render(w, "categories.gohtml", data)
}

func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(r, "History", "history")
	data.HistoryEnabled = s.svc.HistoryEnabled()
	data.History = s.svc.History(data.Query)
	if s.exports != nil {
		data.ExportsEnabled = true
		data.Exports = s.exports.List()
	}
	s.render(w, "history.gohtml", data)
}

// redirect sends the browser back to path with a flash message, keeping the
// search query the form was submitted from.
func redirect(w http.ResponseWriter, r *http.Request, path string, f flash) {
	values := url.Values{}
	if q := strings.TrimSpace(r.PostFormValue("q")); q != "" {
		values.Set("q", q)
	}
	if f.Message != "" {
		values.Set("flash", f.Message)
		values.Set("level", f.Level)
	}
	target := path
	if len(values) > 0 {
		target += "?" + values.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func errorFlash(err error) flash {
	return flash{Level: levelError, Message: err.Error()}
}

func formStock(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.PostFormValue("initial_stock"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.ValidationError{Field: "initial_stock", Message: "must be a whole number"}
	}
	return n, nil
}

func createFlash(name string, out core.CreateOutcome, res core.Result) flash {
	if len(out.Created) == 0 {
		msg := NoNewItemsWarning
		if len(out.Skipped) > 0 {
			msg += fmt.Sprintf(": %s already has %s", name, strings.Join(out.Skipped, ", "))
		}
		return flash{Level: levelWarning, Message: msg}
	}
	f := flash{Level: levelSuccess, Message: fmt.Sprintf("Added %d item(s) for %s", len(out.Created), name)}
	if len(out.Skipped) > 0 {
		f.Message += fmt.Sprintf(" (skipped existing sizes: %s)", strings.Join(out.Skipped, ", "))
	}
	if warnings := res.Warnings(); len(warnings) > 0 {
		f.Level = levelWarning
		f.Message += ". " + strings.Join(warnings, "; ")
	}
	return f
}

func (s *Server) submitProduct(w http.ResponseWriter, r *http.Request) {
	stock, err := formStock(r)
	if err != nil {
		redirect(w, r, "/", errorFlash(err))
		return
	}
	in := core.ProductInput{
		Category:     r.PostFormValue("category"),
		Name:         r.PostFormValue("name"),
		Sizes:        r.PostFormValue("sizes"),
		InitialStock: stock,
	}
	out, res, err := s.svc.CreateProduct(r.Context(), in)
	if err != nil {
		redirect(w, r, "/", errorFlash(err))
		return
	}
	redirect(w, r, "/", createFlash(strings.TrimSpace(in.Name), out, res))
}

func (s *Server) submitVariant(w http.ResponseWriter, r *http.Request) {
	stock, err := formStock(r)
	if err != nil {
		redirect(w, r, "/", errorFlash(err))
		return
	}
	in := core.VariantInput{
		Product:      r.PostFormValue("product"),
		Sizes:        r.PostFormValue("sizes"),
		InitialStock: stock,
	}
	out, res, err := s.svc.AddVariant(r.Context(), in)
	if err != nil {
		redirect(w, r, "/", errorFlash(err))
		return
	}
	redirect(w, r, "/", createFlash(strings.TrimSpace(in.Product), out, res))
}

func (s *Server) submitAdjust(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r.PathValue("id"))
		if err != nil {
			redirect(w, r, "/", errorFlash(err))
			return
		}
		out, _, err := s.svc.AdjustStock(r.Context(), id, delta)
		if err != nil {
			redirect(w, r, "/", errorFlash(err))
			return
		}
		label := fmt.Sprintf("%s (%s)", out.Item.Name, out.Item.Size)
		if !out.Changed {
			redirect(w, r, "/", flash{Level: levelWarning, Message: label + " is already out of stock"})
			return
		}
		redirect(w, r, "/", flash{Level: levelSuccess, Message: fmt.Sprintf("%s stock is now %d", label, out.Item.Stock)})
	}
}

func (s *Server) submitDeleteVariant(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		redirect(w, r, "/", errorFlash(err))
		return
	}
	item, _, err := s.svc.DeleteVariant(r.Context(), id)
	if err != nil {
		redirect(w, r, "/", errorFlash(err))
		return
	}
	redirect(w, r, "/", flash{Level: levelSuccess, Message: fmt.Sprintf("Deleted %s (%s)", item.Name, item.Size)})
}

func (s *Server) submitDeleteProduct(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("name")
	removed, _, err := s.svc.DeleteProduct(r.Context(), name)
	if err != nil {
		redirect(w, r, "/", errorFlash(err))
		return
	}
	redirect(w, r, "/", flash{Level: levelSuccess, Message: fmt.Sprintf("Deleted %s and its %d variant(s)", name, removed)})
}

func (s *Server) submitCategory(w http.ResponseWriter, r *http.Request) {
	name, _, err := s.svc.AddCategory(r.Context(), r.PostFormValue("name"))
	switch {
	case errors.Is(err, core.ErrDuplicateCategory):
		redirect(w, r, "/categories", flash{Level: levelWarning, Message: err.Error()})
	case err != nil:
		redirect(w, r, "/categories", errorFlash(err))
	default:
		redirect(w, r, "/categories", flash{Level: levelSuccess, Message: "Added category " + name})
	}
}

func (s *Server) submitDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("name")
	removed, _, err := s.svc.DeleteCategory(r.Context(), name)
	if err != nil {
		redirect(w, r, "/categories", errorFlash(err))
		return
	}
	redirect(w, r, "/categories", flash{Level: levelSuccess, Message: fmt.Sprintf("Deleted category %s and %d item(s)", name, removed)})
}

func (s *Server) submitExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		redirect(w, r, "/history", flash{Level: levelError, Message: "history exports not configured"})
		return
	}
	record, err := s.exports.Enqueue(r.Context(), exports.Input{
		Query:       strings.TrimSpace(r.PostFormValue("q")),
		RequestedBy: "dashboard",
	})
	if err != nil {
		redirect(w, r, "/history", errorFlash(err))
		return
	}
	redirect(w, r, "/history", flash{Level: levelSuccess, Message: "Export " + record.ID + " queued"})
}
