package resource

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/crmdesk/crmdesk/internal/apiclient"
	"github.com/crmdesk/crmdesk/internal/page"
	"github.com/crmdesk/crmdesk/internal/shared"
	"github.com/crmdesk/crmdesk/internal/view"
)

// API is the subset of the CRM API client the CRUD pages need.
type API interface {
	Get(ctx context.Context, creds apiclient.Credentials, path string, out any) error
	Post(ctx context.Context, creds apiclient.Credentials, path string, in, out any) error
	Put(ctx context.Context, creds apiclient.Credentials, path string, in, out any) error
	Delete(ctx context.Context, creds apiclient.Credentials, path string) error
}

// Handler serves the list, form and delete pages of one schema.
type Handler struct {
	logger    *slog.Logger
	schema    *Schema
	registry  *Registry
	api       API
	pages     *page.Renderer
	validator *validator.Validate
}

// NewHandler builds a handler for schema. Relations are resolved through
// registry.
func NewHandler(schema *Schema, registry *Registry, api API, pages *page.Renderer) *Handler {
	return &Handler{
		logger:    pages.Logger().With(slog.String("resource", schema.Name)),
		schema:    schema,
		registry:  registry,
		api:       api,
		pages:     pages,
		validator: validator.New(),
	}
}

// MountRoutes registers the resource routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	base := h.schema.Path
	r.Get(base, h.list)
	r.Get(base+"/add", h.showCreate)
	r.Post(base+"/add", h.create)
	r.Get(base+"/edit/{id}", h.showEdit)
	r.Post(base+"/edit/{id}", h.update)
	if h.schema.Deletable {
		r.Get(base+"/{id}/delete", h.confirmDelete)
		r.Post(base+"/{id}/delete", h.delete)
	}
}

type cell struct {
	Text   string
	Status bool
}

type row struct {
	ID        string
	Cells     []cell
	DetailURL string
	EditURL   string
	DeleteURL string
}

type listView struct {
	Schema  *Schema
	Columns []Field
	Rows    []row
	Error   string
}

type option struct {
	Value string
	Label string
}

type formField struct {
	Field
	Value    string
	Error    string
	Options  []option
	ReadOnly bool
}

type formView struct {
	Schema      *Schema
	Editing     bool
	Action      string
	Fields      []formField
	Error       string
	Unavailable bool
}

type deleteView struct {
	Schema *Schema
	Label  string
	Action string
}

type formState struct {
	id     string
	record Record
	values map[string]string
	errors map[string]string
	err    string
}

func (h *Handler) recordPath(id string) string {
	return h.schema.APIPath + "/" + url.PathEscape(id)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	var (
		records   []Record
		relations map[string][]option
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return h.api.Get(ctx, sess, h.schema.APIPath, &records)
	})
	g.Go(func() error {
		var err error
		relations, err = h.loadRelations(ctx, sess)
		return err
	})
	err := g.Wait()
	if h.pages.RedirectIfRejected(w, r, err) {
		return
	}

	data := listView{Schema: h.schema, Columns: h.schema.Columns()}
	status := http.StatusOK
	if err != nil {
		h.logger.Warn("list load failed", slog.Any("error", err))
		data.Error = page.Message(err, "load "+strings.ToLower(h.schema.Title))
		status = page.Status(err)
	} else {
		data.Rows = h.rows(records, relations)
	}
	h.pages.Render(w, r, status, "pages/resource_list.html", h.schema.Title, data)
}

func (h *Handler) rows(records []Record, relations map[string][]option) []row {
	cols := h.schema.Columns()
	rows := make([]row, 0, len(records))
	for _, rec := range records {
		id := rec.ID(h.schema.IDField)
		item := row{
			ID:      id,
			EditURL: h.schema.Path + "/edit/" + url.PathEscape(id),
		}
		if h.schema.Deletable {
			item.DeleteURL = h.schema.Path + "/" + url.PathEscape(id) + "/delete"
		}
		if h.schema.DetailLinks {
			item.DetailURL = h.schema.Path + "/" + url.PathEscape(id)
		}
		for _, f := range cols {
			item.Cells = append(item.Cells, displayCell(f, rec, relations))
		}
		rows = append(rows, item)
	}
	return rows
}

func displayCell(f Field, rec Record, relations map[string][]option) cell {
	raw := rec.Text(f.Name)
	switch {
	case f.Relation != nil:
		if raw == "" {
			return cell{}
		}
		for _, opt := range relations[f.Relation.Resource] {
			if opt.Value == raw {
				return cell{Text: opt.Label}
			}
		}
		return cell{Text: "#" + raw}
	case f.Kind == KindMoney:
		if raw == "" {
			return cell{}
		}
		return cell{Text: view.Money(raw)}
	case f.Kind == KindDate:
		return cell{Text: view.FormatDate(raw)}
	case f.Kind == KindSelect:
		return cell{Text: raw, Status: raw != ""}
	default:
		return cell{Text: raw}
	}
}

// loadRelations fetches every referenced resource concurrently.
func (h *Handler) loadRelations(ctx context.Context, creds apiclient.Credentials) (map[string][]option, error) {
	names := h.schema.Relations()
	out := make(map[string][]option, len(names))
	if len(names) == 0 {
		return out, nil
	}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		target, ok := h.registry.Lookup(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			var records []Record
			if err := h.api.Get(ctx, creds, target.APIPath, &records); err != nil {
				return err
			}
			opts := make([]option, 0, len(records))
			for _, rec := range records {
				id := rec.ID(target.IDField)
				label := Label(rec, target.LabelFields)
				if label == "" {
					label = "#" + id
				}
				opts = append(opts, option{Value: id, Label: label})
			}
			mu.Lock()
			out[name] = opts
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, formState{})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	values, payload, errs := h.bind(r, false)
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusUnprocessableEntity, formState{values: values, errors: errs, err: "Please correct the highlighted fields."})
		return
	}
	sess := shared.SessionFromContext(r.Context())
	err := h.api.Post(r.Context(), sess, h.schema.APIPath, payload, nil)
	if err != nil {
		if h.pages.RedirectIfRejected(w, r, err) {
			return
		}
		h.logger.Warn("create failed", slog.Any("error", err))
		h.renderForm(w, r, page.Status(err), formState{values: values, err: page.Message(err, "save the "+strings.ToLower(h.schema.Singular))})
		return
	}
	h.pages.Redirect(w, r, h.schema.Path, "success", h.schema.Singular+" created")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := shared.SessionFromContext(r.Context())
	var rec Record
	if err := h.api.Get(r.Context(), sess, h.recordPath(id), &rec); err != nil {
		if h.pages.RedirectIfRejected(w, r, err) {
			return
		}
		h.renderUnavailable(w, r, id, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, formState{id: id, record: rec})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	sess := shared.SessionFromContext(r.Context())
	values, payload, errs := h.bind(r, true)
	state := formState{id: id, values: values, errors: errs}
	if len(errs) > 0 {
		state.err = "Please correct the highlighted fields."
		h.renderEditFailure(w, r, http.StatusUnprocessableEntity, state)
		return
	}
	if err := h.api.Put(r.Context(), sess, h.recordPath(id), payload, nil); err != nil {
		if h.pages.RedirectIfRejected(w, r, err) {
			return
		}
		h.logger.Warn("update failed", slog.String("id", id), slog.Any("error", err))
		state.err = page.Message(err, "update the "+strings.ToLower(h.schema.Singular))
		h.renderEditFailure(w, r, page.Status(err), state)
		return
	}
	h.pages.Redirect(w, r, h.schema.Path, "success", h.schema.Singular+" updated")
}

// renderEditFailure re-reads the record so fields that are not submitted on
// update still show their stored values.
func (h *Handler) renderEditFailure(w http.ResponseWriter, r *http.Request, status int, state formState) {
	if len(h.schema.UpdateFields) > 0 {
		sess := shared.SessionFromContext(r.Context())
		var rec Record
		err := h.api.Get(r.Context(), sess, h.recordPath(state.id), &rec)
		if h.pages.RedirectIfRejected(w, r, err) {
			return
		}
		if err == nil {
			state.record = rec
		}
	}
	h.renderForm(w, r, status, state)
}

func (h *Handler) renderUnavailable(w http.ResponseWriter, r *http.Request, id string, err error) {
	h.logger.Warn("record load failed", slog.String("id", id), slog.Any("error", err))
	data := formView{
		Schema:      h.schema,
		Editing:     true,
		Error:       page.Message(err, "load the "+strings.ToLower(h.schema.Singular)),
		Unavailable: true,
	}
	h.pages.Render(w, r, page.Status(err), "pages/resource_form.html", "Edit "+h.schema.Singular, data)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, state formState) {
	sess := shared.SessionFromContext(r.Context())
	relations, err := h.loadRelations(r.Context(), sess)
	if h.pages.RedirectIfRejected(w, r, err) {
		return
	}
	editing := state.id != ""
	data := formView{
		Schema:  h.schema,
		Editing: editing,
		Action:  h.schema.Path + "/add",
		Error:   state.err,
	}
	title := "Add " + h.schema.Singular
	if editing {
		data.Action = h.schema.Path + "/edit/" + url.PathEscape(state.id)
		title = "Edit " + h.schema.Singular
	}
	if err != nil {
		h.logger.Warn("relation load failed", slog.Any("error", err))
		if data.Error == "" {
			data.Error = page.Message(err, "load related records")
		}
	}
	for _, f := range h.schema.Fields {
		ff := formField{
			Field:    f,
			Error:    state.errors[f.Name],
			ReadOnly: editing && !h.schema.Editable(f.Name),
		}
		if v, ok := state.values[f.Name]; ok {
			ff.Value = v
		} else if state.record != nil {
			ff.Value = state.record.Text(f.Name)
		}
		if f.Kind == KindDate {
			ff.Value = dateInput(ff.Value)
		}
		switch {
		case f.Relation != nil:
			ff.Options = relations[f.Relation.Resource]
		case len(f.Options) > 0:
			for _, o := range f.Options {
				ff.Options = append(ff.Options, option{Value: o, Label: o})
			}
		}
		data.Fields = append(data.Fields, ff)
	}
	h.pages.Render(w, r, status, "pages/resource_form.html", title, data)
}

// bind reads the submitted fields, validates them and builds the JSON
// payload. Empty optional values are sent as null.
func (h *Handler) bind(r *http.Request, editing bool) (map[string]string, map[string]any, map[string]string) {
	values := make(map[string]string)
	payload := make(map[string]any)
	errs := make(map[string]string)
	for _, f := range h.schema.Fields {
		if editing && !h.schema.Editable(f.Name) {
			continue
		}
		raw := strings.TrimSpace(r.PostFormValue(f.Name))
		values[f.Name] = raw
		if msg := h.check(f, raw); msg != "" {
			errs[f.Name] = msg
			continue
		}
		payload[f.Name] = encodeValue(f, raw)
	}
	return values, payload, errs
}

func (h *Handler) check(f Field, raw string) string {
	if f.Validate != "" {
		if err := h.validator.Var(raw, f.Validate); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return page.ValidationMessage(verrs[0].Tag(), verrs[0].Param())
			}
			return "Invalid value."
		}
	}
	if raw == "" {
		return ""
	}
	if len(f.Options) > 0 && !slices.Contains(f.Options, raw) {
		return page.ValidationMessage("oneof", "")
	}
	if f.Numeric() {
		if _, err := decimal.NewFromString(raw); err != nil {
			return page.ValidationMessage("numeric", "")
		}
	}
	return ""
}

func encodeValue(f Field, raw string) any {
	if raw == "" {
		return nil
	}
	if f.Numeric() {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return raw
		}
		return json.Number(d.String())
	}
	return raw
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := shared.SessionFromContext(r.Context())
	var rec Record
	if err := h.api.Get(r.Context(), sess, h.recordPath(id), &rec); err != nil {
		if h.pages.RedirectIfRejected(w, r, err) {
			return
		}
		h.pages.Redirect(w, r, h.schema.Path, "error", page.Message(err, "load the "+strings.ToLower(h.schema.Singular)))
		return
	}
	label := Label(rec, h.schema.LabelFields)
	if label == "" {
		label = "#" + id
	}
	data := deleteView{
		Schema: h.schema,
		Label:  label,
		Action: h.schema.Path + "/" + url.PathEscape(id) + "/delete",
	}
	h.pages.Render(w, r, http.StatusOK, "pages/resource_delete.html", "Delete "+h.schema.Singular, data)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := shared.SessionFromContext(r.Context())
	if err := h.api.Delete(r.Context(), sess, h.recordPath(id)); err != nil {
		if h.pages.RedirectIfRejected(w, r, err) {
			return
		}
		h.logger.Warn("delete failed", slog.String("id", id), slog.Any("error", err))
		h.pages.Redirect(w, r, h.schema.Path, "error", page.Message(err, "delete the "+strings.ToLower(h.schema.Singular)))
		return
	}
	h.pages.Redirect(w, r, h.schema.Path, "success", h.schema.Singular+" deleted")
}
