package http

import (
	"net/http"

	"nedwiyt/internal/amqp"
	"nedwiyt/internal/log"
	"nedwiyt/internal/services"
)

// changed answers a committed mutation with the re-rendered partial, the
// change events and a success toast.
func (s *Server) changed(w http.ResponseWriter, r *http.Request, st *services.InventoryState, partial, event, op, entity, id, message string) {
	s.appMetrics.mutations.Add(1)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogInventoryChange(r.Context(), op, entity, id)

	body, err := s.partialFor(partial, st)
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Partial render failed",
			"error", err, "template", partial)
	}
	resp := NewHTMXResponse().
		TriggerChanged(event, id).
		TriggerSuccessNotification(message)
	if op == log.OpCreate {
		resp.TriggerFormReset()
	}
	if body != nil {
		resp.Header("Content-Type", "text/html; charset=utf-8").Body(body)
	}
	resp.Write(w)
}

// Categories

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	c, err := st.CreateCategory(r.Context(), ParseNewCategory(p))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "categories", EventCategoriesChanged, log.OpCreate, amqp.EntityCategory, c.ID,
		"Category \""+c.Name+"\" created")
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	id, err := ParseID(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	c, err := st.UpdateCategory(r.Context(), id, ParseCategoryPatch(p))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "categories", EventCategoriesChanged, log.OpUpdate, amqp.EntityCategory, c.ID,
		"Category \""+c.Name+"\" updated")
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	id, err := ParseID(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	if err := st.DeleteCategory(r.Context(), id); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "categories", EventCategoriesChanged, log.OpDelete, amqp.EntityCategory, id, "Category deleted")
}

func (s *Server) handleRefreshCategories(w http.ResponseWriter, r *http.Request, st *services.InventoryState, _ *RequestBodyParser) {
	if err := st.RefreshCategories(r.Context()); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	body, err := s.partialFor("categories", st)
	if err != nil {
		InternalServerError("Could not render categories").Write(w)
		return
	}
	NewHTMXResponse().
		Trigger(EventCategoriesChanged, nil).
		TriggerNotification(NotificationInfo, "Categories refreshed", 2000).
		Header("Content-Type", "text/html; charset=utf-8").
		Body(body).
		Write(w)
}

// Stock items

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	in, err := ParseNewStockItem(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	it, err := st.CreateStockItem(r.Context(), in)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "items", EventItemsChanged, log.OpCreate, amqp.EntityStockItem, it.ID,
		"Stock item \""+it.Name+"\" added")
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	id, err := ParseID(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	patch, err := ParseStockItemPatch(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	it, err := st.UpdateStockItem(r.Context(), id, patch)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "items", EventItemsChanged, log.OpUpdate, amqp.EntityStockItem, it.ID,
		"Stock item \""+it.Name+"\" updated")
}

func (s *Server) handleSellItem(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	id, err := ParseID(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	qty, err := ParseSaleQuantity(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	it, err := st.RecordSale(r.Context(), id, qty)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "items", EventItemsChanged, log.OpSell, amqp.EntityStockItem, it.ID,
		"Sale recorded for \""+it.Name+"\"")
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	id, err := ParseID(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	if err := st.DeleteStockItem(r.Context(), id); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "items", EventItemsChanged, log.OpDelete, amqp.EntityStockItem, id, "Stock item deleted")
}

// Money entries

func (s *Server) handleCreateMoney(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	in, err := ParseNewMoneyEntry(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	e, err := st.CreateMoneyEntry(r.Context(), in)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "money", EventMoneyChanged, log.OpCreate, amqp.EntityMoneyEntry, e.ID, "Entry recorded")
}

func (s *Server) handleUpdateMoney(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	id, err := ParseID(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	patch, err := ParseMoneyEntryPatch(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	e, err := st.UpdateMoneyEntry(r.Context(), id, patch)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "money", EventMoneyChanged, log.OpUpdate, amqp.EntityMoneyEntry, e.ID, "Entry updated")
}

func (s *Server) handleDeleteMoney(w http.ResponseWriter, r *http.Request, st *services.InventoryState, p *RequestBodyParser) {
	id, err := ParseID(p)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	if err := st.DeleteMoneyEntry(r.Context(), id); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.changed(w, r, st, "money", EventMoneyChanged, log.OpDelete, amqp.EntityMoneyEntry, id, "Entry deleted")
}
