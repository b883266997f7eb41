package controllers

import (
	"net/http"

	"github.com/iliria/erp-backend/api/responses"
	"github.com/iliria/erp-backend/api/validators"
	"github.com/iliria/erp-backend/internal/notifications"
	"github.com/iliria/erp-backend/pkg/logger"
)

func NotificationsList(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		page, err := validators.Page(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.List(r.Context(), m.OrgID, notifications.ListParams{
			Limit:      page.Limit,
			Cursor:     page.Cursor,
			UnreadOnly: validators.QueryBool(r, "unread"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func NotificationsMarkRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.MarkRead(r.Context(), m.OrgID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func NotificationsMarkAllRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := membership(w, r, logg)
		if !ok {
			return
		}
		out, err := svc.MarkAllRead(r.Context(), m.OrgID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
