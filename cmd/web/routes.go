package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/actor"
	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/httputil"
	"github.com/AdamBeresnev/poolbracket/internal/middleware"
	"github.com/AdamBeresnev/poolbracket/internal/payout"
	"github.com/AdamBeresnev/poolbracket/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type loginResponse struct {
	UserID    uuid.UUID `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type playersRequest struct {
	Names []string `json:"names"`
	Text  string   `json:"text"`
}

type tableRequest struct {
	TableID    *int  `json:"tableId"`
	RowVersion int64 `json:"rowVersion"`
}

type simulateRequest struct {
	Pool     decimal.Decimal     `json:"pool"`
	Percents payout.Distribution `json:"percents"`
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(app.sessions.LoadAndSave)
	r.Use(middleware.Authenticate(app.sessions, app.tokens))

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		if err := app.sessions.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		userID := uuid.MustParse(middleware.GuestUserID)
		app.sessions.Put(r.Context(), middleware.SessionUserKey, userID.String())

		raw, expiresAt, err := app.tokens.IssueUserToken(userID)
		if err != nil {
			httputil.InternalServerError(w, "Failed to issue user token", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, loginResponse{UserID: userID, Token: raw, ExpiresAt: expiresAt})
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := app.sessions.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to destroy session", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/payouts/simulate", func(w http.ResponseWriter, r *http.Request) {
		var req simulateRequest
		if err := httputil.ReadJSON(w, r, &req); err != nil {
			httputil.BadRequest(w, "Invalid request body", err)
			return
		}
		breakdown, err := app.payouts.Simulate(req.Percents, req.Pool)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, breakdown)
	})

	r.Get("/tournaments/{id}/payouts", func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		breakdown, err := app.payouts.Breakdown(r.Context(), id)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, breakdown)
	})

	// Scoring is open to organizers and table devices alike.
	r.Get("/table/matches", func(w http.ResponseWriter, r *http.Request) {
		a, err := actor.Resolve(r.Context(), middleware.CredentialsFromContext(r.Context()), app.tokens)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		table, ok := a.(actor.Table)
		if !ok {
			httputil.Error(w, apperr.InvalidOperation("Only table devices have a match queue."))
			return
		}
		matches, err := app.scoring.MatchesForTable(r.Context(), table)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, matches)
	})

	r.Put("/matches/{id}/score", func(w http.ResponseWriter, r *http.Request) {
		a, in, ok := scoreRequest(w, r, app)
		if !ok {
			return
		}
		match, err := app.scoring.UpdateScore(r.Context(), a, in)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, match)
	})

	r.Post("/matches/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		a, in, ok := scoreRequest(w, r, app)
		if !ok {
			return
		}
		result, err := app.scoring.CompleteMatch(r.Context(), a, in)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Get("/tournaments", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			tournaments, err := app.tournaments.ListForOwner(r.Context(), ownerID)
			if err != nil {
				httputil.InternalServerError(w, "Failed to get tournaments", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, tournaments)
		})

		r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			var in service.TournamentInput
			if err := httputil.ReadJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			t, err := app.tournaments.Create(r.Context(), ownerID, in)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, t)
		})

		r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			detail, err := app.tournaments.Get(r.Context(), id, ownerID)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, detail)
		})

		r.Get("/tournaments/{id}/bracket", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			layouts, err := app.tournaments.Bracket(r.Context(), id, ownerID)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, layouts)
		})

		r.Patch("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var in service.TournamentInput
			if err := httputil.ReadJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			t, err := app.tournaments.Update(r.Context(), id, ownerID, in)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, t)
		})

		r.Post("/tournaments/{id}/players", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var req playersRequest
			if err := httputil.ReadJSON(w, r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			names := append(req.Names, service.ParsePlayerNames(req.Text)...)
			players, err := app.tournaments.AddPlayers(r.Context(), id, ownerID, names)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, players)
		})

		r.Post("/tournaments/{id}/start", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			detail, err := app.tournaments.Start(r.Context(), id, ownerID)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, detail)
		})

		r.Post("/tournaments/{id}/tables/{table}/token", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			tableID, err := strconv.Atoi(chi.URLParam(r, "table"))
			if err != nil {
				httputil.BadRequest(w, "Invalid table number", err)
				return
			}
			issued, err := app.scoring.IssueTableToken(r.Context(), ownerID, id, tableID)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, issued)
		})

		r.Put("/matches/{id}/table", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var req tableRequest
			if err := httputil.ReadJSON(w, r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			match, err := app.scoring.AssignTable(r.Context(), ownerID, id, req.TableID, req.RowVersion)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, match)
		})

		r.Get("/payout-templates", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			templates, err := app.templates.List(r.Context(), ownerID)
			if err != nil {
				httputil.InternalServerError(w, "Failed to get payout templates", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, templates)
		})

		r.Post("/payout-templates", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			var in service.TemplateInput
			if err := httputil.ReadJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			tpl, err := app.templates.Create(r.Context(), ownerID, in)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, tpl)
		})

		r.Get("/payout-templates/{id}", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			tpl, err := app.templates.Get(r.Context(), id, ownerID)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, tpl)
		})

		r.Put("/payout-templates/{id}", func(w http.ResponseWriter, r *http.Request) {
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			var in service.TemplateInput
			if err := httputil.ReadJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			tpl, err := app.templates.Update(r.Context(), id, ownerID, in)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, tpl)
		})
	})

	return r
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid ID", err)
		return uuid.Nil, false
	}
	return id, true
}

// scoreRequest resolves the caller and decodes a score body for the match
// in the URL.
func scoreRequest(w http.ResponseWriter, r *http.Request, app *application) (actor.Actor, service.ScoreInput, bool) {
	var in service.ScoreInput
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return nil, in, false
	}
	a, err := actor.Resolve(r.Context(), middleware.CredentialsFromContext(r.Context()), app.tokens)
	if err != nil {
		httputil.Error(w, err)
		return nil, in, false
	}
	if err := httputil.ReadJSON(w, r, &in); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return nil, in, false
	}
	in.MatchID = id
	return a, in, true
}
