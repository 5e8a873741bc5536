package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/daybook/internal/assets"
	"github.com/starford/daybook/internal/journalservice"
	"github.com/starford/daybook/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// validate controls Bearer auth: nil disables it, otherwise every request
// inside the protected group must carry a token it accepts.
// authH, if non-nil, mounts the credential gate endpoints; setup, question,
// login, and recover stay outside the middleware so a locked-out user can
// still reach them.
// broker, if non-nil, is mounted at GET /events inside the protected group
// and receives entry events from the mutation handlers.
func NewRouter(svc *journalservice.Service, assetStore *assets.Store, validate TokenValidator, authH *AuthHandler, broker *sse.Broker) chi.Router {
	h := NewHandler(svc, broker)
	ah := NewAssetHandler(assetStore)

	r := chi.NewRouter()

	if authH != nil {
		r.Post("/auth/setup", authH.SetUp)
		r.Get("/auth/question", authH.Question)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/recover", authH.Recover)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(validate))

		// Entries CRUD.
		r.Get("/entries", h.ListEntries)
		r.Post("/entries", h.CreateEntry)
		r.Get("/entries/{date}", h.GetEntry)
		r.Put("/entries/{date}", h.UpdateEntry)
		r.Delete("/entries/{date}", h.DeleteEntry)

		// Rendering and marker mutations.
		r.Get("/entries/{date}/render", h.RenderEntry)
		r.Post("/entries/{date}/images", h.InsertImage)
		r.Patch("/entries/{date}/images", h.ResizeImage)
		r.Delete("/entries/{date}/images", h.RemoveImage)

		// Search.
		r.Get("/search", h.Search)

		// Asset upload (auth-protected; serving is mounted by the caller).
		r.Post("/assets", ah.Upload)

		if authH != nil {
			r.Post("/auth/password", authH.ChangePassword)
		}

		// SSE endpoint (protected by same auth middleware).
		if broker != nil {
			r.Get("/events", broker.ServeHTTP)
		}
	})

	return r
}
