package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"synapsechat-backend/internal/chat"
	"synapsechat-backend/internal/config"
	"synapsechat-backend/internal/dashboard"
	"synapsechat-backend/internal/entities"
	"synapsechat-backend/internal/session"
	"synapsechat-backend/internal/store"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const profileCacheTTL = 5 * time.Minute

var sugar *zap.SugaredLogger
var db *store.Store

var broker *session.Broker
var profiles *session.CachedFetcher
var directory dashboard.Directory
var entityService *entities.Service
var history chat.History
var chatBackend chat.Backend

// persistent is false in mock mode, where sent messages only live in the open view
var persistent bool

var isHttps bool
var staticDir string

// Setup wires the handlers to their backends and returns the router. ctx bounds background
// work such as cache cleanup.
func Setup(ctx context.Context, cfg *config.Config, _sugar *zap.SugaredLogger, _db *store.Store) http.Handler {
	sugar = _sugar
	db = _db
	isHttps = cfg.IsHttps()
	staticDir = filepath.Join(cfg.StorageDir, "static")

	googleSignIn = cfg.GoogleSignIn()
	googleOAuth.ClientID = cfg.GoogleClientID
	googleOAuth.ClientSecret = cfg.GoogleClientSecret
	googleOAuth.RedirectURL = cfg.GoogleRedirectURL()

	broker = session.NewBroker()
	profiles = session.NewCachedFetcher(ctx, session.FetchFunc(db.GetProfile), profileCacheTTL)

	switch cfg.BackendMode {
	case config.BackendMock:
		directory = dashboard.MockDirectory{}
		history = chat.CannedHistory{}
		chatBackend = chat.LocalBackend{}
		entityService = entities.NewService(entities.Mock{Delay: cfg.MockDelay})
		persistent = false
	default:
		directory = dashboard.StoreDirectory{Store: db}
		history = chat.StoreHistory{Store: db}
		chatBackend = chat.StoreBackend{Store: db}
		entityService = entities.NewService(entities.Store{Store: db, Sugar: sugar})
		persistent = true
	}

	sugar.Infof("Using %s backend", cfg.BackendMode)

	return newRouter(cfg)
}

func newRouter(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}

	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(60 * time.Second))

		api.Route("/auth", func(r chi.Router) {
			r.Post("/signup", Signup)
			r.Post("/login", Login)
			r.Get("/google", GoogleSignIn)
			r.Get("/google/callback", GoogleCallback)
			r.With(Identify).Get("/state", AuthState)
			r.With(Guard).Post("/logout", Logout)
			r.With(Guard).Get("/newSession", NewSession)
		})

		api.Route("/user", func(r chi.Router) {
			r.Use(Guard)
			r.Get("/fetch", GetUserInfo)
			r.Post("/update", UpdateUserInfo)
			r.Post("/delete", DeleteUser)
		})

		api.Route("/server", func(r chi.Router) {
			r.Use(Guard)
			r.Post("/create", CreateServer)
			r.Post("/join", JoinServer)
			r.With(SessionVerifier).Get("/fetch", GetServerList)
			r.Post("/delete", DeleteServer)
			r.Post("/rename", RenameServer)
			r.Post("/invite/regenerate", RegenerateInviteCode)
		})

		api.Route("/channel", func(r chi.Router) {
			r.Use(Guard)
			r.Post("/create", CreateChannel)
			r.With(SessionVerifier).Get("/fetch", GetChannelList)
		})

		api.Route("/dashboard", func(r chi.Router) {
			r.Use(Guard, SessionVerifier)
			r.Get("/selection", GetSelection)
			r.Post("/server/select", SelectServer)
			r.Post("/channel/select", SelectChannel)
			r.Post("/clear", ClearSelection)
		})

		api.Route("/message", func(r chi.Router) {
			r.Use(Guard)
			r.With(SessionVerifier).Get("/fetch", GetMessageList)
			r.With(SessionVerifier).Post("/image", AttachImage)
			r.With(SessionVerifier).Post("/create", CreateMessage)
			r.Post("/delete", DeleteMessage)
			r.Post("/react", ReactToMessage)
		})

		api.Route("/members", func(r chi.Router) {
			r.Use(Guard)
			r.Get("/fetch", GetMemberList)
		})
	})

	r.With(RedirectIfSignedIn).Get("/login", page("login.html"))
	r.With(RedirectIfSignedIn).Get("/signup", page("signup.html"))
	r.With(PageGuard).Get("/", page("index.html"))

	var websocketPath string

	if cfg.BehindNginx {
		websocketPath = "/ws/"
	} else {
		websocketPath = "/ws"
		r.Handle("/cdn/*", http.StripPrefix("/cdn/", http.FileServer(http.Dir(cfg.StorageDir))))
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	r.With(Guard).Get(websocketPath, HandleWebSocket)

	return r
}

func page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(staticDir, name))
	}
}
