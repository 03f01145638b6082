package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"synapsechat-backend/internal/hub"
	"synapsechat-backend/internal/jwt"
	"synapsechat-backend/internal/keyValue"
	"synapsechat-backend/internal/session"
	"time"
)

type SessionIDKeyType struct{}

const sessionCookieName = "session"

const userExistsTTL = 15 * time.Minute

func userExistsKey(userID int64) string {
	return fmt.Sprintf("user_exists:%d", userID)
}

// authenticate turns the JWT cookie into a user. A missing, invalid or expired token, or one
// whose user no longer exists, yields nil without error.
func authenticate(w http.ResponseWriter, r *http.Request) (*session.AuthUser, error) {
	jwtCookie, err := r.Cookie(jwt.CookieName)
	if err != nil {
		return nil, nil
	}

	userToken, err := jwt.VerifyToken(jwtCookie.Value)
	if err != nil {
		sugar.Debug(err)
		return nil, nil
	}

	// check if user exists
	key := userExistsKey(userToken.UserID)

	value, err := keyValue.Get(r.Context(), key)
	if err != nil {
		return nil, err
	}

	userFound := value != ""
	if !userFound { // user isn't cached
		userFound, err = db.UserExists(r.Context(), userToken.UserID)
		if err != nil {
			return nil, err
		}
		if userFound {
			err = keyValue.Set(r.Context(), key, "y", userExistsTTL)
			if err != nil {
				return nil, err
			}
			sugar.Debugf("User ID %d was found in database and was cached", userToken.UserID)
		}
	}

	// delete JWT token from client, this should run when a user deleted their account,
	// but kept the JWT token for any reason
	if !userFound {
		sugar.Debugf("User ID %d was not found in database", userToken.UserID)
		deleteCookie := jwt.DeleteCookie()
		http.SetCookie(w, &deleteCookie)
		return nil, nil
	}

	// renew JWT and cookie
	if userToken.IssuedAt != nil && time.Since(userToken.IssuedAt.Time) >= jwt.RenewAfter {
		updatedCookie, err := jwt.CreateToken(userToken.Remember, userToken.UserID, userToken.Email)
		if err != nil {
			return nil, err
		}

		http.SetCookie(w, &updatedCookie)
	}

	return &session.AuthUser{
		UID:      userToken.UserID,
		Email:    userToken.Email,
		Remember: userToken.Remember,
	}, nil
}

// resolveSession runs a request scoped gate: the cookie user, then the profile fetch.
// ok is false when an error response was already written.
func resolveSession(w http.ResponseWriter, r *http.Request) (session.State, bool) {
	user, err := authenticate(w, r)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return session.State{}, false
	}

	gate := session.NewGate(sugar, session.Once(user), profiles)
	gate.Start(r.Context())
	defer gate.Close()

	state, err := gate.Wait(r.Context())
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusServiceUnavailable)
		return session.State{}, false
	}

	return state, true
}

// Guard rejects API requests without a signed in user.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, ok := resolveSession(w, r)
		if !ok {
			return
		}

		if state.CurrentUser == nil {
			http.Error(w, "", http.StatusUnauthorized)
			return
		}

		// this passes the session state to the next handler
		next.ServeHTTP(w, r.WithContext(session.WithState(r.Context(), state)))
	})
}

// PageGuard sends visitors without a signed in user to the login page.
func PageGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, ok := resolveSession(w, r)
		if !ok {
			return
		}

		if state.CurrentUser == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithState(r.Context(), state)))
	})
}

// Identify resolves the session but lets signed out visitors through.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, ok := resolveSession(w, r)
		if !ok {
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithState(r.Context(), state)))
	})
}

// RedirectIfSignedIn keeps signed in users away from the login and signup pages.
func RedirectIfSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := authenticate(w, r)
		if err != nil {
			sugar.Error(err)
		}

		if user != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func readSessionCookie(r *http.Request) (int64, error) {
	sessionCookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return 0, err
	}

	return strconv.ParseInt(sessionCookie.Value, 10, 64)
}

// SessionVerifier requires the session cookie of a websocket connected to this instance
// that belongs to the signed in user.
func SessionVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := readSessionCookie(r)
		if err != nil {
			sugar.Debug(err)
			switch {
			case errors.Is(err, http.ErrNoCookie):
				http.Error(w, "No session cookie was provided", http.StatusUnauthorized)
			default:
				http.Error(w, "Session cookie is in improper format", http.StatusBadRequest)
			}
			return
		}

		client, exists := hub.GetClient(sessionID)
		if !exists || client.UserID != currentUserID(r) {
			http.Error(w, "You are not connected to websocket", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDKeyType{}, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentState(r *http.Request) session.State {
	state, _ := session.FromContext(r.Context())
	return state
}

func currentUserID(r *http.Request) int64 {
	state := currentState(r)
	if state.CurrentUser == nil {
		return 0
	}
	return state.CurrentUser.UID
}

func currentSessionID(r *http.Request) int64 {
	sessionID, _ := r.Context().Value(SessionIDKeyType{}).(int64)
	return sessionID
}
