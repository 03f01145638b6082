package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"synapsechat-backend/internal/jwt"
	"synapsechat-backend/internal/keyValue"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/snowflake"
	"synapsechat-backend/internal/store"
	"synapsechat-backend/internal/validator"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var passwordCost = 12

const (
	oauthStateCookieName    = "oauth_state"
	oauthVerifierCookieName = "oauth_verifier"
	oauthCookiePath         = "/api/auth/google"
	oauthCookieMaxAge       = 600 // seconds
)

var googleSignIn bool
var googleOAuth = &oauth2.Config{
	Scopes:   []string{"openid", "email", "profile"},
	Endpoint: google.Endpoint,
}
var googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

func Signup(w http.ResponseWriter, r *http.Request) {
	type Registration struct {
		DisplayName     string `json:"displayName" validate:"displayname"`
		Email           string `json:"email" validate:"required,email,max=64"`
		Password        string `json:"password" validate:"password"`
		ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
	}

	var registration Registration
	err := json.NewDecoder(r.Body).Decode(&registration)
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	registration.DisplayName = strings.TrimSpace(registration.DisplayName)
	registration.Email = strings.TrimSpace(registration.Email)

	registerErrors, err := validator.Struct(registration)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if registerErrors != nil {
		// sends back 400 with the form field errors
		writeJSON(w, http.StatusBadRequest, registerErrors)
		return
	}

	userID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	passwordBytes, err := bcrypt.GenerateFromPassword([]byte(registration.Password), passwordCost)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	profile := models.UserProfile{
		UID:         userID,
		DisplayName: registration.DisplayName,
		Email:       registration.Email,
	}

	err = db.CreateUser(r.Context(), profile, passwordBytes)
	if errors.Is(err, store.ErrEmailTaken) {
		writeNotification(w, http.StatusConflict, models.Failure("Signup Failed", "Email address is already in use."))
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	cookie, err := jwt.CreateToken(false, userID, registration.Email)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &cookie)
	writeNotification(w, http.StatusCreated, models.Success("Account Created!", "Welcome to SynapseChat!"))
}

func Login(w http.ResponseWriter, r *http.Request) {
	type Login struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var login Login
	err := json.NewDecoder(r.Body).Decode(&login)
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	loginFailed := models.Failure("Login Failed", "Invalid email or password. Please try again.")

	credentials, err := db.GetCredentials(r.Context(), strings.TrimSpace(login.Email))
	if errors.Is(err, store.ErrNotFound) {
		sugar.Debug(err)
		writeNotification(w, http.StatusUnauthorized, loginFailed)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	// accounts created through a provider have no password
	if len(credentials.Password) == 0 {
		writeNotification(w, http.StatusUnauthorized, loginFailed)
		return
	}

	err = bcrypt.CompareHashAndPassword(credentials.Password, []byte(login.Password))
	if err != nil {
		sugar.Debug(err)
		writeNotification(w, http.StatusUnauthorized, loginFailed)
		return
	}

	cookie, err := jwt.CreateToken(r.URL.Query().Get("rememberMe") == "true", credentials.UID, credentials.Email)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &cookie)
	writeNotification(w, http.StatusOK, models.Success("Login Successful", "Welcome back!"))
}

// GoogleSignIn sends the browser to the provider's consent page.
func GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	if !googleSignIn {
		writeNotification(w, http.StatusServiceUnavailable, models.Failure("Sign-In Failed", "Google sign-in is not available."))
		return
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	setOAuthCookie(w, oauthStateCookieName, state, oauthCookieMaxAge)
	setOAuthCookie(w, oauthVerifierCookieName, verifier, oauthCookieMaxAge)

	http.Redirect(w, r, googleOAuth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), http.StatusFound)
}

// GoogleCallback finishes the provider sign-in: it creates the profile on the first visit and
// issues the same cookie as a password login.
func GoogleCallback(w http.ResponseWriter, r *http.Request) {
	signInFailed := func(status int, description string) {
		writeNotification(w, status, models.Failure("Sign-In Failed", description))
	}

	if !googleSignIn {
		signInFailed(http.StatusServiceUnavailable, "Google sign-in is not available.")
		return
	}

	stateCookie, stateErr := r.Cookie(oauthStateCookieName)
	verifierCookie, verifierErr := r.Cookie(oauthVerifierCookieName)
	setOAuthCookie(w, oauthStateCookieName, "", -1)
	setOAuthCookie(w, oauthVerifierCookieName, "", -1)

	query := r.URL.Query()
	if stateErr != nil || verifierErr != nil || stateCookie.Value == "" || query.Get("state") != stateCookie.Value {
		sugar.Debug("google sign-in with a missing or foreign state")
		signInFailed(http.StatusUnauthorized, "The sign-in request expired. Please try again.")
		return
	}
	if providerErr := query.Get("error"); providerErr != "" {
		sugar.Debugf("google sign-in refused: %s", providerErr)
		signInFailed(http.StatusUnauthorized, "Google sign-in was cancelled.")
		return
	}

	token, err := googleOAuth.Exchange(r.Context(), query.Get("code"), oauth2.VerifierOption(verifierCookie.Value))
	if err != nil {
		sugar.Debug(err)
		signInFailed(http.StatusUnauthorized, "Google did not accept the sign-in. Please try again.")
		return
	}

	info, err := fetchGoogleUser(r, token)
	if err != nil {
		sugar.Warn(err)
		signInFailed(http.StatusBadGateway, "Could not read your Google profile. Please try again.")
		return
	}
	if info.Email == "" || !info.EmailVerified || len(info.Email) > 64 {
		signInFailed(http.StatusUnauthorized, "Your Google account has no usable verified email address.")
		return
	}

	userID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	profile, created, err := db.FindOrCreateUser(r.Context(), models.UserProfile{
		UID:         userID,
		DisplayName: providerDisplayName(info.Name, info.Email),
		Email:       info.Email,
		PhotoURL:    info.Picture,
	})
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	cookie, err := jwt.CreateToken(false, profile.UID, profile.Email)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &cookie)

	if created {
		writeNotification(w, http.StatusCreated, models.Success("Welcome!", "Your SynapseChat account is ready."))
		return
	}
	writeNotification(w, http.StatusOK, models.Success("Welcome back!", "Signed in with Google."))
}

type googleUser struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func fetchGoogleUser(r *http.Request, token *oauth2.Token) (googleUser, error) {
	var info googleUser

	resp, err := googleOAuth.Client(r.Context(), token).Get(googleUserInfoURL)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("google userinfo: unexpected status %s", resp.Status)
	}

	err = json.NewDecoder(resp.Body).Decode(&info)
	if err != nil {
		return info, fmt.Errorf("google userinfo: %w", err)
	}
	return info, nil
}

// providerDisplayName falls back to the email's local part when the provider name doesn't validate.
func providerDisplayName(name string, email string) string {
	name = strings.TrimSpace(name)
	if validator.DisplayName(name) == nil {
		return name
	}

	local, _, _ := strings.Cut(email, "@")
	if validator.DisplayName(local) == nil {
		return local
	}
	return lo.Substring(email, 0, 64)
}

// setOAuthCookie with a negative maxAge deletes the cookie.
func setOAuthCookie(w http.ResponseWriter, name string, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     oauthCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isHttps,
		SameSite: http.SameSiteLaxMode,
	})
}

// Logout drops the cookie and signs out every live session of the user.
func Logout(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	deleteCookie := jwt.DeleteCookie()
	http.SetCookie(w, &deleteCookie)

	broker.Publish(userID, nil)

	writeNotification(w, http.StatusOK, models.Success("Signed Out", "You have been successfully signed out."))
}

func NewSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	sessionCookie := http.Cookie{
		Name:     sessionCookieName,
		Value:    fmt.Sprint(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   isHttps,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, &sessionCookie)
}

// AuthState reports the session as the gate resolved it, signed out included.
func AuthState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentState(r))
}

func forgetUser(r *http.Request, userID int64) {
	err := keyValue.Del(r.Context(), userExistsKey(userID))
	if err != nil {
		sugar.Error(err)
	}
	profiles.Invalidate(userID)
}
