package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"spendlens/src/logger"
)

// TokenTTL is how long a report token stays valid.
const TokenTTL = 24 * time.Hour

// ReportSubject is the only principal the report server knows about.
const ReportSubject = "report-viewer"

func Login(passwordHash, jwtSecret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var credentials struct {
			Password string `json:"password"`
		}

		if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
			log.Error().Err(err).Msg("Failed to decode login request body")
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := bcrypt.CompareHashAndPassword(passwordHash, []byte(credentials.Password)); err != nil {
			log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Invalid password attempt")
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		// Create the JWT token
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": ReportSubject,
			"exp": time.Now().Add(TokenTTL).Unix(),
		})

		tokenString, err := token.SignedString(jwtSecret)
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate JWT token")
			http.Error(w, "Error generating token", http.StatusInternalServerError)
			return
		}

		log.Info().Msg("Successful login")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": tokenString,
		})
	}
}
