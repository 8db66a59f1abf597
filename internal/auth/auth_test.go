package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school/internal/school"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret = "super-secret-jwt-token-with-at-least-32-characters"
	testIssuer = "https://project.supabase.co/auth/v1"
)

// signToken builds an access token shaped like the provider's.
func signToken(t *testing.T, key, role string, method jwt.SigningMethod, exp time.Time) string {
	t.Helper()

	claims := Claims{
		Email:       "teacher@school.test",
		Role:        "authenticated",
		AppMetadata: AppMetadata{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

// signUserMetadataToken builds a valid token whose role sits only in user-editable metadata.
func signUserMetadataToken(t *testing.T, role string) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":           testIssuer,
		"sub":           "u-1",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"role":          "authenticated",
		"user_metadata": map[string]any{"role": role},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()

		tok := signToken(t, testSecret, "teacher", jwt.SigningMethodHS256, time.Now().Add(time.Hour))
		claims, err := Parse(tok, testSecret, testIssuer)
		require.NoError(t, err)
		assert.Equal(t, "u-1", claims.Subject)
		role, err := claims.SchoolRole()
		require.NoError(t, err)
		assert.Equal(t, school.RoleTeacher, role)
	})

	t.Run("role comes from app metadata only", func(t *testing.T) {
		t.Parallel()

		claims, err := Parse(signUserMetadataToken(t, "admin"), testSecret, testIssuer)
		require.NoError(t, err)
		_, err = claims.SchoolRole()
		assert.Error(t, err)
	})

	t.Run("issuer check skipped when empty", func(t *testing.T) {
		t.Parallel()

		tok := signToken(t, testSecret, "admin", jwt.SigningMethodHS256, time.Now().Add(time.Hour))
		_, err := Parse(tok, testSecret, "")
		require.NoError(t, err)
	})

	t.Run("rejects", func(t *testing.T) {
		t.Parallel()

		cases := map[string]func() (string, string){
			"wrong key": func() (string, string) {
				return signToken(t, "another-secret", "admin", jwt.SigningMethodHS256, time.Now().Add(time.Hour)), testIssuer
			},
			"expired": func() (string, string) {
				return signToken(t, testSecret, "admin", jwt.SigningMethodHS256, time.Now().Add(-time.Minute)), testIssuer
			},
			"other algorithm": func() (string, string) {
				return signToken(t, testSecret, "admin", jwt.SigningMethodHS512, time.Now().Add(time.Hour)), testIssuer
			},
			"issuer mismatch": func() (string, string) {
				return signToken(t, testSecret, "admin", jwt.SigningMethodHS256, time.Now().Add(time.Hour)), "https://elsewhere"
			},
			"garbage": func() (string, string) { return "not.a.jwt", testIssuer },
		}
		for name, build := range cases {
			tok, iss := build()
			_, err := Parse(tok, testSecret, iss)
			assert.Error(t, err, name)
		}
	})
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	newRouter := func() *gin.Engine {
		r := gin.New()
		r.POST("/attendance/", RequireRole(testSecret, testIssuer, school.RoleAdmin, school.RoleTeacher), func(c *gin.Context) {
			claims := c.MustGet(ClaimsKey).(Claims)
			c.JSON(http.StatusOK, gin.H{"email": claims.Email})
		})
		return r
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "teacher allowed", header: "Bearer " + signToken(t, testSecret, "teacher", jwt.SigningMethodHS256, time.Now().Add(time.Hour)), wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + signToken(t, testSecret, "admin", jwt.SigningMethodHS256, time.Now().Add(time.Hour)), wantStatus: http.StatusOK},
		{name: "student forbidden", header: "Bearer " + signToken(t, testSecret, "student", jwt.SigningMethodHS256, time.Now().Add(time.Hour)), wantStatus: http.StatusForbidden},
		{name: "no role forbidden", header: "Bearer " + signToken(t, testSecret, "", jwt.SigningMethodHS256, time.Now().Add(time.Hour)), wantStatus: http.StatusForbidden},
		{name: "user metadata role ignored", header: "Bearer " + signUserMetadataToken(t, "admin"), wantStatus: http.StatusForbidden},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "basic auth", header: "Basic dXNlcjpwdw==", wantStatus: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/attendance/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "teacher@school.test", body["email"])
			} else {
				assert.NotEmpty(t, body["detail"])
			}
		})
	}
}
