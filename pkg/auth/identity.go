package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// Extractor resolves the auth Context for an incoming request.
type Extractor func(r *http.Request) (Context, error)

// Header names used by the trusted-proxy extractor.
const (
	HeaderUser        = "X-Remote-User"
	HeaderUserName    = "X-Remote-User-Name"
	HeaderWorkspaces  = "X-Remote-Workspaces"
	HeaderPermissions = "X-Remote-Permissions"
)

// HeaderExtractor reads the caller identity from trusted proxy headers.
// X-Remote-User carries the user ID, X-Remote-Workspaces a comma-separated
// list of workspace IDs the user belongs to, X-Remote-Permissions an
// optional comma-separated list of permission names granted upstream.
func HeaderExtractor(r *http.Request) (Context, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUser))
	if raw == "" {
		return Context{}, fmt.Errorf("missing %s header", HeaderUser)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return Context{}, fmt.Errorf("invalid %s header: %w", HeaderUser, err)
	}

	ac := Context{
		User: apimodels.UserRef{
			ID:   userID,
			Name: strings.TrimSpace(r.Header.Get(HeaderUserName)),
		},
	}

	if ws := strings.TrimSpace(r.Header.Get(HeaderWorkspaces)); ws != "" {
		for _, part := range strings.Split(ws, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return Context{}, fmt.Errorf("invalid %s header: %w", HeaderWorkspaces, err)
			}
			ac.WorkspaceIDs = append(ac.WorkspaceIDs, id)
		}
	}

	ac.Permissions = splitList(r.Header.Get(HeaderPermissions))

	return ac, nil
}

// splitList parses a comma-separated header value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JWTExtractorConfig configures the JWT-based identity extractor.
type JWTExtractorConfig struct {
	// PublicKeyPath is the path to the PEM-encoded RSA public key for
	// RS256 verification. If empty, tokens are parsed but NOT verified
	// (suitable only behind a trusted proxy that already validated them).
	PublicKeyPath string

	// Issuer is the expected iss claim. If empty, the issuer is not
	// validated.
	Issuer string

	// Audience is the expected aud claim. If empty, the audience is not
	// validated.
	Audience string

	// Logger for diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewJWTExtractor creates an Extractor that reads the caller identity from
// a JWT bearer token. The user ID comes from the sub claim, the display
// name from preferred_username, workspace membership from the workspaces
// claim (a list of IDs) and granted permissions from the permissions
// claim (a list of names).
func NewJWTExtractor(cfg JWTExtractorConfig) (Extractor, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var publicKey *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		keyData, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading JWT public key from %s: %w", cfg.PublicKeyPath, err)
		}
		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("no PEM block in %s", cfg.PublicKeyPath)
		}
		parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing public key: %w", err)
		}
		rsaKey, ok := parsedKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA (got %T)", parsedKey)
		}
		publicKey = rsaKey
	} else {
		cfg.Logger.Warn("JWT extractor: no public key configured, tokens parsed without verification (trusted proxy mode)")
	}

	return func(r *http.Request) (Context, error) {
		token := bearerToken(r)
		if token == "" {
			return Context{}, fmt.Errorf("missing bearer token")
		}

		claims, err := parseClaims(token, publicKey, cfg)
		if err != nil {
			return Context{}, fmt.Errorf("parsing bearer token: %w", err)
		}

		return contextFromClaims(claims)
	}, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseClaims(token string, publicKey *rsa.PublicKey, cfg JWTExtractorConfig) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}

	var opts []jwt.ParserOption
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	if publicKey == nil {
		parser := jwt.NewParser(opts...)
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			return nil, err
		}
		return claims, nil
	}

	opts = append(opts, jwt.WithValidMethods([]string{"RS256"}))
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return publicKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func contextFromClaims(claims jwt.MapClaims) (Context, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Context{}, fmt.Errorf("token has no sub claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Context{}, fmt.Errorf("sub claim is not a user ID: %w", err)
	}

	ac := Context{User: apimodels.UserRef{ID: userID}}
	if name, ok := claims["preferred_username"].(string); ok {
		ac.User.Name = name
	}

	if raw, ok := claims["workspaces"].([]any); ok {
		for _, entry := range raw {
			s, ok := entry.(string)
			if !ok {
				continue
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return Context{}, fmt.Errorf("workspaces claim entry %q: %w", s, err)
			}
			ac.WorkspaceIDs = append(ac.WorkspaceIDs, id)
		}
	}

	if raw, ok := claims["permissions"].([]any); ok {
		for _, entry := range raw {
			if s, ok := entry.(string); ok && s != "" {
				ac.Permissions = append(ac.Permissions, s)
			}
		}
	}

	return ac, nil
}
