// Package connector implements the clients for external services: the
// Brick Hill identity API used to verify login tokens and the Discord
// webhook used for admin notifications.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/world"
)

// Reasons shown to a client whose login was refused.
const (
	ReasonInvalidToken = "Invalid authentication token provided."
	ReasonServerError  = "Server error while authenticating."
)

const userAgent = "brickd/%s"

var tokenPattern = regexp.MustCompile(`[\w]{8}(-[\w]{4}){3}-[\w]{12}`)

// AuthError is a refused login. Reason is safe to show to the client.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is a refused login and returns it.
func IsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	ok := errors.As(err, &ae)
	return ae, ok
}

// IdentityService verifies login tokens against the identity API, or hands
// out sequential guest identities in local mode.
type IdentityService struct {
	cfg     *config.Config
	client  *http.Client
	version string
	localID atomic.Uint32
}

// NewIdentityService creates an identity client.
func NewIdentityService(cfg *config.Config, version string) *IdentityService {
	gd := cfg.GetGameData()
	return &IdentityService{
		cfg:     cfg,
		version: version,
		client: &http.Client{
			Timeout: time.Duration(gd.AuthRequestTimeoutSec) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

type verifyResponse struct {
	Error interface{} `json:"error"`
	User  *struct {
		ID         json.Number `json:"id"`
		Username   string      `json:"username"`
		IsAdmin    bool        `json:"is_admin"`
		Membership *struct {
			Membership uint8 `json:"membership"`
		} `json:"membership"`
	} `json:"user"`
}

// Verify resolves a login token to an identity. Refusals are *AuthError.
// It blocks on network I/O and must not run on the world goroutine.
func (s *IdentityService) Verify(ctx context.Context, token string, brickplayer bool) (world.Identity, error) {
	gd := s.cfg.GetGameData()

	if gd.Local {
		n := s.localID.Add(1)
		return world.Identity{
			UserID:         n,
			Username:       "Player" + strconv.FormatUint(uint64(n), 10),
			MembershipType: 1,
			Brickplayer:    brickplayer,
		}, nil
	}

	if !tokenPattern.MatchString(token) {
		return world.Identity{}, &AuthError{Reason: ReasonInvalidToken}
	}

	endpoint := fmt.Sprintf("%s?token=%s&set=%d", gd.AuthAPIURL, url.QueryEscape(token), gd.GameID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return world.Identity{}, &AuthError{Reason: ReasonServerError, Err: err}
	}
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, s.version))
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("identity request failed")
		return world.Identity{}, &AuthError{Reason: ReasonServerError, Err: err}
	}
	defer resp.Body.Close()

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("identity response unreadable")
		return world.Identity{}, &AuthError{Reason: ReasonServerError, Err: err}
	}

	if body.Error != nil || body.User == nil {
		return world.Identity{}, &AuthError{Reason: ReasonInvalidToken}
	}

	id, err := strconv.ParseUint(body.User.ID.String(), 10, 32)
	if err != nil {
		return world.Identity{}, &AuthError{Reason: ReasonInvalidToken, Err: err}
	}
	membership := uint8(1)
	if m := body.User.Membership; m != nil && m.Membership != 0 {
		membership = m.Membership
	}

	return world.Identity{
		UserID:         uint32(id),
		Username:       body.User.Username,
		Admin:          body.User.IsAdmin,
		MembershipType: membership,
		Brickplayer:    brickplayer,
	}, nil
}
